package block

import (
	"fmt"
	"io"
	"strings"

	"github.com/asamkit/mf4/errs"
)

// Text reads the TX or MD block at offset as a single string with trailing
// NULs trimmed. Interior NULs are preserved.
func Text(r io.ReadSeeker, offset uint64) (string, error) {
	tag, err := PeekTag(r, offset)
	if err != nil {
		return "", err
	}

	var field string
	switch tag {
	case "TX":
		field = "tx_data"
	case "MD":
		field = "md_data"
	default:
		return "", fmt.Errorf("text block at 0x%x has tag %s: %w", offset, tag, errs.ErrBadBlockID)
	}

	desc, err := Get(tag)
	if err != nil {
		return "", err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return "", err
	}
	s, _ := info.CharData(field)

	return strings.TrimRight(s, "\x00"), nil
}

// TextOrEmpty reads a text block, mapping a nil link or any parse failure to
// the empty string. Nil comment and name links are routine in real files.
func TextOrEmpty(r io.ReadSeeker, offset uint64) string {
	if offset == 0 {
		return ""
	}
	s, err := Text(r, offset)
	if err != nil {
		return ""
	}

	return s
}
