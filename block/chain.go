package block

import (
	"fmt"
	"io"
	"strings"

	"github.com/asamkit/mf4/errs"
)

// maxChainLen caps linked-list walks so a cyclic file cannot hang the reader.
const maxChainLen = 1000

// Chain collects the block offsets of a singly linked list starting at
// first. DG, CG and CN lists all follow the <tag>_<tag>_next naming pattern.
// A nil first offset yields an empty chain.
func Chain(r io.ReadSeeker, tag string, first uint64) ([]uint64, error) {
	if first == 0 {
		return nil, nil
	}
	desc, err := Get(tag)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(tag)
	linkName := lower + "_" + lower + "_next"

	var offsets []uint64
	cursor := first
	for {
		offsets = append(offsets, cursor)
		info, err := desc.Parse(r, cursor)
		if err != nil {
			return nil, err
		}
		cursor = info.Link(linkName)
		if cursor == 0 {
			return offsets, nil
		}
		if len(offsets) >= maxChainLen {
			return nil, fmt.Errorf("%s chain at 0x%x exceeds %d blocks: %w", tag, first, maxChainLen, errs.ErrDataCorrupt)
		}
	}
}
