// Package datablock provides uniform random access over MDF data payloads.
//
// A payload may be one raw block (DT/SD/RD), one deflate-compressed block
// (DZ), or a DL-linked list of either, optionally fronted by an HL header.
// Buffer hides the physical layout: reads are addressed by virtual offset
// into the concatenation of all fragments and may span fragment boundaries.
package datablock

import (
	"fmt"
	"io"

	"github.com/asamkit/mf4/block"
	"github.com/asamkit/mf4/errs"
)

// Buffer is the uniform random-access interface over a data payload.
type Buffer interface {
	// Len returns the payload length in bytes.
	Len() uint64
	// ReadAt fills dst with payload bytes starting at the virtual offset.
	// A read crossing the payload end fails with errs.ErrOutOfRange; a read
	// crossing an internal fragment boundary is spliced transparently.
	ReadAt(r io.ReadSeeker, virtualOffset uint64, dst []byte) error
}

// Open dispatches on the tag of the block at offset and constructs the
// matching buffer. A nil offset yields an empty buffer.
func Open(r io.ReadSeeker, offset uint64) (Buffer, error) {
	if offset == 0 {
		return &Raw{}, nil
	}
	tag, err := block.PeekTag(r, offset)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "DT", "SD", "RD", "DV":
		return NewRaw(r, offset)
	case "DZ":
		return NewInflated(r, offset)
	case "DL":
		return NewList(r, offset)
	case "HL":
		return newListFromHL(r, offset)
	default:
		return nil, fmt.Errorf("data block at 0x%x has tag %s: %w", offset, tag, errs.ErrBadBlockID)
	}
}
