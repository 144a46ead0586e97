package datablock

import (
	"fmt"
	"io"
	"sort"

	"github.com/asamkit/mf4/block"
	"github.com/asamkit/mf4/errs"
)

// maxDLChain caps DL chain walks so a cyclic file cannot hang the reader.
const maxDLChain = 1000

// List aggregates the data fragments of a DL chain into one virtual payload.
// Fragments are raw or inflated blocks; a DL never links another DL as data.
type List struct {
	totalLen      uint64
	fileOffsets   []uint64 // absolute file offset of each fragment block
	virtualStarts []uint64 // virtual offset of each fragment's first byte
	blocks        []Buffer
}

var _ Buffer = (*List)(nil)

// dlHeader is one parsed DL block of a chain.
type dlHeader struct {
	next        uint64
	data        []uint64
	equalLength bool
	offsets     []uint64 // declared virtual offsets, only when equalLength is false
}

func readDL(r io.ReadSeeker, offset uint64) (*dlHeader, error) {
	desc, err := block.Get("DL")
	if err != nil {
		return nil, err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return nil, err
	}

	flags, _ := info.FirstUint("dl_flags")
	count, _ := info.FirstUint("dl_count")
	values, _ := info.Data("dl_values")
	vals, _ := values.Uints()

	h := &dlHeader{
		next:        info.Link("dl_dl_next"),
		data:        info.LinkSeq("dl_data"),
		equalLength: flags&0x01 != 0,
	}
	if uint64(len(h.data)) != count {
		return nil, fmt.Errorf("dl block at 0x%x declares %d fragments, links %d: %w",
			offset, count, len(h.data), errs.ErrDataCorrupt)
	}
	if h.equalLength {
		if len(vals) < 1 {
			return nil, fmt.Errorf("dl block at 0x%x missing equal length: %w", offset, errs.ErrDataCorrupt)
		}
	} else {
		if uint64(len(vals)) < count {
			return nil, fmt.Errorf("dl block at 0x%x missing offsets: %w", offset, errs.ErrDataCorrupt)
		}
		h.offsets = vals[:count]
	}

	return h, nil
}

// NewList chases the DL chain at offset and aggregates its fragments.
func NewList(r io.ReadSeeker, offset uint64) (*List, error) {
	var headers []*dlHeader
	for cursor := offset; cursor != 0; {
		h, err := readDL(r, cursor)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
		if len(headers) > maxDLChain {
			return nil, fmt.Errorf("dl chain at 0x%x exceeds %d blocks: %w", offset, maxDLChain, errs.ErrDataCorrupt)
		}
		cursor = h.next
	}

	l := &List{}
	for _, h := range headers {
		for _, dataOff := range h.data {
			frag, err := openFragment(r, dataOff)
			if err != nil {
				return nil, err
			}
			l.fileOffsets = append(l.fileOffsets, dataOff)
			l.virtualStarts = append(l.virtualStarts, l.totalLen)
			l.blocks = append(l.blocks, frag)
			l.totalLen += frag.Len()
		}
	}

	if err := verifyOffsets(headers, l.virtualStarts); err != nil {
		return nil, err
	}

	return l, nil
}

// openFragment constructs the buffer for one DL data link. Nested DL blocks
// are forbidden here.
func openFragment(r io.ReadSeeker, offset uint64) (Buffer, error) {
	tag, err := block.PeekTag(r, offset)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "DT", "SD", "RD", "DV":
		return NewRaw(r, offset)
	case "DZ":
		return NewInflated(r, offset)
	default:
		return nil, fmt.Errorf("dl fragment at 0x%x has tag %s: %w", offset, tag, errs.ErrBadBlockID)
	}
}

// verifyOffsets enforces the equal-length flag discipline: the flag must be
// uniform across the chain, and when it is clear the declared offsets must
// equal the accumulated fragment starts.
func verifyOffsets(headers []*dlHeader, virtualStarts []uint64) error {
	equal := headers[0].equalLength
	for _, h := range headers {
		if h.equalLength != equal {
			return fmt.Errorf("mixed dl equal-length flags: %w", errs.ErrOffsetMismatch)
		}
	}
	if equal {
		return nil
	}

	i := 0
	for _, h := range headers {
		for _, declared := range h.offsets {
			if declared != virtualStarts[i] {
				return fmt.Errorf("dl fragment %d declares offset %d, accumulated %d: %w",
					i, declared, virtualStarts[i], errs.ErrOffsetMismatch)
			}
			i++
		}
	}

	return nil
}

// newListFromHL skips an HL header and aggregates its DL chain. The HL zip
// type applies to the DZ fragments, which validate it themselves.
func newListFromHL(r io.ReadSeeker, offset uint64) (*List, error) {
	desc, err := block.Get("HL")
	if err != nil {
		return nil, err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return nil, err
	}
	first := info.Link("hl_dl_first")
	if first == 0 {
		return &List{}, nil
	}

	return NewList(r, first)
}

// NumBlocks returns the fragment count.
func (l *List) NumBlocks() int {
	return len(l.blocks)
}

// FileOffsets returns the absolute file offset of each fragment block.
func (l *List) FileOffsets() []uint64 {
	return l.fileOffsets
}

// VirtualStarts returns the virtual offset of each fragment's first byte.
func (l *List) VirtualStarts() []uint64 {
	return l.virtualStarts
}

func (l *List) Len() uint64 {
	return l.totalLen
}

func (l *List) ReadAt(r io.ReadSeeker, virtualOffset uint64, dst []byte) error {
	end := virtualOffset + uint64(len(dst))
	if end > l.totalLen {
		return fmt.Errorf("read [%d, %d) of %d-byte list: %w", virtualOffset, end, l.totalLen, errs.ErrOutOfRange)
	}
	if len(dst) == 0 {
		return nil
	}

	// First fragment whose span contains virtualOffset.
	idx := sort.Search(len(l.virtualStarts), func(i int) bool {
		return l.virtualStarts[i] > virtualOffset
	}) - 1

	cur := virtualOffset
	for cur < end {
		frag := l.blocks[idx]
		rel := cur - l.virtualStarts[idx]
		n := frag.Len() - rel
		if n == 0 {
			// Empty or exhausted fragment; step to the next one.
			idx++
			continue
		}
		if left := end - cur; left < n {
			n = left
		}
		if err := frag.ReadAt(r, rel, dst[cur-virtualOffset:cur-virtualOffset+n]); err != nil {
			return err
		}
		cur += n
		idx++
	}

	return nil
}
