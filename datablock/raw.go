package datablock

import (
	"fmt"
	"io"

	"github.com/asamkit/mf4/endian"
	"github.com/asamkit/mf4/errs"
)

// Raw is a single uncompressed data block (DT, SD, RD or DV). Only the
// header is read at construction; payload bytes are fetched on demand.
// The zero Raw is an empty payload.
type Raw struct {
	dataLen    uint64
	dataOffset uint64 // absolute file offset just past the block header
}

var _ Buffer = (*Raw)(nil)

// NewRaw reads the 24-byte header of the raw data block at offset.
func NewRaw(r io.ReadSeeker, offset uint64) (*Raw, error) {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	var hdr [24]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	switch string(hdr[:4]) {
	case "##DT", "##SD", "##RD", "##DV":
	default:
		return nil, fmt.Errorf("raw data block at 0x%x has tag %q: %w", offset, hdr[:4], errs.ErrBadBlockID)
	}
	length := endian.GetLittleEndianEngine().Uint64(hdr[8:16])
	if length < 24 {
		return nil, fmt.Errorf("data block at 0x%x shorter than its header: %w", offset, errs.ErrDataCorrupt)
	}

	return &Raw{
		dataLen:    length - 24,
		dataOffset: offset + 24,
	}, nil
}

func (b *Raw) Len() uint64 {
	return b.dataLen
}

func (b *Raw) ReadAt(r io.ReadSeeker, virtualOffset uint64, dst []byte) error {
	if virtualOffset+uint64(len(dst)) > b.dataLen {
		return fmt.Errorf("read [%d, %d) of %d-byte block: %w",
			virtualOffset, virtualOffset+uint64(len(dst)), b.dataLen, errs.ErrOutOfRange)
	}
	if _, err := r.Seek(int64(b.dataOffset+virtualOffset), io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(r, dst)

	return err
}
