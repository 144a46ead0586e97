package datablock

import (
	"fmt"
	"io"

	"github.com/asamkit/mf4/block"
	"github.com/asamkit/mf4/compress"
	"github.com/asamkit/mf4/errs"
)

// Inflated is a DZ block, decompressed once into memory at construction.
type Inflated struct {
	data []byte
}

var _ Buffer = (*Inflated)(nil)

// NewInflated parses and inflates the DZ block at offset. Zip types other
// than raw deflate are rejected, as is a decompressed length that disagrees
// with the declared original length.
func NewInflated(r io.ReadSeeker, offset uint64) (*Inflated, error) {
	desc, err := block.Get("DZ")
	if err != nil {
		return nil, err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return nil, err
	}

	zipType, _ := info.FirstUint("dz_zip_type")
	dec, err := compress.ForZipType(compress.ZipType(zipType))
	if err != nil {
		return nil, fmt.Errorf("dz block at 0x%x: %w", offset, err)
	}

	orgLen, _ := info.FirstUint("dz_org_data_length")
	dataLen, _ := info.FirstUint("dz_data_length")
	raw, _ := info.BytesData("dz_data")
	if uint64(len(raw)) < dataLen {
		return nil, fmt.Errorf("dz block at 0x%x truncated: %w", offset, errs.ErrDataCorrupt)
	}

	data, err := dec.Decompress(raw[:dataLen])
	if err != nil {
		return nil, fmt.Errorf("dz block at 0x%x: %w", offset, err)
	}
	if uint64(len(data)) != orgLen {
		return nil, fmt.Errorf("dz block at 0x%x inflates to %d bytes, declared %d: %w",
			offset, len(data), orgLen, errs.ErrDataCorrupt)
	}

	return &Inflated{data: data}, nil
}

func (b *Inflated) Len() uint64 {
	return uint64(len(b.data))
}

func (b *Inflated) ReadAt(_ io.ReadSeeker, virtualOffset uint64, dst []byte) error {
	if virtualOffset+uint64(len(dst)) > uint64(len(b.data)) {
		return fmt.Errorf("read [%d, %d) of %d-byte inflated block: %w",
			virtualOffset, virtualOffset+uint64(len(dst)), len(b.data), errs.ErrOutOfRange)
	}
	copy(dst, b.data[virtualOffset:])

	return nil
}
