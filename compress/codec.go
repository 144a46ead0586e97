// Package compress provides decompression for MDF DZ block payloads.
//
// The container format stores compressed payloads as raw deflate streams
// (dz_zip_type 0). Any other zip type is rejected; the reader never needs a
// compressor.
package compress

import (
	"fmt"

	"github.com/asamkit/mf4/errs"
)

// Decompressor restores the original payload of a compressed data block.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller
//   - Input slice is not modified
type Decompressor interface {
	// Decompress decompresses the input data and returns the original result.
	// It returns an error if the stream is corrupted or truncated.
	Decompress(data []byte) ([]byte, error)
}

// ZipType is the dz_zip_type field of a DZ block.
type ZipType uint8

const (
	// ZipDeflate is a raw deflate stream, the only supported payload kind.
	ZipDeflate ZipType = 0
	// ZipTransposeDeflate is deflate after byte transposition; unsupported.
	ZipTransposeDeflate ZipType = 1
)

// ForZipType returns the decompressor for a DZ zip type.
func ForZipType(zipType ZipType) (Decompressor, error) {
	if zipType != ZipDeflate {
		return nil, fmt.Errorf("zip type %d: %w", zipType, errs.ErrUnsupportedCompression)
	}

	return NewDeflateDecompressor(), nil
}
