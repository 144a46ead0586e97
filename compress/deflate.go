package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// DeflateDecompressor inflates raw deflate streams.
//
// DZ payloads are usually a few tens of kilobytes, so the whole stream is
// inflated into memory in one pass.
type DeflateDecompressor struct{}

var _ Decompressor = DeflateDecompressor{}

// NewDeflateDecompressor creates a new deflate decompressor.
func NewDeflateDecompressor() DeflateDecompressor {
	return DeflateDecompressor{}
}

// Decompress inflates data and returns the original payload.
func (DeflateDecompressor) Decompress(data []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()

	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("deflate decompression failed: %w", err)
	}

	return out, nil
}
