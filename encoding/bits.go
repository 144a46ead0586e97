// Package encoding implements the byte-level codec for record fields:
// bit-aligned shifts, bit-count masking, width-padded integer and float
// decoding, and string extraction.
//
// All bit operations treat the field as a little-endian byte run; big-endian
// fields are decoded from the same masked run with a big-endian reader.
package encoding

import "fmt"

// RightShiftBytesInPlace shifts a little-endian byte run right by shift bits,
// borrowing between adjacent bytes. shift must be in 1..7.
func RightShiftBytesInPlace(b []byte, shift uint) error {
	if shift < 1 || shift > 7 {
		return fmt.Errorf("bit shift %d outside 1..7", shift)
	}

	var carry byte
	for i := len(b) - 1; i >= 0; i-- {
		shifted := b[i]>>shift | carry
		carry = b[i] << (8 - shift)
		b[i] = shifted
	}

	return nil
}

// RightShiftBytes returns a right-shifted copy of b. shift must be in 1..7.
func RightShiftBytes(b []byte, shift uint) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	if err := RightShiftBytesInPlace(out, shift); err != nil {
		return nil, err
	}

	return out, nil
}

// MaskBits zeroes every bit above bitCount in the little-endian byte run b.
func MaskBits(b []byte, bitCount uint32) {
	full := int(bitCount / 8)
	rem := bitCount % 8
	if full >= len(b) {
		return
	}
	if rem > 0 {
		b[full] &= byte(1<<rem) - 1
		full++
	}
	for i := full; i < len(b); i++ {
		b[i] = 0
	}
}
