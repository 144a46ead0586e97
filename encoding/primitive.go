package encoding

import (
	"math"
	"strings"
	"unicode/utf16"

	"github.com/x448/float16"

	"github.com/asamkit/mf4/endian"
	"github.com/asamkit/mf4/errs"
)

// Uint decodes a 1..8 byte run as an unsigned integer. Runs narrower than a
// decoder width are zero-padded: appended for little-endian, prepended for
// big-endian, so the numeric value is preserved either way.
func Uint(b []byte, engine endian.EndianEngine) uint64 {
	var tmp [8]byte
	if endian.IsBig(engine) {
		copy(tmp[8-len(b):], b)
		return endian.GetBigEndianEngine().Uint64(tmp[:])
	}
	copy(tmp[:], b)

	return endian.GetLittleEndianEngine().Uint64(tmp[:])
}

// Int decodes a 1..8 byte run as a signed integer in two's complement at the
// narrowest decoder width that holds the run. No sign extension happens
// beyond that width.
func Int(b []byte, engine endian.EndianEngine) int64 {
	u := Uint(b, engine)
	switch {
	case len(b) <= 1:
		return int64(int8(u))
	case len(b) <= 2:
		return int64(int16(u))
	case len(b) <= 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}

// Float16 decodes a 2-byte run as an IEEE 754 half float.
func Float16(b []byte, engine endian.EndianEngine) (float32, error) {
	if len(b) != 2 {
		return 0, errs.ErrInvalidBitSize
	}

	return float16.Frombits(engine.Uint16(b)).Float32(), nil
}

// Float32 decodes a 4-byte run as an IEEE 754 single float.
func Float32(b []byte, engine endian.EndianEngine) (float32, error) {
	if len(b) != 4 {
		return 0, errs.ErrInvalidBitSize
	}

	return math.Float32frombits(engine.Uint32(b)), nil
}

// Float64 decodes an 8-byte run as an IEEE 754 double float.
func Float64(b []byte, engine endian.EndianEngine) (float64, error) {
	if len(b) != 8 {
		return 0, errs.ErrInvalidBitSize
	}

	return math.Float64frombits(engine.Uint64(b)), nil
}

// UTF8String interprets b as a UTF-8 run and trims trailing NULs. Interior
// NULs are preserved.
func UTF8String(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

// UTF16String decodes b as UTF-16 code units with the given byte order and
// trims trailing NULs. An odd trailing byte is dropped.
func UTF16String(b []byte, engine endian.EndianEngine) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, engine.Uint16(b[i:i+2]))
	}

	return strings.TrimRight(string(utf16.Decode(units)), "\x00")
}
