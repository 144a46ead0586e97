// Package signal holds the tagged value union produced by block parsing and
// channel decoding.
//
// A Value carries one vector of a primitive type (one element per cycle for
// decoded channels, one element per schema field entry for block data), a
// single text or byte run, a per-cycle string or byte-run vector, or an
// ordered struct of named sub-values.
package signal

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindChar      // one string, from a CHAR block field
	KindBytes     // one byte run, from a BYTE block field
	KindStrings   // one string per cycle
	KindByteArray // one byte run per cycle
	KindStruct    // ordered named sub-values
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "U8"
	case KindU16:
		return "U16"
	case KindU32:
		return "U32"
	case KindU64:
		return "U64"
	case KindI8:
		return "I8"
	case KindI16:
		return "I16"
	case KindI32:
		return "I32"
	case KindI64:
		return "I64"
	case KindF32:
		return "F32"
	case KindF64:
		return "F64"
	case KindChar:
		return "CHAR"
	case KindBytes:
		return "BYTE"
	case KindStrings:
		return "STRINGS"
	case KindByteArray:
		return "BYTEARRAY"
	case KindStruct:
		return "STRUCT"
	default:
		return "Invalid"
	}
}

// IsNumeric reports whether the kind holds a numeric vector.
func (k Kind) IsNumeric() bool {
	return k >= KindU8 && k <= KindF64
}

// Value is the tagged union. The zero Value has KindInvalid.
type Value struct {
	kind Kind
	data any
}

func U8(v []uint8) Value         { return Value{KindU8, v} }
func U16(v []uint16) Value       { return Value{KindU16, v} }
func U32(v []uint32) Value       { return Value{KindU32, v} }
func U64(v []uint64) Value       { return Value{KindU64, v} }
func I8(v []int8) Value          { return Value{KindI8, v} }
func I16(v []int16) Value        { return Value{KindI16, v} }
func I32(v []int32) Value        { return Value{KindI32, v} }
func I64(v []int64) Value        { return Value{KindI64, v} }
func F32(v []float32) Value      { return Value{KindF32, v} }
func F64(v []float64) Value      { return Value{KindF64, v} }
func Char(s string) Value        { return Value{KindChar, s} }
func Bytes(b []byte) Value       { return Value{KindBytes, b} }
func Strings(s []string) Value   { return Value{KindStrings, s} }
func ByteArray(b [][]byte) Value { return Value{KindByteArray, b} }

// StructField is one named member of a struct value, in record order.
type StructField struct {
	Name  string
	Value Value
}

func Struct(fields []StructField) Value { return Value{KindStruct, fields} }

func (v Value) Kind() Kind { return v.kind }

// Len returns the element count of the held vector. Char and Bytes count as
// one element; an invalid value counts as zero.
func (v Value) Len() int {
	switch v.kind {
	case KindU8:
		return len(v.data.([]uint8))
	case KindU16:
		return len(v.data.([]uint16))
	case KindU32:
		return len(v.data.([]uint32))
	case KindU64:
		return len(v.data.([]uint64))
	case KindI8:
		return len(v.data.([]int8))
	case KindI16:
		return len(v.data.([]int16))
	case KindI32:
		return len(v.data.([]int32))
	case KindI64:
		return len(v.data.([]int64))
	case KindF32:
		return len(v.data.([]float32))
	case KindF64:
		return len(v.data.([]float64))
	case KindChar, KindBytes:
		return 1
	case KindStrings:
		return len(v.data.([]string))
	case KindByteArray:
		return len(v.data.([][]byte))
	case KindStruct:
		return len(v.data.([]StructField))
	default:
		return 0
	}
}

// IsNumeric reports whether the value holds a numeric vector.
func (v Value) IsNumeric() bool { return v.kind.IsNumeric() }

// Floats widens any numeric vector to float64.
func (v Value) Floats() ([]float64, bool) {
	switch v.kind {
	case KindU8:
		return widen(v.data.([]uint8)), true
	case KindU16:
		return widen(v.data.([]uint16)), true
	case KindU32:
		return widen(v.data.([]uint32)), true
	case KindU64:
		return widen(v.data.([]uint64)), true
	case KindI8:
		return widen(v.data.([]int8)), true
	case KindI16:
		return widen(v.data.([]int16)), true
	case KindI32:
		return widen(v.data.([]int32)), true
	case KindI64:
		return widen(v.data.([]int64)), true
	case KindF32:
		return widen(v.data.([]float32)), true
	case KindF64:
		return v.data.([]float64), true
	default:
		return nil, false
	}
}

// Uints widens any unsigned vector to uint64.
func (v Value) Uints() ([]uint64, bool) {
	switch v.kind {
	case KindU8:
		return widenU(v.data.([]uint8)), true
	case KindU16:
		return widenU(v.data.([]uint16)), true
	case KindU32:
		return widenU(v.data.([]uint32)), true
	case KindU64:
		return v.data.([]uint64), true
	default:
		return nil, false
	}
}

// Ints widens any signed vector to int64.
func (v Value) Ints() ([]int64, bool) {
	switch v.kind {
	case KindI8:
		return widenI(v.data.([]int8)), true
	case KindI16:
		return widenI(v.data.([]int16)), true
	case KindI32:
		return widenI(v.data.([]int32)), true
	case KindI64:
		return v.data.([]int64), true
	default:
		return nil, false
	}
}

func (v Value) Strings() ([]string, bool) {
	s, ok := v.data.([]string)
	if v.kind != KindStrings {
		return nil, false
	}

	return s, ok
}

func (v Value) Bytes() ([]byte, bool) {
	b, ok := v.data.([]byte)
	if v.kind != KindBytes {
		return nil, false
	}

	return b, ok
}

func (v Value) Text() (string, bool) {
	s, ok := v.data.(string)
	if v.kind != KindChar {
		return "", false
	}

	return s, ok
}

func (v Value) ByteArray() ([][]byte, bool) {
	b, ok := v.data.([][]byte)
	if v.kind != KindByteArray {
		return nil, false
	}

	return b, ok
}

func (v Value) Struct() ([]StructField, bool) {
	f, ok := v.data.([]StructField)
	if v.kind != KindStruct {
		return nil, false
	}

	return f, ok
}

type number interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func widen[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = float64(x)
	}

	return out
}

func widenU[T ~uint8 | ~uint16 | ~uint32](in []T) []uint64 {
	out := make([]uint64, len(in))
	for i, x := range in {
		out[i] = uint64(x)
	}

	return out
}

func widenI[T ~int8 | ~int16 | ~int32](in []T) []int64 {
	out := make([]int64, len(in))
	for i, x := range in {
		out[i] = int64(x)
	}

	return out
}
