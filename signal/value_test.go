package signal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name    string
		v       Value
		kind    Kind
		length  int
		numeric bool
	}{
		{"u8", U8([]uint8{1, 2, 3}), KindU8, 3, true},
		{"i32", I32([]int32{-1}), KindI32, 1, true},
		{"f64", F64([]float64{1.5, 2.5}), KindF64, 2, true},
		{"strings", Strings([]string{"a", "b"}), KindStrings, 2, false},
		{"char", Char("hello"), KindChar, 1, false},
		{"bytes", Bytes([]byte{1, 2}), KindBytes, 1, false},
		{"byte array", ByteArray([][]byte{{1}, {2}}), KindByteArray, 2, false},
		{"zero value", Value{}, KindInvalid, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.kind, tt.v.Kind())
			require.Equal(t, tt.length, tt.v.Len())
			require.Equal(t, tt.numeric, tt.v.IsNumeric())
		})
	}
}

func TestFloatsWidening(t *testing.T) {
	f, ok := U16([]uint16{1, 2}).Floats()
	require.True(t, ok)
	require.Equal(t, []float64{1, 2}, f)

	f, ok = I8([]int8{-3}).Floats()
	require.True(t, ok)
	require.Equal(t, []float64{-3}, f)

	f, ok = F32([]float32{1.5}).Floats()
	require.True(t, ok)
	require.Equal(t, []float64{1.5}, f)

	_, ok = Strings([]string{"x"}).Floats()
	require.False(t, ok)
}

func TestUintsAndInts(t *testing.T) {
	u, ok := U32([]uint32{7}).Uints()
	require.True(t, ok)
	require.Equal(t, []uint64{7}, u)

	_, ok = I32([]int32{7}).Uints()
	require.False(t, ok)

	n, ok := I16([]int16{-7}).Ints()
	require.True(t, ok)
	require.Equal(t, []int64{-7}, n)
}

func TestAccessorKindChecks(t *testing.T) {
	_, ok := Char("x").Strings()
	require.False(t, ok)
	_, ok = Bytes([]byte{1}).Text()
	require.False(t, ok)

	s, ok := Strings([]string{"x"}).Strings()
	require.True(t, ok)
	require.Equal(t, []string{"x"}, s)
}

func TestStructValue(t *testing.T) {
	v := Struct([]StructField{
		{Name: "a", Value: U8([]uint8{1})},
		{Name: "b", Value: Strings([]string{"s"})},
	})
	fields, ok := v.Struct()
	require.True(t, ok)
	require.Len(t, fields, 2)
	// Field order is insertion order.
	require.Equal(t, "a", fields[0].Name)
	require.Equal(t, "b", fields[1].Name)
}
