package group

import (
	"fmt"
	"io"

	"github.com/asamkit/mf4/block"
	"github.com/asamkit/mf4/endian"
	"github.com/asamkit/mf4/errs"
)

// ChannelArray is a parsed CA descriptor. The template channel it composes
// is expanded into one sibling channel per array element, each with its own
// byte offset computed from the stride vector.
type ChannelArray struct {
	Type            uint8
	Storage         uint8
	NDim            uint16
	Flags           uint32
	ByteOffsetBase  int32
	InvalBitPosBase uint32
	DimSize         []uint64

	strides     []uint64
	rowOriented bool
}

// caRowColFlag is bit 6 of ca_flags: set means column-oriented strides.
const caRowColFlag = 1 << 6

// NewChannelArray parses the CA block at offset. The dimension sizes come
// from the unparsed tail; the CA link tail itself stays unbound.
func NewChannelArray(r io.ReadSeeker, offset uint64) (*ChannelArray, error) {
	desc, err := block.Get("CA")
	if err != nil {
		return nil, err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return nil, err
	}

	ca := &ChannelArray{}
	if v, ok := info.FirstUint("ca_type"); ok {
		ca.Type = uint8(v)
	}
	if v, ok := info.FirstUint("ca_storage"); ok {
		ca.Storage = uint8(v)
	}
	if v, ok := info.FirstUint("ca_ndim"); ok {
		ca.NDim = uint16(v)
	}
	if v, ok := info.FirstUint("ca_flags"); ok {
		ca.Flags = uint32(v)
	}
	if v, ok := info.FirstInt("ca_byte_offset_base"); ok {
		ca.ByteOffsetBase = int32(v)
	}
	if v, ok := info.FirstUint("ca_inval_bit_pos_base"); ok {
		ca.InvalBitPosBase = uint32(v)
	}
	if ca.NDim == 0 {
		return nil, fmt.Errorf("ca block at 0x%x has zero dimensions: %w", offset, errs.ErrDataCorrupt)
	}

	tail, _ := info.BytesData("unparsed_data")
	if len(tail) < int(ca.NDim)*8 {
		return nil, fmt.Errorf("ca block at 0x%x missing dimension sizes: %w", offset, errs.ErrDataCorrupt)
	}
	le := endian.GetLittleEndianEngine()
	ca.DimSize = make([]uint64, ca.NDim)
	for i := range ca.DimSize {
		ca.DimSize[i] = le.Uint64(tail[i*8:])
	}

	ca.rowOriented = ca.Flags&caRowColFlag == 0
	ca.strides = buildStrides(uint64(uint32(ca.ByteOffsetBase)), ca.DimSize, ca.rowOriented)

	return ca, nil
}

// buildStrides computes the per-dimension byte strides. Row orientation
// accumulates from the innermost dimension and reverses; column orientation
// accumulates in declaration order.
func buildStrides(base uint64, dims []uint64, rowOriented bool) []uint64 {
	ndim := len(dims)
	f := make([]uint64, 0, ndim)
	f = append(f, base)
	if rowOriented {
		for k := 0; k < ndim-1; k++ {
			f = append(f, f[len(f)-1]*dims[ndim-1-k])
		}
		for i, j := 0, len(f)-1; i < j; i, j = i+1, j-1 {
			f[i], f[j] = f[j], f[i]
		}
	} else {
		for k := 0; k < ndim-1; k++ {
			f = append(f, f[len(f)-1]*dims[k])
		}
	}

	return f
}

// RowOriented reports whether element layout is row-oriented.
func (ca *ChannelArray) RowOriented() bool {
	return ca.rowOriented
}

// ElementCount returns the total element count, the product of DimSize.
func (ca *ChannelArray) ElementCount() int {
	n := 1
	for _, d := range ca.DimSize {
		n *= int(d)
	}

	return n
}

// Indexes enumerates all index tuples in row-major order.
func (ca *ChannelArray) Indexes() [][]int {
	var out [][]int
	idx := make([]int, 0, ca.NDim)
	var walk func(dim int)
	walk = func(dim int) {
		if dim == int(ca.NDim) {
			tuple := make([]int, len(idx))
			copy(tuple, idx)
			out = append(out, tuple)
			return
		}
		for i := 0; i < int(ca.DimSize[dim]); i++ {
			idx = append(idx, i)
			walk(dim + 1)
			idx = idx[:len(idx)-1]
		}
	}
	walk(0)

	return out
}

// Names returns the element names "<base>[i0][i1]…" in row-major order.
func (ca *ChannelArray) Names(base string) []string {
	indexes := ca.Indexes()
	out := make([]string, len(indexes))
	for i, tuple := range indexes {
		name := base
		for _, k := range tuple {
			name += fmt.Sprintf("[%d]", k)
		}
		out[i] = name
	}

	return out
}

// ByteOffset returns the element byte offset for one index tuple.
func (ca *ChannelArray) ByteOffset(index []int) (uint32, error) {
	if len(index) != int(ca.NDim) {
		return 0, fmt.Errorf("index tuple has %d entries, array has %d dimensions: %w",
			len(index), ca.NDim, errs.ErrDataCorrupt)
	}
	var off uint64
	for k, i := range index {
		off += uint64(i) * ca.strides[k]
	}

	return uint32(off), nil
}
