package block

import (
	"fmt"
	"io"
	"math"

	"github.com/asamkit/mf4/endian"
	"github.com/asamkit/mf4/errs"
	"github.com/asamkit/mf4/signal"
)

// commonHeaderSize is the fixed prefix of every block: 4-byte tag, 4 reserved
// bytes, u64 length, u64 link count.
const commonHeaderSize = 24

// PeekTag reads the two-letter tag of the block at offset.
func PeekTag(r io.ReadSeeker, offset uint64) (string, error) {
	if offset == 0 {
		return "", fmt.Errorf("peek at nil offset: %w", errs.ErrBadBlockID)
	}
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return "", err
	}
	var id [4]byte
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return "", err
	}
	if id[0] != '#' || id[1] != '#' {
		return "", fmt.Errorf("offset 0x%x: tag %q: %w", offset, id[:], errs.ErrBadBlockID)
	}

	return string(id[2:]), nil
}

// Parse reads the block at offset and decodes it against this schema.
func (d *Desc) Parse(r io.ReadSeeker, offset uint64) (*Info, error) {
	if offset == 0 {
		return nil, fmt.Errorf("block %s at nil offset: %w", d.ID, errs.ErrBadBlockID)
	}
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	var hdr [commonHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if !d.CheckID(hdr[:4]) {
		return nil, fmt.Errorf("offset 0x%x: want %s, got %q: %w", offset, d.ID, hdr[:4], errs.ErrBadBlockID)
	}

	le := endian.GetLittleEndianEngine()
	length := le.Uint64(hdr[8:16])
	linkCount := le.Uint64(hdr[16:24])
	if length < commonHeaderSize || linkCount > (length-commonHeaderSize)/8 {
		return nil, fmt.Errorf("block %s at 0x%x: header lengths: %w", d.ID, offset, errs.ErrDataCorrupt)
	}

	payload := make([]byte, length-commonHeaderSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	info := &Info{
		ID:       d.ID,
		Links:    make([]uint64, linkCount),
		data:     make(map[string]signal.Value, len(d.Data)),
		normal:   make(map[string]uint64, len(d.Links)),
		variable: make(map[string][]uint64),
	}
	for i := range info.Links {
		info.Links[i] = le.Uint64(payload[i*8 : i*8+8])
	}

	pos := int(linkCount) * 8
	for _, f := range d.Data {
		v, next, err := parseField(payload, pos, f)
		if err != nil {
			return nil, fmt.Errorf("block %s at 0x%x, field %s: %w", d.ID, offset, f.Name, err)
		}
		info.data[f.Name] = v
		info.fieldOrder = append(info.fieldOrder, f.Name)
		pos = next
	}

	if err := info.bindLinks(d); err != nil {
		return nil, err
	}

	return info, nil
}

// parseField consumes one schema field from the payload cursor. A zero size
// means the field fills the remainder, divided by the element width for
// multi-byte types.
func parseField(payload []byte, pos int, f Field) (signal.Value, int, error) {
	width := f.Type.elemWidth()
	count := f.Size
	if count == 0 {
		count = (len(payload) - pos) / width
		if count < 0 {
			count = 0
		}
	}
	end := pos + count*width
	if end > len(payload) {
		return signal.Value{}, 0, errs.ErrDataCorrupt
	}
	raw := payload[pos:end]
	le := endian.GetLittleEndianEngine()

	switch f.Type {
	case TypeChar:
		return signal.Char(string(raw)), end, nil
	case TypeByte:
		b := make([]byte, len(raw))
		copy(b, raw)
		return signal.Bytes(b), end, nil
	case TypeU8:
		v := make([]uint8, count)
		copy(v, raw)
		return signal.U8(v), end, nil
	case TypeU16:
		v := make([]uint16, count)
		for i := range v {
			v[i] = le.Uint16(raw[i*2:])
		}
		return signal.U16(v), end, nil
	case TypeU32:
		v := make([]uint32, count)
		for i := range v {
			v[i] = le.Uint32(raw[i*4:])
		}
		return signal.U32(v), end, nil
	case TypeU64:
		v := make([]uint64, count)
		for i := range v {
			v[i] = le.Uint64(raw[i*8:])
		}
		return signal.U64(v), end, nil
	case TypeI16:
		v := make([]int16, count)
		for i := range v {
			v[i] = int16(le.Uint16(raw[i*2:]))
		}
		return signal.I16(v), end, nil
	case TypeI32:
		v := make([]int32, count)
		for i := range v {
			v[i] = int32(le.Uint32(raw[i*4:]))
		}
		return signal.I32(v), end, nil
	case TypeI64:
		v := make([]int64, count)
		for i := range v {
			v[i] = int64(le.Uint64(raw[i*8:]))
		}
		return signal.I64(v), end, nil
	case TypeF64:
		v := make([]float64, count)
		for i := range v {
			v[i] = math.Float64frombits(le.Uint64(raw[i*8:]))
		}
		return signal.F64(v), end, nil
	default:
		return signal.Value{}, 0, fmt.Errorf("field type %q: %w", f.Type, errs.ErrSchemaMissing)
	}
}
