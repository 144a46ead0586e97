package group

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/asamkit/mf4/block"
	"github.com/asamkit/mf4/conversion"
	"github.com/asamkit/mf4/datablock"
	"github.com/asamkit/mf4/encoding"
	"github.com/asamkit/mf4/endian"
	"github.com/asamkit/mf4/errs"
	"github.com/asamkit/mf4/format"
	"github.com/asamkit/mf4/internal/pool"
	"github.com/asamkit/mf4/signal"
)

// fieldBytes extracts the channel's bit-aligned field from one record:
// slice, right-shift by the bit offset, mask above the bit count.
func (cn *Channel) fieldBytes(rec []byte, dst []byte) ([]byte, error) {
	start := int(cn.ByteOffset)
	end := start + int(cn.bytesNum)
	if end > len(rec) {
		return nil, fmt.Errorf("channel %q field [%d, %d) in %d-byte record: %w",
			cn.Name, start, end, len(rec), errs.ErrOutOfRange)
	}
	field := dst[:cn.bytesNum]
	copy(field, rec[start:end])
	if cn.BitOffset != 0 {
		if err := encoding.RightShiftBytesInPlace(field, uint(cn.BitOffset)); err != nil {
			return nil, err
		}
	}
	if cn.BitCount%8 != 0 {
		encoding.MaskBits(field, cn.BitCount)
	}

	return field, nil
}

// eachRecord runs fn over the channel's field bytes for every cycle, in
// cycle order. The field slice is reused between calls.
func (cn *Channel) eachRecord(r io.ReadSeeker, dg *DataGroup, cg *ChannelGroup, fn func(field []byte) error) error {
	rec, cleanupRec := pool.GetByteSlice(int(cg.SampleBytes()))
	defer cleanupRec()
	field, cleanupField := pool.GetByteSlice(int(cn.bytesNum))
	defer cleanupField()

	for i := uint64(0); i < cg.CycleCount; i++ {
		if err := dg.ReadRecordInto(r, cg.RecordID, i, rec); err != nil {
			return err
		}
		f, err := cn.fieldBytes(rec, field)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}

	return nil
}

func (cn *Channel) engine() endian.EndianEngine {
	if cn.DataType.BigEndian() {
		return endian.GetBigEndianEngine()
	}

	return endian.GetLittleEndianEngine()
}

// RawData decodes the channel without applying its conversion rule. For a
// VLSD channel the result is the vector of SD offsets.
func (cn *Channel) RawData(r io.ReadSeeker, dg *DataGroup, cg *ChannelGroup) (signal.Value, error) {
	switch cn.Type {
	case format.CnVLSD:
		out := make([]uint64, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			out = append(out, encoding.Uint(field, cn.engine()))
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.U64(out), nil
	case format.CnVirtualData, format.CnVirtualMaster:
		// Virtual channels materialize the cycle index itself.
		if cn.DataType != format.UnsignedLE {
			return signal.Value{}, fmt.Errorf("virtual channel %q has data type %s: %w",
				cn.Name, cn.DataType, errs.ErrUnsupportedDataType)
		}
		out := make([]uint64, cg.CycleCount)
		for i := range out {
			out[i] = uint64(i)
		}
		return signal.U64(out), nil
	}

	switch cn.DataType {
	case format.UnsignedLE, format.UnsignedBE:
		return cn.decodeUnsigned(r, dg, cg)
	case format.SignedLE, format.SignedBE:
		return cn.decodeSigned(r, dg, cg)
	case format.FloatLE, format.FloatBE:
		return cn.decodeFloat(r, dg, cg)
	case format.StringLatin, format.StringUTF8, format.StringUTF16L, format.StringUTF16B:
		return cn.decodeStrings(r, dg, cg)
	case format.ByteArray:
		return cn.decodeByteRows(r, dg, cg)
	default:
		return signal.Value{}, fmt.Errorf("channel %q data type %d: %w", cn.Name, cn.DataType, errs.ErrUnsupportedDataType)
	}
}

func (cn *Channel) decodeUnsigned(r io.ReadSeeker, dg *DataGroup, cg *ChannelGroup) (signal.Value, error) {
	engine := cn.engine()
	bits := cn.BitCount
	switch {
	case bits <= 8:
		out := make([]uint8, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			out = append(out, uint8(encoding.Uint(field, engine)))
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.U8(out), nil
	case bits <= 16:
		out := make([]uint16, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			out = append(out, uint16(encoding.Uint(field, engine)))
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.U16(out), nil
	case bits <= 32:
		out := make([]uint32, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			out = append(out, uint32(encoding.Uint(field, engine)))
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.U32(out), nil
	case bits <= 64:
		out := make([]uint64, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			out = append(out, encoding.Uint(field, engine))
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.U64(out), nil
	default:
		return signal.Value{}, fmt.Errorf("channel %q with %d bits: %w", cn.Name, bits, errs.ErrInvalidBitSize)
	}
}

func (cn *Channel) decodeSigned(r io.ReadSeeker, dg *DataGroup, cg *ChannelGroup) (signal.Value, error) {
	engine := cn.engine()
	bits := cn.BitCount
	switch {
	case bits <= 8:
		out := make([]int8, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			out = append(out, int8(encoding.Int(field, engine)))
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.I8(out), nil
	case bits <= 16:
		out := make([]int16, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			out = append(out, int16(encoding.Int(field, engine)))
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.I16(out), nil
	case bits <= 32:
		out := make([]int32, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			out = append(out, int32(encoding.Int(field, engine)))
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.I32(out), nil
	case bits <= 64:
		out := make([]int64, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			out = append(out, encoding.Int(field, engine))
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.I64(out), nil
	default:
		return signal.Value{}, fmt.Errorf("channel %q with %d bits: %w", cn.Name, bits, errs.ErrInvalidBitSize)
	}
}

func (cn *Channel) decodeFloat(r io.ReadSeeker, dg *DataGroup, cg *ChannelGroup) (signal.Value, error) {
	engine := cn.engine()
	switch cn.BitCount {
	case 16:
		out := make([]float32, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			f, err := encoding.Float16(field, engine)
			if err != nil {
				return err
			}
			out = append(out, f)
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.F32(out), nil
	case 32:
		out := make([]float32, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			f, err := encoding.Float32(field, engine)
			if err != nil {
				return err
			}
			out = append(out, f)
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.F32(out), nil
	case 64:
		out := make([]float64, 0, cg.CycleCount)
		err := cn.eachRecord(r, dg, cg, func(field []byte) error {
			f, err := encoding.Float64(field, engine)
			if err != nil {
				return err
			}
			out = append(out, f)
			return nil
		})
		if err != nil {
			return signal.Value{}, err
		}
		return signal.F64(out), nil
	default:
		return signal.Value{}, fmt.Errorf("float channel %q with %d bits: %w", cn.Name, cn.BitCount, errs.ErrInvalidBitSize)
	}
}

func (cn *Channel) decodeStrings(r io.ReadSeeker, dg *DataGroup, cg *ChannelGroup) (signal.Value, error) {
	out := make([]string, 0, cg.CycleCount)
	err := cn.eachRecord(r, dg, cg, func(field []byte) error {
		switch cn.DataType {
		case format.StringUTF16L:
			out = append(out, encoding.UTF16String(field, endian.GetLittleEndianEngine()))
		case format.StringUTF16B:
			out = append(out, encoding.UTF16String(field, endian.GetBigEndianEngine()))
		default:
			out = append(out, encoding.UTF8String(field))
		}
		return nil
	})
	if err != nil {
		return signal.Value{}, err
	}

	return signal.Strings(out), nil
}

func (cn *Channel) decodeByteRows(r io.ReadSeeker, dg *DataGroup, cg *ChannelGroup) (signal.Value, error) {
	out := make([][]byte, 0, cg.CycleCount)
	err := cn.eachRecord(r, dg, cg, func(field []byte) error {
		row := make([]byte, len(field))
		copy(row, field)
		out = append(out, row)
		return nil
	})
	if err != nil {
		return signal.Value{}, err
	}

	return signal.ByteArray(out), nil
}

// Data decodes the channel and applies its conversion rule.
func (cn *Channel) Data(r io.ReadSeeker, dg *DataGroup, cg *ChannelGroup) (signal.Value, error) {
	if cn.DataType == format.ByteArray && cn.IsComposition() {
		fields := make([]signal.StructField, 0, len(cn.SubChannels))
		for _, sub := range cn.SubChannels {
			v, err := sub.Data(r, dg, cg)
			if err != nil {
				slog.Warn("skipping struct member", "parent", cn.Name, "member", sub.Name, "err", err)
				continue
			}
			fields = append(fields, signal.StructField{Name: sub.Name, Value: v})
		}
		return signal.Struct(fields), nil
	}

	raw, err := cn.RawData(r, dg, cg)
	if err != nil {
		return signal.Value{}, err
	}

	if cn.Type == format.CnVLSD {
		offsets, _ := raw.Uints()
		return cn.readSDData(r, offsets)
	}

	if raw.IsNumeric() {
		return cn.convertNumeric(raw)
	}
	if strs, ok := raw.Strings(); ok {
		return cn.convertStrings(raw, strs)
	}

	// Byte rows and anything else pass through unconverted.
	return raw, nil
}

func (cn *Channel) convertNumeric(raw signal.Value) (signal.Value, error) {
	conv := cn.Conversion
	if conv == nil {
		conv = conversion.Default()
	}
	floats, _ := raw.Floats()

	if conv.IsNumeric() {
		out := make([]float64, len(floats))
		for i, x := range floats {
			out[i] = conv.ApplyNumeric(x)
		}
		return signal.F64(out), nil
	}

	switch conv.Kind() {
	case conversion.Value2Text, conversion.ValueRange2Text:
		texts := make([]string, len(floats))
		reals := make([]float64, len(floats))
		allText, allReal := true, true
		for i, x := range floats {
			m, err := conv.ApplyToMixed(x)
			if err != nil {
				return signal.Value{}, err
			}
			if m.IsText {
				allReal = false
				texts[i] = m.Text
			} else {
				allText = false
				reals[i] = m.Real
				texts[i] = strconv.FormatFloat(m.Real, 'g', -1, 64)
			}
		}
		if allReal && !allText {
			return signal.F64(reals), nil
		}
		return signal.Strings(texts), nil
	default:
		return signal.Value{}, fmt.Errorf("channel %q: %s on numeric samples: %w",
			cn.Name, conv.Kind(), errs.ErrUnsupportedConversion)
	}
}

func (cn *Channel) convertStrings(raw signal.Value, strs []string) (signal.Value, error) {
	conv := cn.Conversion
	if conv == nil {
		conv = conversion.Default()
	}
	switch conv.Kind() {
	case conversion.OneToOne:
		return raw, nil
	case conversion.Text2Value:
		vals, err := conv.TextToValue(strs)
		if err != nil {
			return signal.Value{}, err
		}
		return signal.F64(vals), nil
	case conversion.Text2Text:
		out, err := conv.TextToText(strs)
		if err != nil {
			return signal.Value{}, err
		}
		return signal.Strings(out), nil
	default:
		return signal.Value{}, fmt.Errorf("channel %q: %s on string samples: %w",
			cn.Name, conv.Kind(), errs.ErrUnsupportedConversion)
	}
}

// readSDData dereferences VLSD offsets through the channel's own data tree:
// each entry is a 4-byte length followed by the payload bytes. A data link
// that points at a channel group is rejected with errs.ErrUnsupportedCnType.
func (cn *Channel) readSDData(r io.ReadSeeker, offsets []uint64) (signal.Value, error) {
	if cn.dataLink != 0 {
		if tag, err := block.PeekTag(r, cn.dataLink); err == nil && tag == "CG" {
			return signal.Value{}, fmt.Errorf("vlsd channel %q stores its data in a channel group: %w",
				cn.Name, errs.ErrUnsupportedCnType)
		}
	}
	buf, err := datablock.Open(r, cn.dataLink)
	if err != nil {
		return signal.Value{}, err
	}
	le := endian.GetLittleEndianEngine()

	out := make([]string, 0, len(offsets))
	for _, off := range offsets {
		var lenBuf [4]byte
		if err := buf.ReadAt(r, off, lenBuf[:]); err != nil {
			return signal.Value{}, err
		}
		n := le.Uint32(lenBuf[:])
		data := make([]byte, n)
		if err := buf.ReadAt(r, off+4, data); err != nil {
			return signal.Value{}, err
		}
		switch cn.DataType {
		case format.StringLatin, format.StringUTF8:
			out = append(out, encoding.UTF8String(data))
		case format.StringUTF16L:
			out = append(out, encoding.UTF16String(data, endian.GetLittleEndianEngine()))
		case format.StringUTF16B:
			out = append(out, encoding.UTF16String(data, endian.GetBigEndianEngine()))
		default:
			return signal.Value{}, fmt.Errorf("vlsd channel %q data type %s: %w",
				cn.Name, cn.DataType, errs.ErrUnsupportedDataType)
		}
	}

	return signal.Strings(out), nil
}
