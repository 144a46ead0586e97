package fixture

import (
	"encoding/binary"
	"math"
)

// PatchLink overwrites link index of the block at offset. Forward links can
// be wired after the target block has been appended.
func (b *Builder) PatchLink(block uint64, index int, value uint64) {
	binary.LittleEndian.PutUint64(b.buf[block+24+uint64(index*8):], value)
}

// HD appends a header block. It must directly follow the identification
// block so it lands at offset 0x40.
func (b *Builder) HD(firstDG, startTimeNS uint64) uint64 {
	data := NewPayload().
		U64(startTimeNS).
		I16(0).I16(0).
		U8(0).U8(0).U8(0).Zero(1).
		F64(0).F64(0).
		Bytes()

	return b.Block("HD", []uint64{firstDG, 0, 0, 0, 0, 0}, data)
}

// DGSpec describes a DG block.
type DGSpec struct {
	Next, CgFirst, Data, Comment uint64
	RecIDSize                    uint8
}

func (b *Builder) DG(s DGSpec) uint64 {
	data := NewPayload().U8(s.RecIDSize).Zero(7).Bytes()

	return b.Block("DG", []uint64{s.Next, s.CgFirst, s.Data, s.Comment}, data)
}

// CGSpec describes a CG block.
type CGSpec struct {
	Next, CnFirst, AcqName, Source, Comment uint64
	RecordID, CycleCount                    uint64
	Flags, PathSep                          uint16
	DataBytes, InvalBytes                   uint32
}

func (b *Builder) CG(s CGSpec) uint64 {
	data := NewPayload().
		U64(s.RecordID).
		U64(s.CycleCount).
		U16(s.Flags).
		U16(s.PathSep).
		Zero(4).
		U32(s.DataBytes).
		U32(s.InvalBytes).
		Bytes()

	return b.Block("CG", []uint64{s.Next, s.CnFirst, s.AcqName, s.Source, 0, s.Comment}, data)
}

// CNSpec describes a CN block without attachment or default-x tails.
type CNSpec struct {
	Next, Composition, TxName, Source, Conversion, Data, Unit, Comment uint64
	Type, SyncType, DataType, BitOffset                                uint8
	ByteOffset, BitCount, Flags                                        uint32
}

func (b *Builder) CN(s CNSpec) uint64 {
	data := NewPayload().
		U8(s.Type).U8(s.SyncType).U8(s.DataType).U8(s.BitOffset).
		U32(s.ByteOffset).U32(s.BitCount).U32(s.Flags).U32(0).
		U8(0).Zero(1).U16(0).
		F64(0).F64(0).F64(0).F64(0).F64(0).F64(0).
		Bytes()
	links := []uint64{s.Next, s.Composition, s.TxName, s.Source, s.Conversion, s.Data, s.Unit, s.Comment}

	return b.Block("CN", links, data)
}

// CCSpec describes a CC block. Vals carries the raw 64-bit words of cc_val.
type CCSpec struct {
	TxName, Unit, Comment, Inverse uint64
	Refs                           []uint64
	Type                           uint8
	Flags                          uint16
	Vals                           []uint64
}

func (b *Builder) CC(s CCSpec) uint64 {
	p := NewPayload().
		U8(s.Type).U8(0).
		U16(s.Flags).
		U16(uint16(len(s.Refs))).
		U16(uint16(len(s.Vals))).
		F64(0).F64(0)
	for _, v := range s.Vals {
		p.U64(v)
	}
	links := append([]uint64{s.TxName, s.Unit, s.Comment, s.Inverse}, s.Refs...)

	return b.Block("CC", links, p.Bytes())
}

// SISpec describes an SI block.
type SISpec struct {
	TxName, TxPath, Comment uint64
	Type, BusType, Flags    uint8
}

func (b *Builder) SI(s SISpec) uint64 {
	data := NewPayload().U8(s.Type).U8(s.BusType).U8(s.Flags).Zero(5).Bytes()

	return b.Block("SI", []uint64{s.TxName, s.TxPath, s.Comment}, data)
}

// DT appends a plain data block holding payload.
func (b *Builder) DT(payload []byte) uint64 {
	return b.Block("DT", nil, payload)
}

// SD appends a signal-data block holding payload.
func (b *Builder) SD(payload []byte) uint64 {
	return b.Block("SD", nil, payload)
}

// DL appends one data-list block. When equalLength is nonzero the equal
// length flag is set; otherwise offsets must carry one virtual offset per
// fragment.
func (b *Builder) DL(next uint64, fragments []uint64, equalLength uint64, offsets []uint64) uint64 {
	p := NewPayload()
	if equalLength != 0 {
		p.U8(0x01).Zero(3).U32(uint32(len(fragments))).U64(equalLength)
	} else {
		p.U8(0x00).Zero(3).U32(uint32(len(fragments)))
		for _, off := range offsets {
			p.U64(off)
		}
	}
	links := append([]uint64{next}, fragments...)

	return b.Block("DL", links, p.Bytes())
}

// HL appends a header-list block fronting a DL chain.
func (b *Builder) HL(dlFirst uint64, zipType uint8) uint64 {
	data := NewPayload().U16(0).U8(zipType).Zero(5).Bytes()

	return b.Block("HL", []uint64{dlFirst}, data)
}

// DZ appends a deflate-compressed data block.
func (b *Builder) DZ(orgTag string, zipType uint8, orgLen uint64, compressed []byte) uint64 {
	p := NewPayload().
		Raw([]byte(orgTag)).
		U8(zipType).Zero(1).
		U32(0).
		U64(orgLen).
		U64(uint64(len(compressed))).
		Raw(compressed)

	return b.Block("DZ", nil, p.Bytes())
}

// F64Bits returns the raw cc_val words for a list of doubles.
func F64Bits(vals ...float64) []uint64 {
	out := make([]uint64, len(vals))
	for i, v := range vals {
		out[i] = math.Float64bits(v)
	}

	return out
}
