// Package fixture assembles synthetic MDF v4 byte streams for tests.
//
// Blocks are appended 8-byte aligned and addressed by the returned absolute
// offsets, so tests can wire link fields without hand-computing layouts.
package fixture

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Builder accumulates an in-memory MDF file.
type Builder struct {
	buf []byte
}

// NewBuilder returns a builder seeded with 8 reserved bytes, so no block
// ever lands at offset zero (a zero link means nil).
func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, 8)}
}

// NewFile returns a builder pre-seeded with a 64-byte identification block
// carrying the given version, leaving the cursor at the HD offset 0x40.
func NewFile(version string, versionNum uint16) *Builder {
	b := &Builder{}
	b.buf = append(b.buf, "MDF     "...)
	v := []byte(version)
	for len(v) < 8 {
		v = append(v, ' ')
	}
	b.buf = append(b.buf, v[:8]...)
	b.buf = append(b.buf, make([]byte, 12)...)
	b.buf = binary.LittleEndian.AppendUint16(b.buf, versionNum)
	b.buf = append(b.buf, make([]byte, 30)...)
	b.buf = binary.LittleEndian.AppendUint16(b.buf, 0) // id_unfin_flags
	b.buf = binary.LittleEndian.AppendUint16(b.buf, 0) // id_custom_unfin_flags

	return b
}

// Len returns the current file size.
func (b *Builder) Len() uint64 {
	return uint64(len(b.buf))
}

// Align8 pads the file to the next 8-byte boundary.
func (b *Builder) Align8() {
	for len(b.buf)%8 != 0 {
		b.buf = append(b.buf, 0)
	}
}

// Block appends a block with the given 2-letter tag, link vector and data
// payload, returning its absolute offset.
func (b *Builder) Block(tag string, links []uint64, data []byte) uint64 {
	b.Align8()
	offset := uint64(len(b.buf))
	b.buf = append(b.buf, '#', '#')
	b.buf = append(b.buf, tag...)
	b.buf = append(b.buf, make([]byte, 4)...)
	length := uint64(24 + 8*len(links) + len(data))
	b.buf = binary.LittleEndian.AppendUint64(b.buf, length)
	b.buf = binary.LittleEndian.AppendUint64(b.buf, uint64(len(links)))
	for _, link := range links {
		b.buf = binary.LittleEndian.AppendUint64(b.buf, link)
	}
	b.buf = append(b.buf, data...)

	return offset
}

// TX appends a TX block holding text with a terminating NUL, padded to the
// block alignment.
func (b *Builder) TX(text string) uint64 {
	data := append([]byte(text), 0)
	for len(data)%8 != 0 {
		data = append(data, 0)
	}

	return b.Block("TX", nil, data)
}

// Reader returns a seekable view of the assembled file.
func (b *Builder) Reader() *bytes.Reader {
	return bytes.NewReader(b.buf)
}

// Bytes returns the assembled file contents.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Payload builds little-endian block payloads field by field.
type Payload struct {
	buf []byte
}

func NewPayload() *Payload { return &Payload{} }

func (p *Payload) U8(v uint8) *Payload {
	p.buf = append(p.buf, v)
	return p
}

func (p *Payload) U16(v uint16) *Payload {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, v)
	return p
}

func (p *Payload) U32(v uint32) *Payload {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
	return p
}

func (p *Payload) U64(v uint64) *Payload {
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
	return p
}

func (p *Payload) I16(v int16) *Payload { return p.U16(uint16(v)) }
func (p *Payload) I32(v int32) *Payload { return p.U32(uint32(v)) }

func (p *Payload) F64(v float64) *Payload {
	return p.U64(math.Float64bits(v))
}

// Zero appends n zero bytes.
func (p *Payload) Zero(n int) *Payload {
	p.buf = append(p.buf, make([]byte, n)...)
	return p
}

// Raw appends literal bytes.
func (p *Payload) Raw(b []byte) *Payload {
	p.buf = append(p.buf, b...)
	return p
}

func (p *Payload) Bytes() []byte { return p.buf }
