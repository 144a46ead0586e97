package group

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/asamkit/mf4/block"
	"github.com/asamkit/mf4/datablock"
	"github.com/asamkit/mf4/encoding"
	"github.com/asamkit/mf4/endian"
	"github.com/asamkit/mf4/errs"
	"github.com/asamkit/mf4/signal"
)

// recInfo is the record layout of one channel group within a data group.
type recInfo struct {
	recordBytes uint32
	cycles      uint64
	vlsd        bool
}

// DataGroup owns its channel groups and the data payload buffer. At
// construction the payload is scanned once to verify the declared cycle
// counts and, for id-bearing payloads, to index every record offset.
type DataGroup struct {
	RecIDSize uint8
	Comment   string

	groups  []*ChannelGroup
	sorted  bool
	layout  map[uint64]recInfo
	offsets map[uint64][]uint64
	buf     datablock.Buffer
}

// ChannelLink is a derived back-reference view from a channel to its owning
// channel group and data group. It never owns its targets.
type ChannelLink struct {
	Channel   *Channel
	Group     *ChannelGroup
	DataGroup *DataGroup
}

// MasterData decodes the master axis of the linked channel group.
func (cl ChannelLink) MasterData(r io.ReadSeeker) (signal.Value, error) {
	m := cl.Group.Master()
	if m == nil {
		return signal.Value{}, fmt.Errorf("channel group %q has no master channel", cl.Group.AcqName)
	}

	return m.Data(r, cl.DataGroup, cl.Group)
}

// NewDataGroup parses the DG block at offset, builds its channel groups and
// payload buffer, and runs the verification scan. A failed scan rejects the
// whole data group.
func NewDataGroup(r io.ReadSeeker, offset uint64) (*DataGroup, error) {
	desc, err := block.Get("DG")
	if err != nil {
		return nil, err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return nil, err
	}

	dg := &DataGroup{
		Comment: block.TextOrEmpty(r, info.Link("dg_md_comment")),
		layout:  make(map[uint64]recInfo),
		offsets: make(map[uint64][]uint64),
	}
	recIDSize, _ := info.FirstUint("dg_rec_id_size")
	switch recIDSize {
	case 0, 1, 2, 4, 8:
		dg.RecIDSize = uint8(recIDSize)
	default:
		return nil, fmt.Errorf("dg at 0x%x record id size %d: %w", offset, recIDSize, errs.ErrDataCorrupt)
	}

	cgLinks, err := block.Chain(r, "CG", info.Link("dg_cg_first"))
	if err != nil {
		return nil, err
	}
	for _, link := range cgLinks {
		cg, err := NewChannelGroup(r, link)
		if err != nil {
			slog.Warn("skipping channel group", "offset", link, "err", err)
			continue
		}
		dg.groups = append(dg.groups, cg)
		dg.layout[cg.RecordID] = recInfo{
			recordBytes: cg.SampleBytes(),
			cycles:      cg.CycleCount,
			vlsd:        cg.IsVLSD,
		}
	}
	dg.sorted = len(dg.groups) <= 1

	dg.buf, err = datablock.Open(r, info.Link("dg_data"))
	if err != nil {
		return nil, err
	}
	if err := dg.scan(r); err != nil {
		return nil, err
	}

	return dg, nil
}

// scan walks the payload once from virtual offset zero, counting cycles per
// record id and indexing record offsets when records carry ids. VLSD records
// are stepped over via their 4-byte length prefix.
func (dg *DataGroup) scan(r io.ReadSeeker) error {
	total := dg.buf.Len()
	counts := make(map[uint64]uint64)
	var pos uint64

	if dg.RecIDSize == 0 {
		if len(dg.groups) > 0 {
			cg := dg.groups[0]
			rb := uint64(cg.SampleBytes())
			if rb > 0 {
				for pos < total {
					pos += rb
					counts[cg.RecordID]++
				}
			}
		}
	} else {
		var idBuf [8]byte
		var lenBuf [4]byte
		le := endian.GetLittleEndianEngine()
		for pos < total {
			if err := dg.buf.ReadAt(r, pos, idBuf[:dg.RecIDSize]); err != nil {
				return err
			}
			recID := encoding.Uint(idBuf[:dg.RecIDSize], le)
			pos += uint64(dg.RecIDSize)
			li, ok := dg.layout[recID]
			if !ok {
				return fmt.Errorf("record id %d not declared by any channel group: %w", recID, errs.ErrDataCorrupt)
			}
			dg.offsets[recID] = append(dg.offsets[recID], pos)
			if li.vlsd {
				if err := dg.buf.ReadAt(r, pos, lenBuf[:]); err != nil {
					return err
				}
				pos += 4 + uint64(le.Uint32(lenBuf[:]))
			} else {
				pos += uint64(li.recordBytes)
			}
			counts[recID]++
		}
	}

	if pos != total {
		return fmt.Errorf("payload scan ended at %d of %d bytes: %w", pos, total, errs.ErrDataCorrupt)
	}
	for recID, li := range dg.layout {
		if li.cycles != counts[recID] {
			return fmt.Errorf("record id %d counted %d cycles, declared %d: %w",
				recID, counts[recID], li.cycles, errs.ErrDataCorrupt)
		}
	}

	return nil
}

// IsSorted reports whether the payload holds records of at most one channel
// group.
func (dg *DataGroup) IsSorted() bool {
	return dg.sorted
}

// ChannelGroups returns the owned channel groups.
func (dg *DataGroup) ChannelGroups() []*ChannelGroup {
	return dg.groups
}

// NthChannelGroup returns the i-th channel group.
func (dg *DataGroup) NthChannelGroup(i int) *ChannelGroup {
	if i < 0 || i >= len(dg.groups) {
		return nil
	}

	return dg.groups[i]
}

// ChannelNames returns the expanded channel names of every owned group.
func (dg *DataGroup) ChannelNames() []string {
	var names []string
	for _, cg := range dg.groups {
		names = append(names, cg.ChannelNames()...)
	}

	return names
}

// Buffer returns the payload buffer.
func (dg *DataGroup) Buffer() datablock.Buffer {
	return dg.buf
}

// CycleOffset returns the virtual offset of cycle i of the given record id.
// Payloads without record ids are pure arithmetic; id-bearing payloads
// answer from the scan index.
func (dg *DataGroup) CycleOffset(recID, i uint64) (uint64, bool) {
	li, ok := dg.layout[recID]
	if !ok || i >= li.cycles {
		return 0, false
	}
	if dg.RecIDSize == 0 {
		return i * uint64(li.recordBytes), true
	}
	offs := dg.offsets[recID]
	if i >= uint64(len(offs)) {
		return 0, false
	}

	return offs[i], true
}

// ReadRecordInto reads cycle i of the record id into dst, which must span
// the group's record bytes.
func (dg *DataGroup) ReadRecordInto(r io.ReadSeeker, recID, i uint64, dst []byte) error {
	off, ok := dg.CycleOffset(recID, i)
	if !ok {
		return fmt.Errorf("cycle %d of record id %d: %w", i, recID, errs.ErrOutOfRange)
	}

	return dg.buf.ReadAt(r, off, dst)
}

func (dg *DataGroup) String() string {
	s := fmt.Sprintf("DataGroup: %d channel groups, %d payload bytes, sorted=%v",
		len(dg.groups), dg.buf.Len(), dg.sorted)
	for i, cg := range dg.groups {
		s += fmt.Sprintf("\n  ChannelGroup[%d] %q: %d cycles, %d record bytes",
			i, cg.AcqName, cg.CycleCount, cg.SampleBytes())
		for _, cn := range cg.Channels() {
			s += "\n    " + cn.String()
		}
	}

	return s
}

// RecordBytes returns a copy of cycle i of the given record id.
func (dg *DataGroup) RecordBytes(r io.ReadSeeker, recID, i uint64) ([]byte, error) {
	li, ok := dg.layout[recID]
	if !ok {
		return nil, fmt.Errorf("record id %d: %w", recID, errs.ErrOutOfRange)
	}
	dst := make([]byte, li.recordBytes)
	if err := dg.ReadRecordInto(r, recID, i, dst); err != nil {
		return nil, err
	}

	return dst, nil
}
