package group

import (
	"io"
	"log/slog"

	"github.com/asamkit/mf4/block"
)

// cgVlsdFlag is bit 0 of cg_flags: the group stores variable-length signal
// data records instead of fixed-length samples.
const cgVlsdFlag = 0x0001

// ChannelGroup is one parsed CG block with its expanded channel list.
type ChannelGroup struct {
	AcqName   string
	AcqSource SourceInfo
	Comment   string
	PathSep   string

	RecordID   uint64
	CycleCount uint64
	DataBytes  uint32
	InvalBytes uint32
	Flags      uint16
	IsVLSD     bool
	// TotalBytes is the payload byte count of this group: record bytes times
	// cycle count, or for a VLSD group the packed 64-bit total.
	TotalBytes uint64

	channels []*Channel
	master   *Channel
}

// NewChannelGroup parses the CG block at offset and its CN chain. Channels
// that fail to parse are logged and skipped so one corrupt channel does not
// take the whole group down.
func NewChannelGroup(r io.ReadSeeker, offset uint64) (*ChannelGroup, error) {
	desc, err := block.Get("CG")
	if err != nil {
		return nil, err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return nil, err
	}

	cg := &ChannelGroup{
		AcqName: block.TextOrEmpty(r, info.Link("cg_tx_acq_name")),
		Comment: block.TextOrEmpty(r, info.Link("cg_md_comment")),
	}
	cg.AcqSource, err = NewSourceInfo(r, info.Link("cg_si_acq_source"))
	if err != nil {
		return nil, err
	}
	switch sep, _ := info.FirstUint("cg_path_separator"); sep {
	case 0x2F:
		cg.PathSep = "/"
	case 0x5C:
		cg.PathSep = "\\"
	default:
		cg.PathSep = "."
	}

	cg.RecordID, _ = info.FirstUint("cg_record_id")
	cg.CycleCount, _ = info.FirstUint("cg_cycle_count")
	if v, ok := info.FirstUint("cg_data_bytes"); ok {
		cg.DataBytes = uint32(v)
	}
	if v, ok := info.FirstUint("cg_inval_bytes"); ok {
		cg.InvalBytes = uint32(v)
	}
	if v, ok := info.FirstUint("cg_flags"); ok {
		cg.Flags = uint16(v)
	}

	if cg.Flags&cgVlsdFlag != 0 {
		cg.IsVLSD = true
		cg.TotalBytes = uint64(cg.DataBytes) | uint64(cg.InvalBytes)<<32

		return cg, nil
	}
	cg.TotalBytes = uint64(cg.DataBytes+cg.InvalBytes) * cg.CycleCount

	links, err := block.Chain(r, "CN", info.Link("cg_cn_first"))
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		cn, err := NewChannel(r, link)
		if err != nil {
			slog.Warn("skipping channel", "offset", link, "err", err)
			continue
		}
		cg.addChannel(cn)
	}

	return cg, nil
}

// addChannel renames bus-event channels, keeps the master aside, and expands
// array templates and struct parents into the flat channel list.
func (cg *ChannelGroup) addChannel(cn *Channel) {
	cg.renameBusEvent(cn)
	switch {
	case cn.IsMaster():
		cg.master = cn
	case cn.Array != nil:
		cg.channels = append(cg.channels, expandArray(cn)...)
	case cn.IsComposition():
		cg.channels = append(cg.channels, cn)
		cg.channels = append(cg.channels, cn.SubChannels...)
	default:
		cg.channels = append(cg.channels, cn)
	}
}

// renameBusEvent prefixes bus-event channels with the acquisition name and
// their source name or path, so bus logging does not produce duplicate
// channel names.
func (cg *ChannelGroup) renameBusEvent(cn *Channel) {
	if !cn.IsBusEvent() || cg.AcqName == "" {
		return
	}
	name := cg.AcqName + "."
	switch {
	case cn.Source.Name != "":
		name += cn.Source.Name
	case cn.Source.Path != "":
		name += cn.Source.Path
	}
	cn.Name = name
}

// expandArray clones the template once per element with the element's name
// and byte offset, in row-major order.
func expandArray(cn *Channel) []*Channel {
	ca := cn.Array
	indexes := ca.Indexes()
	names := ca.Names(cn.Name)
	out := make([]*Channel, 0, len(indexes))
	for i, index := range indexes {
		off, err := ca.ByteOffset(index)
		if err != nil {
			slog.Warn("skipping array element", "channel", names[i], "err", err)
			continue
		}
		out = append(out, cn.cloneForElement(names[i], off))
	}

	return out
}

// SampleBytes returns the record length of this group, data plus invalid
// bytes.
func (cg *ChannelGroup) SampleBytes() uint32 {
	return cg.DataBytes + cg.InvalBytes
}

// Channels returns the expanded channel list; the master is kept separate.
func (cg *ChannelGroup) Channels() []*Channel {
	return cg.channels
}

// Master returns the master channel, nil if the group has none.
func (cg *ChannelGroup) Master() *Channel {
	return cg.master
}

// NthChannel returns the i-th expanded channel.
func (cg *ChannelGroup) NthChannel(i int) *Channel {
	if i < 0 || i >= len(cg.channels) {
		return nil
	}

	return cg.channels[i]
}

// ChannelNames returns the names of the expanded channels.
func (cg *ChannelGroup) ChannelNames() []string {
	names := make([]string, len(cg.channels))
	for i, cn := range cg.channels {
		names[i] = cn.Name
	}

	return names
}
