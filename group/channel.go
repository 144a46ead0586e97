package group

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/asamkit/mf4/block"
	"github.com/asamkit/mf4/conversion"
	"github.com/asamkit/mf4/errs"
	"github.com/asamkit/mf4/format"
)

// cnBusEventFlag is bit 10 of cn_flags: the channel carries a bus event.
const cnBusEventFlag = 1 << 10

// Channel is one parsed CN block, immutable after open.
type Channel struct {
	Name       string
	Source     SourceInfo
	Conversion *conversion.Conversion
	Unit       string
	Comment    string

	Type       format.CnType
	Sync       format.SyncType
	DataType   format.DataType
	BitOffset  uint8
	ByteOffset uint32
	BitCount   uint32
	Flags      uint32

	// SubChannels holds the members of a compact struct, or the length
	// channel of an MLSD channel.
	SubChannels []*Channel
	// Array is the CA descriptor when the channel is an array template.
	Array *ChannelArray

	bytesNum        uint32
	master          bool
	dataLink        uint64
	compositionLink uint64
}

// NewChannel parses the CN block at offset, its conversion, source and
// composition sub-tree.
func NewChannel(r io.ReadSeeker, offset uint64) (*Channel, error) {
	desc, err := block.Get("CN")
	if err != nil {
		return nil, err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return nil, err
	}

	cn := &Channel{
		Name:    block.TextOrEmpty(r, info.Link("cn_tx_name")),
		Unit:    block.TextOrEmpty(r, info.Link("cn_md_unit")),
		Comment: block.TextOrEmpty(r, info.Link("cn_md_comment")),
	}
	cn.Source, err = NewSourceInfo(r, info.Link("cn_si_source"))
	if err != nil {
		return nil, err
	}
	cn.Conversion, err = conversion.New(r, info.Link("cn_cc_conversion"))
	if err != nil {
		return nil, err
	}

	cnType, _ := info.FirstUint("cn_type")
	cn.Type = format.CnType(cnType)
	switch cn.Type {
	case format.CnFixed, format.CnVLSD, format.CnMLSD, format.CnVirtualData:
		cn.master = false
	case format.CnMaster, format.CnVirtualMaster:
		cn.master = true
	default:
		return nil, fmt.Errorf("cn block at 0x%x has type %d: %w", offset, cnType, errs.ErrUnsupportedCnType)
	}

	syncType, _ := info.FirstUint("cn_sync_type")
	if syncType > uint64(format.SyncIndex) {
		return nil, fmt.Errorf("cn block at 0x%x has sync type %d: %w", offset, syncType, errs.ErrDataCorrupt)
	}
	cn.Sync = format.SyncType(syncType)

	dataType, _ := info.FirstUint("cn_data_type")
	if dataType > uint64(format.ByteArray) {
		return nil, fmt.Errorf("cn block at 0x%x has data type %d: %w", offset, dataType, errs.ErrUnsupportedDataType)
	}
	cn.DataType = format.DataType(dataType)

	bitOffset, _ := info.FirstUint("cn_bit_offset")
	cn.BitOffset = uint8(bitOffset)
	byteOffset, _ := info.FirstUint("cn_byte_offset")
	cn.ByteOffset = uint32(byteOffset)
	bitCount, _ := info.FirstUint("cn_bit_count")
	cn.BitCount = uint32(bitCount)
	cn.bytesNum = (cn.BitCount + 7) / 8
	flags, _ := info.FirstUint("cn_flags")
	cn.Flags = uint32(flags)
	cn.dataLink = info.Link("cn_data")
	cn.compositionLink = info.Link("cn_composition")

	if err := cn.parseComposition(r); err != nil {
		return nil, err
	}
	if cn.Type == format.CnMLSD {
		if cn.dataLink == 0 {
			return nil, fmt.Errorf("mlsd channel %q has no length channel: %w", cn.Name, errs.ErrUnsupportedCnType)
		}
		lengthCn, err := NewChannel(r, cn.dataLink)
		if err != nil {
			return nil, fmt.Errorf("mlsd channel %q: %w", cn.Name, err)
		}
		cn.SubChannels = []*Channel{lengthCn}
	}

	return cn, nil
}

// parseComposition resolves the cn_composition link: a CN chain makes the
// channel a compact struct (when the data type is BYTE), a CA block makes it
// an array template.
func (cn *Channel) parseComposition(r io.ReadSeeker) error {
	if cn.compositionLink == 0 {
		return nil
	}
	tag, err := block.PeekTag(r, cn.compositionLink)
	if err != nil {
		return err
	}
	switch tag {
	case "CN":
		if cn.DataType != format.ByteArray {
			return nil
		}
		links, err := block.Chain(r, "CN", cn.compositionLink)
		if err != nil {
			return err
		}
		for _, link := range links {
			sub, err := NewChannel(r, link)
			if err != nil {
				slog.Warn("skipping composition member", "parent", cn.Name, "offset", link, "err", err)
				continue
			}
			cn.SubChannels = append(cn.SubChannels, sub)
		}
	case "CA":
		ca, err := NewChannelArray(r, cn.compositionLink)
		if err != nil {
			// CG- and DG-template arrays are not supported; the channel
			// stays scalar.
			slog.Warn("skipping channel array", "channel", cn.Name, "err", err)
			return nil
		}
		cn.Array = ca
	}

	return nil
}

// IsMaster reports whether the channel is the master axis of its group.
func (cn *Channel) IsMaster() bool {
	return cn.master
}

// IsBusEvent reports whether the channel carries a bus event.
func (cn *Channel) IsBusEvent() bool {
	return cn.Flags&cnBusEventFlag != 0
}

// IsComposition reports whether the channel is a compact struct parent.
func (cn *Channel) IsComposition() bool {
	return cn.compositionLink != 0 && cn.DataType == format.ByteArray && len(cn.SubChannels) > 0
}

// BytesNum returns the byte span of the channel's record field.
func (cn *Channel) BytesNum() uint32 {
	return cn.bytesNum
}

// DataLink returns the cn_data link offset (SD tree for VLSD channels).
func (cn *Channel) DataLink() uint64 {
	return cn.dataLink
}

// cloneForElement derives an array element channel from its template.
func (cn *Channel) cloneForElement(name string, byteOffset uint32) *Channel {
	elem := *cn
	elem.Name = name
	elem.ByteOffset = byteOffset
	elem.Array = nil

	return &elem
}

func (cn *Channel) String() string {
	return fmt.Sprintf("Channel %s: cn_type=%s sync=%s data_type=%s bits=%d", cn.Name, cn.Type, cn.Sync, cn.DataType, cn.BitCount)
}
