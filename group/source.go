package group

import (
	"io"

	"github.com/asamkit/mf4/block"
)

// SourceType is the acquisition source kind from si_type.
type SourceType uint8

const (
	SourceOther SourceType = 0
	SourceECU   SourceType = 1
	SourceBus   SourceType = 2
	SourceIO    SourceType = 3
	SourceTool  SourceType = 4
	SourceUser  SourceType = 5
)

func (t SourceType) String() string {
	switch t {
	case SourceECU:
		return "ECU"
	case SourceBus:
		return "Bus"
	case SourceIO:
		return "IO"
	case SourceTool:
		return "Tool"
	case SourceUser:
		return "User"
	default:
		return "Other"
	}
}

// BusType is the bus kind from si_bus_type.
type BusType uint8

const (
	BusNone     BusType = 0
	BusOther    BusType = 1
	BusCAN      BusType = 2
	BusLIN      BusType = 3
	BusMOST     BusType = 4
	BusFlexRay  BusType = 5
	BusKLine    BusType = 6
	BusEthernet BusType = 7
	BusUSB      BusType = 8
)

func (t BusType) String() string {
	switch t {
	case BusNone:
		return "None"
	case BusCAN:
		return "CAN"
	case BusLIN:
		return "LIN"
	case BusMOST:
		return "MOST"
	case BusFlexRay:
		return "FlexRay"
	case BusKLine:
		return "KLine"
	case BusEthernet:
		return "Ethernet"
	case BusUSB:
		return "USB"
	default:
		return "Other"
	}
}

// SourceInfo describes where a channel or channel group was acquired (SI
// block). The zero value stands in for a nil source link.
type SourceInfo struct {
	Name      string
	Path      string
	Comment   string
	Type      SourceType
	Bus       BusType
	Simulated bool
}

// NewSourceInfo parses the SI block at offset. A nil offset yields the zero
// value.
func NewSourceInfo(r io.ReadSeeker, offset uint64) (SourceInfo, error) {
	if offset == 0 {
		return SourceInfo{}, nil
	}
	desc, err := block.Get("SI")
	if err != nil {
		return SourceInfo{}, err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return SourceInfo{}, err
	}

	si := SourceInfo{
		Name:    block.TextOrEmpty(r, info.Link("si_tx_name")),
		Path:    block.TextOrEmpty(r, info.Link("si_tx_path")),
		Comment: block.TextOrEmpty(r, info.Link("si_md_comment")),
	}
	if t, ok := info.FirstUint("si_type"); ok && t <= uint64(SourceUser) {
		si.Type = SourceType(t)
	}
	if b, ok := info.FirstUint("si_bus_type"); ok {
		if b <= uint64(BusUSB) {
			si.Bus = BusType(b)
		} else {
			si.Bus = BusOther
		}
	}
	flags, _ := info.FirstUint("si_flags")
	si.Simulated = flags&0x01 != 0

	return si, nil
}

func (s SourceInfo) String() string {
	return s.Name + "." + s.Type.String() + "." + s.Bus.String()
}
