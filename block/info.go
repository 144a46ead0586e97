package block

import (
	"fmt"

	"github.com/asamkit/mf4/errs"
	"github.com/asamkit/mf4/signal"
)

// Info is the result of one schema parse: the raw link vector, the ordered
// data fields, and the resolved link-name map.
type Info struct {
	ID    string
	Links []uint64

	fieldOrder []string
	data       map[string]signal.Value

	normal   map[string]uint64
	variable map[string][]uint64
}

// Link returns the offset bound to a logical link name, zero if absent or nil.
func (i *Info) Link(name string) uint64 {
	return i.normal[name]
}

// LinkSeq returns the offset sequence bound to a variable link tail such as
// cn_attachment_first, cn_default_x, cc_ref or dl_data.
func (i *Info) LinkSeq(name string) []uint64 {
	return i.variable[name]
}

// Fields returns the data field names in schema order.
func (i *Info) Fields() []string {
	return i.fieldOrder
}

// Data returns the raw value of a data field.
func (i *Info) Data(name string) (signal.Value, bool) {
	v, ok := i.data[name]
	return v, ok
}

// FirstUint returns the first element of an unsigned field.
func (i *Info) FirstUint(name string) (uint64, bool) {
	v, ok := i.data[name]
	if !ok {
		return 0, false
	}
	u, ok := v.Uints()
	if !ok || len(u) == 0 {
		return 0, false
	}

	return u[0], true
}

// FirstInt returns the first element of a signed field.
func (i *Info) FirstInt(name string) (int64, bool) {
	v, ok := i.data[name]
	if !ok {
		return 0, false
	}
	n, ok := v.Ints()
	if !ok || len(n) == 0 {
		return 0, false
	}

	return n[0], true
}

// FirstFloat returns the first element of a REAL field.
func (i *Info) FirstFloat(name string) (float64, bool) {
	v, ok := i.data[name]
	if !ok {
		return 0, false
	}
	f, ok := v.Floats()
	if !ok || len(f) == 0 {
		return 0, false
	}

	return f[0], true
}

// CharData returns a CHAR field as a string, untrimmed.
func (i *Info) CharData(name string) (string, bool) {
	v, ok := i.data[name]
	if !ok {
		return "", false
	}

	return v.Text()
}

// BytesData returns a BYTE field.
func (i *Info) BytesData(name string) ([]byte, bool) {
	v, ok := i.data[name]
	if !ok {
		return nil, false
	}

	return v.Bytes()
}

// bindLinks maps logical link names onto the raw link vector. Most blocks
// have a fixed 1-to-1 mapping in schema order; CN, CC and DL carry variable
// tails, and CA/LD binding is not implemented (raw data access only).
func (i *Info) bindLinks(d *Desc) error {
	switch i.ID {
	case "##CA", "##LD":
		return nil
	case "##CN":
		n, err := i.bindFixed(d)
		if err != nil {
			return err
		}
		atCount, _ := i.FirstUint("cn_attachment_count")
		if atCount > 0 {
			if n+int(atCount) > len(i.Links) {
				return fmt.Errorf("%s attachment links: %w", i.ID, errs.ErrLinkCountMismatch)
			}
			i.variable["cn_attachment_first"] = i.Links[n : n+int(atCount)]
			n += int(atCount)
		}
		flags, _ := i.FirstUint("cn_flags")
		if flags&(1<<12) != 0 {
			if n+3 > len(i.Links) {
				return fmt.Errorf("%s default-x links: %w", i.ID, errs.ErrLinkCountMismatch)
			}
			i.variable["cn_default_x"] = i.Links[n : n+3]
		}

		return nil
	case "##CC":
		n, err := i.bindFixed(d)
		if err != nil {
			return err
		}
		refCount, _ := i.FirstUint("cc_ref_count")
		if refCount > 0 {
			if n+int(refCount) > len(i.Links) {
				return fmt.Errorf("%s ref links: %w", i.ID, errs.ErrLinkCountMismatch)
			}
			i.variable["cc_ref"] = i.Links[n : n+int(refCount)]
		}

		return nil
	case "##DL":
		if len(i.Links) == 0 {
			return fmt.Errorf("%s: %w", i.ID, errs.ErrLinkCountMismatch)
		}
		i.normal["dl_dl_next"] = i.Links[0]
		i.variable["dl_data"] = i.Links[1:]

		return nil
	default:
		_, err := i.bindFixed(d)
		return err
	}
}

func (i *Info) bindFixed(d *Desc) (int, error) {
	n := 0
	for _, name := range d.Links {
		if n >= len(i.Links) {
			break
		}
		i.normal[name] = i.Links[n]
		n++
	}

	return n, nil
}
