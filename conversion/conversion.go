// Package conversion implements the channel conversion rules (CC blocks)
// that map raw sample values to their physical representation.
package conversion

import (
	"fmt"
	"io"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/asamkit/mf4/block"
	"github.com/asamkit/mf4/errs"
)

// Kind is the conversion rule kind from cc_type.
type Kind uint8

const (
	OneToOne Kind = iota
	Linear
	Rational
	Algebraic
	TableInt // table with interpolation
	Table    // table without interpolation, left-constant
	ValueRange
	Value2Text
	ValueRange2Text
	Text2Value
	Text2Text
	Bitfield
	NotImplemented
)

func (k Kind) String() string {
	switch k {
	case OneToOne:
		return "OneToOne"
	case Linear:
		return "Linear"
	case Rational:
		return "Rational"
	case Algebraic:
		return "Algebraic"
	case TableInt:
		return "TableInt"
	case Table:
		return "Table"
	case ValueRange:
		return "ValueRange"
	case Value2Text:
		return "Value2Text"
	case ValueRange2Text:
		return "ValueRange2Text"
	case Text2Value:
		return "Text2Value"
	case Text2Text:
		return "Text2Text"
	case Bitfield:
		return "Bitfield"
	default:
		return "NotImplemented"
	}
}

// IsNumeric reports whether the kind produces numeric physical values.
func (k Kind) IsNumeric() bool {
	switch k {
	case OneToOne, Linear, Rational, Algebraic, TableInt, Table, ValueRange, Text2Value:
		return true
	default:
		return false
	}
}

// Ref is one cc_ref entry: either a plain text or a nested scale conversion.
type Ref struct {
	Text  string
	Scale *Conversion
}

// Conversion is one parsed conversion rule. Instances are immutable after
// construction.
type Conversion struct {
	Name       string
	Unit       string
	Comment    string
	InverseRef uint64

	kind    Kind
	vals    []float64 // layout depends on kind, see the cc_val notes per case
	masks   []uint64  // bitfield masks, raw
	refs    []Ref
	formula string
	prog    *vm.Program
}

// maxRefDepth bounds nested scale resolution so a reference cycle in the
// file cannot recurse forever.
const maxRefDepth = 32

// Default returns the identity conversion used for nil conversion links.
func Default() *Conversion {
	return &Conversion{kind: OneToOne}
}

// New parses the CC block at offset. A nil offset yields the identity
// conversion.
func New(r io.ReadSeeker, offset uint64) (*Conversion, error) {
	return newConversion(r, offset, 0)
}

func newConversion(r io.ReadSeeker, offset uint64, depth int) (*Conversion, error) {
	if offset == 0 {
		return Default(), nil
	}
	if depth > maxRefDepth {
		return nil, fmt.Errorf("conversion references nested deeper than %d: %w", maxRefDepth, errs.ErrUnsupportedConversion)
	}

	desc, err := block.Get("CC")
	if err != nil {
		return nil, err
	}
	info, err := desc.Parse(r, offset)
	if err != nil {
		return nil, err
	}

	c := &Conversion{
		Name:       block.TextOrEmpty(r, info.Link("cc_tx_name")),
		Unit:       block.TextOrEmpty(r, info.Link("cc_md_unit")),
		Comment:    block.TextOrEmpty(r, info.Link("cc_md_comment")),
		InverseRef: info.Link("cc_cc_inverse"),
		kind:       NotImplemented,
	}

	ccType, _ := info.FirstUint("cc_type")
	valCount, _ := info.FirstUint("cc_val_count")
	rawVals := rawCcVals(info)
	vals := make([]float64, len(rawVals))
	for i, v := range rawVals {
		vals[i] = math.Float64frombits(v)
	}
	refLinks := info.LinkSeq("cc_ref")

	switch ccType {
	case 0:
		c.kind = OneToOne
	case 1:
		if len(vals) == 2 {
			c.kind = Linear
			c.vals = vals
		}
	case 2:
		if len(vals) == 6 {
			c.kind = Rational
			c.vals = vals
		}
	case 3:
		if len(refLinks) >= 1 {
			c.formula = block.TextOrEmpty(r, refLinks[0])
			if prog, err := expr.Compile(c.formula); err == nil {
				c.kind = Algebraic
				c.prog = prog
			}
		}
	case 4:
		// Interleaved (key, value) pairs; cc_val_count counts the scalars.
		if valCount > 0 && valCount%2 == 0 && uint64(len(vals)) == valCount {
			c.kind = TableInt
			c.vals = vals
		}
	case 5:
		if valCount > 0 && valCount%2 == 0 && uint64(len(vals)) == valCount {
			c.kind = Table
			c.vals = vals
		}
	case 6:
		// Triples (lo, hi, value) with a trailing default scalar.
		if len(vals) >= 1 && len(vals)%3 == 1 {
			c.kind = ValueRange
			c.vals = vals
		}
	case 7:
		refs, err := resolveRefs(r, refLinks, depth)
		if err != nil {
			return nil, err
		}
		if len(refs) == len(vals)+1 {
			c.kind = Value2Text
			c.vals = vals
			c.refs = refs
		}
	case 8:
		refs, err := resolveRefs(r, refLinks, depth)
		if err != nil {
			return nil, err
		}
		if len(vals)%2 == 0 && len(refs) == len(vals)/2+1 {
			c.kind = ValueRange2Text
			c.vals = vals
			c.refs = refs
		}
	case 9:
		refs, err := resolveRefs(r, refLinks, depth)
		if err != nil {
			return nil, err
		}
		if len(vals) == len(refs)+1 {
			c.kind = Text2Value
			c.vals = vals
			c.refs = refs
		}
	case 10:
		refs, err := resolveRefs(r, refLinks, depth)
		if err != nil {
			return nil, err
		}
		if len(refs)%2 == 1 {
			c.kind = Text2Text
			c.refs = refs
		}
	case 11:
		refs, err := resolveRefs(r, refLinks, depth)
		if err != nil {
			return nil, err
		}
		c.kind = Bitfield
		c.masks = rawVals
		c.refs = refs
	}

	return c, nil
}

// rawCcVals returns cc_val as raw 64-bit words; most kinds reinterpret them
// as IEEE doubles, the bitfield kind keeps them as masks.
func rawCcVals(info *block.Info) []uint64 {
	v, ok := info.Data("cc_val")
	if !ok {
		return nil
	}
	raw, _ := v.Uints()

	return raw
}

// resolveRefs resolves each cc_ref link to either a text or a nested scale
// conversion. A nil link becomes an empty text ref.
func resolveRefs(r io.ReadSeeker, links []uint64, depth int) ([]Ref, error) {
	refs := make([]Ref, len(links))
	for i, link := range links {
		if link == 0 {
			continue
		}
		tag, err := block.PeekTag(r, link)
		if err != nil {
			return nil, err
		}
		switch tag {
		case "TX", "MD":
			text, err := block.Text(r, link)
			if err != nil {
				return nil, err
			}
			refs[i] = Ref{Text: text}
		case "CC":
			scale, err := newConversion(r, link, depth+1)
			if err != nil {
				return nil, err
			}
			refs[i] = Ref{Scale: scale}
		default:
			return nil, fmt.Errorf("cc_ref at 0x%x has tag %s: %w", link, tag, errs.ErrBadBlockID)
		}
	}

	return refs, nil
}

// Kind returns the rule kind.
func (c *Conversion) Kind() Kind {
	return c.kind
}

// IsNumeric reports whether applying the rule yields numeric values.
func (c *Conversion) IsNumeric() bool {
	return c.kind.IsNumeric()
}

// Formula returns the algebraic formula text, empty for other kinds.
func (c *Conversion) Formula() string {
	return c.formula
}

// Inverse is a placeholder: inverse conversions are not implemented.
func (c *Conversion) Inverse() (*Conversion, error) {
	return nil, fmt.Errorf("inverse conversion: %w", errs.ErrUnsupportedConversion)
}
