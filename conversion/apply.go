package conversion

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"

	"github.com/asamkit/mf4/errs"
)

// ApplyNumeric maps one raw numeric sample to its physical value. Kinds that
// do not transform numbers pass the sample through unchanged.
func (c *Conversion) ApplyNumeric(x float64) float64 {
	switch c.kind {
	case Linear:
		return c.vals[0] + c.vals[1]*x
	case Rational:
		a, b, cc, d, e, f := c.vals[0], c.vals[1], c.vals[2], c.vals[3], c.vals[4], c.vals[5]
		return (a*x*x + b*x + cc) / (d*x*x + e*x + f)
	case Algebraic:
		return c.evalFormula(x)
	case TableInt:
		return c.tableLookup(x, true)
	case Table:
		return c.tableLookup(x, false)
	case ValueRange:
		return c.rangeLookup(x)
	default:
		return x
	}
}

func (c *Conversion) evalFormula(x float64) float64 {
	out, err := expr.Run(c.prog, map[string]any{"X": x})
	if err != nil {
		return math.NaN()
	}
	switch v := out.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return math.NaN()
	}
}

// tableLookup scans the interleaved (x, y) pairs for the first key at or
// above the input. Below the first key and above the last it clamps; in between it
// either interpolates linearly or steps left-constant.
func (c *Conversion) tableLookup(x float64, interpolate bool) float64 {
	n := len(c.vals) / 2
	if n == 0 {
		return x
	}
	xs := func(k int) float64 { return c.vals[2*k] }
	ys := func(k int) float64 { return c.vals[2*k+1] }

	// Stop at the first key >= x so an exact key match stays with the left
	// segment (left-constant stepping; interpolation is unaffected).
	k := 0
	for k < n && x > xs(k) {
		k++
	}
	switch {
	case k == 0:
		return ys(0)
	case k == n:
		return ys(n - 1)
	case interpolate:
		x0, y0 := xs(k-1), ys(k-1)
		x1, y1 := xs(k), ys(k)
		return y0 + (y1-y0)*(x-x0)/(x1-x0)
	default:
		return ys(k - 1)
	}
}

// rangeLookup returns the value of the first (lo, hi, value) triple whose
// range contains x, or the trailing default.
func (c *Conversion) rangeLookup(x float64) float64 {
	n := (len(c.vals) - 1) / 3
	for i := 0; i < n; i++ {
		lo, hi, y := c.vals[3*i], c.vals[3*i+1], c.vals[3*i+2]
		if lo <= x && x <= hi {
			return y
		}
	}

	return c.vals[len(c.vals)-1]
}

// Mixed is the result of a text-producing conversion applied to one numeric
// sample: either a text or, through a nested numeric scale, a real.
type Mixed struct {
	Text   string
	Real   float64
	IsText bool
}

// ApplyToMixed maps one raw numeric sample through a value-to-text or
// value-range-to-text rule.
func (c *Conversion) ApplyToMixed(x float64) (Mixed, error) {
	switch c.kind {
	case Value2Text:
		if len(c.refs) == 0 {
			return Mixed{}, fmt.Errorf("value-to-text without refs: %w", errs.ErrUnsupportedConversion)
		}
		ref := c.refs[len(c.refs)-1]
		for k, key := range c.vals {
			if x == key {
				ref = c.refs[k]
				break
			}
		}
		return c.dispatchRef(ref, x)
	case ValueRange2Text:
		if len(c.refs) == 0 {
			return Mixed{}, fmt.Errorf("value-range-to-text without refs: %w", errs.ErrUnsupportedConversion)
		}
		ref := c.refs[len(c.refs)-1]
		for k := 0; 2*k+1 < len(c.vals); k++ {
			if c.vals[2*k] <= x && x <= c.vals[2*k+1] {
				ref = c.refs[k]
				break
			}
		}
		return c.dispatchRef(ref, x)
	default:
		return Mixed{}, fmt.Errorf("%s applied as text conversion: %w", c.kind, errs.ErrUnsupportedConversion)
	}
}

// dispatchRef resolves one matched reference: a plain text yields the text,
// a nested numeric scale yields a real, a nested text table recurses.
func (c *Conversion) dispatchRef(ref Ref, x float64) (Mixed, error) {
	if ref.Scale == nil {
		return Mixed{Text: ref.Text, IsText: true}, nil
	}
	scale := ref.Scale
	if scale.IsNumeric() {
		return Mixed{Real: scale.ApplyNumeric(x)}, nil
	}
	if scale.kind == Value2Text || scale.kind == ValueRange2Text {
		return scale.ApplyToMixed(x)
	}

	return Mixed{}, fmt.Errorf("nested %s scale: %w", scale.kind, errs.ErrUnsupportedConversion)
}

// TextToValue maps raw strings through a text-to-value table. Unmatched
// inputs take the trailing default value.
func (c *Conversion) TextToValue(inputs []string) ([]float64, error) {
	if c.kind != Text2Value {
		return nil, fmt.Errorf("%s applied as text-to-value: %w", c.kind, errs.ErrUnsupportedConversion)
	}
	out := make([]float64, len(inputs))
	for i, in := range inputs {
		out[i] = c.vals[len(c.vals)-1]
		for k, ref := range c.refs {
			if in == ref.Text {
				out[i] = c.vals[k]
				break
			}
		}
	}

	return out, nil
}

// TextToText maps raw strings through a text-to-text table: (key, result)
// pairs with a trailing default reference.
func (c *Conversion) TextToText(inputs []string) ([]string, error) {
	if c.kind != Text2Text {
		return nil, fmt.Errorf("%s applied as text-to-text: %w", c.kind, errs.ErrUnsupportedConversion)
	}
	n := len(c.refs) / 2
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = c.refs[len(c.refs)-1].Text
		for k := 0; k < n; k++ {
			if in == c.refs[2*k].Text {
				out[i] = c.refs[2*k+1].Text
				break
			}
		}
	}

	return out, nil
}
