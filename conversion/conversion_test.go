package conversion

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asamkit/mf4/errs"
	"github.com/asamkit/mf4/internal/fixture"
)

func TestDefaultConversion(t *testing.T) {
	c := Default()
	require.Equal(t, OneToOne, c.Kind())
	require.True(t, c.IsNumeric())
	require.Equal(t, 42.5, c.ApplyNumeric(42.5))
}

func TestNilLinkYieldsDefault(t *testing.T) {
	c, err := New(fixture.NewBuilder().Reader(), 0)
	require.NoError(t, err)
	require.Equal(t, OneToOne, c.Kind())
}

func TestLinear(t *testing.T) {
	b := fixture.NewBuilder()
	off := b.CC(fixture.CCSpec{Type: 1, Vals: fixture.F64Bits(1000, 1)})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, Linear, c.Kind())
	require.True(t, c.IsNumeric())
	require.Equal(t, "", c.Unit)
	require.Equal(t, "", c.Comment)
	require.Equal(t, uint64(0), c.InverseRef)
	require.Equal(t, 2000.0, c.ApplyNumeric(1000.0))
}

func TestLinearIdentity(t *testing.T) {
	b := fixture.NewBuilder()
	off := b.CC(fixture.CCSpec{Type: 1, Vals: fixture.F64Bits(0, 1)})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, 1000.0, c.ApplyNumeric(1000.0))
}

func TestRational(t *testing.T) {
	b := fixture.NewBuilder()
	// (0x² + 2x + 4) / (0x² + 0x + 2) == x + 2
	off := b.CC(fixture.CCSpec{Type: 2, Vals: fixture.F64Bits(0, 2, 4, 0, 0, 2)})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, Rational, c.Kind())
	require.Equal(t, 7.0, c.ApplyNumeric(5.0))
}

func TestAlgebraic(t *testing.T) {
	b := fixture.NewBuilder()
	formula := b.TX("X * 2 + 1")
	off := b.CC(fixture.CCSpec{Type: 3, Refs: []uint64{formula}})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, Algebraic, c.Kind())
	require.True(t, c.IsNumeric())
	require.Equal(t, "X * 2 + 1", c.Formula())
	require.Equal(t, 7.0, c.ApplyNumeric(3.0))
}

func TestTableInt(t *testing.T) {
	b := fixture.NewBuilder()
	// Keys 0, 10, 20 with values 0, 100, 400.
	off := b.CC(fixture.CCSpec{Type: 4, Vals: fixture.F64Bits(0, 0, 10, 100, 20, 400)})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, TableInt, c.Kind())

	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"below first key", -5, 0},
		{"at first key", 0, 0},
		{"midpoint interpolates", 5, 50},
		{"at inner key", 10, 100},
		{"upper segment midpoint", 15, 250},
		{"above last key", 25, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.ApplyNumeric(tt.x))
		})
	}
}

func TestTableLeftConstant(t *testing.T) {
	b := fixture.NewBuilder()
	off := b.CC(fixture.CCSpec{Type: 5, Vals: fixture.F64Bits(0, 0, 10, 100, 20, 400)})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, Table, c.Kind())

	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"below first key", -5, 0},
		{"at first key", 0, 0},
		{"between keys stays left", 5, 0},
		{"at inner key stays left", 10, 0},
		{"just above inner key", 10.5, 100},
		{"at last key stays left", 20, 100},
		{"above last key clamps", 25, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.ApplyNumeric(tt.x))
		})
	}
}

func TestValueRange(t *testing.T) {
	b := fixture.NewBuilder()
	// (0..10)->1, (20..30)->2, default 99.
	off := b.CC(fixture.CCSpec{Type: 6, Vals: fixture.F64Bits(0, 10, 1, 20, 30, 2, 99)})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, ValueRange, c.Kind())

	require.Equal(t, 1.0, c.ApplyNumeric(5))
	require.Equal(t, 1.0, c.ApplyNumeric(10))
	require.Equal(t, 2.0, c.ApplyNumeric(20))
	// Between the triples falls through to the default.
	require.Equal(t, 99.0, c.ApplyNumeric(15))
	require.Equal(t, 99.0, c.ApplyNumeric(-1))
}

func TestValueRange2Text(t *testing.T) {
	b := fixture.NewBuilder()
	unit := b.TX("hundredfive")
	r1 := b.TX("Zero_to_one")
	r2 := b.TX("two_to_three")
	r3 := b.TX("fourteen_to_seventeen")
	r4 := b.TX("hundredfive")
	empty := b.TX("")
	off := b.CC(fixture.CCSpec{
		Unit: unit,
		Type: 8,
		Refs: []uint64{r1, r2, r3, r4, empty},
		Vals: fixture.F64Bits(0, 1, 2, 3, 14, 17, 105, 105),
	})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, ValueRange2Text, c.Kind())
	require.False(t, c.IsNumeric())
	require.Equal(t, "hundredfive", c.Unit)

	tests := []struct {
		x    float64
		want string
	}{
		{0.5, "Zero_to_one"},
		{1, "Zero_to_one"},
		{2.5, "two_to_three"},
		{105, "hundredfive"},
		{105.1, ""},
		{15.1, "fourteen_to_seventeen"},
	}
	for _, tt := range tests {
		m, err := c.ApplyToMixed(tt.x)
		require.NoError(t, err)
		require.True(t, m.IsText)
		require.Equal(t, tt.want, m.Text, "input %v", tt.x)
	}
}

func TestValue2Text(t *testing.T) {
	b := fixture.NewBuilder()
	unit := b.TX("unknown signal type")
	saw := b.TX("SawTooth")
	square := b.TX("Square")
	sinus := b.TX("Sinus")
	unknown := b.TX("unknown signal type")
	off := b.CC(fixture.CCSpec{
		Unit: unit,
		Type: 7,
		Refs: []uint64{saw, square, sinus, unknown},
		Vals: fixture.F64Bits(1, 2, 3),
	})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, Value2Text, c.Kind())
	require.Equal(t, "unknown signal type", c.Unit)

	tests := []struct {
		x    float64
		want string
	}{
		{15.1, "unknown signal type"},
		{3, "Sinus"},
		{2, "Square"},
		{1, "SawTooth"},
	}
	for _, tt := range tests {
		m, err := c.ApplyToMixed(tt.x)
		require.NoError(t, err)
		require.True(t, m.IsText)
		require.Equal(t, tt.want, m.Text, "input %v", tt.x)
	}
}

func TestValue2TextNestedScaleDefault(t *testing.T) {
	b := fixture.NewBuilder()
	zero := b.TX("zero")
	scale := b.CC(fixture.CCSpec{Type: 1, Vals: fixture.F64Bits(0, 10)})
	off := b.CC(fixture.CCSpec{
		Type: 7,
		Refs: []uint64{zero, scale},
		Vals: fixture.F64Bits(0),
	})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)

	m, err := c.ApplyToMixed(0)
	require.NoError(t, err)
	require.True(t, m.IsText)
	require.Equal(t, "zero", m.Text)

	// Unmatched input lands on the default, which is a numeric scale: the
	// result is a real, not a string.
	m, err = c.ApplyToMixed(4)
	require.NoError(t, err)
	require.False(t, m.IsText)
	require.Equal(t, 40.0, m.Real)
}

func TestText2Value(t *testing.T) {
	b := fixture.NewBuilder()
	on := b.TX("on")
	offTx := b.TX("off")
	off := b.CC(fixture.CCSpec{
		Type: 9,
		Refs: []uint64{on, offTx},
		Vals: fixture.F64Bits(1, 0, -1),
	})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, Text2Value, c.Kind())
	require.True(t, c.IsNumeric())

	vals, err := c.TextToValue([]string{"on", "off", "hmm"})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 0, -1}, vals)
}

func TestText2Text(t *testing.T) {
	b := fixture.NewBuilder()
	k1 := b.TX("DE")
	v1 := b.TX("Germany")
	k2 := b.TX("FR")
	v2 := b.TX("France")
	def := b.TX("unknown")
	off := b.CC(fixture.CCSpec{
		Type: 10,
		Refs: []uint64{k1, v1, k2, v2, def},
	})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, Text2Text, c.Kind())

	out, err := c.TextToText([]string{"FR", "DE", "XX"})
	require.NoError(t, err)
	require.Equal(t, []string{"France", "Germany", "unknown"}, out)
}

func TestBitfieldIsNotApplied(t *testing.T) {
	b := fixture.NewBuilder()
	r1 := b.TX("bit0")
	off := b.CC(fixture.CCSpec{Type: 11, Refs: []uint64{r1}, Vals: []uint64{0x01}})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, Bitfield, c.Kind())
	require.False(t, c.IsNumeric())

	_, err = c.ApplyToMixed(1)
	require.ErrorIs(t, err, errs.ErrUnsupportedConversion)
}

func TestRefCycleIsRejected(t *testing.T) {
	b := fixture.NewBuilder()
	// A value-to-text conversion whose default ref points back at itself.
	off := b.CC(fixture.CCSpec{
		Type: 7,
		Refs: []uint64{0xDEAD}, // patched below
		Vals: fixture.F64Bits(),
	})
	b.PatchLink(off, 4, off)

	_, err := New(b.Reader(), off)
	require.ErrorIs(t, err, errs.ErrUnsupportedConversion)
}

func TestUnknownTypeIsNotImplemented(t *testing.T) {
	b := fixture.NewBuilder()
	off := b.CC(fixture.CCSpec{Type: 42})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, NotImplemented, c.Kind())
	require.False(t, c.IsNumeric())
}

func TestInverseIsPlaceholder(t *testing.T) {
	b := fixture.NewBuilder()
	off := b.CC(fixture.CCSpec{Type: 1, Vals: fixture.F64Bits(1, 2)})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	_, err = c.Inverse()
	require.ErrorIs(t, err, errs.ErrUnsupportedConversion)
}

func TestAlgebraicBadFormula(t *testing.T) {
	b := fixture.NewBuilder()
	formula := b.TX("X ++* 2")
	off := b.CC(fixture.CCSpec{Type: 3, Refs: []uint64{formula}})

	c, err := New(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, NotImplemented, c.Kind())
}
