package mf4

import (
	"bytes"
	"os"
	"testing"

	"github.com/klauspost/compress/flate"

	"github.com/stretchr/testify/require"

	"github.com/asamkit/mf4/errs"
	"github.com/asamkit/mf4/internal/fixture"
	"github.com/asamkit/mf4/signal"
)

// startNS is 2020-09-13T12:26:40Z.
const startNS = 1_600_000_000_000_000_000

func cnChain(b *fixture.Builder, specs ...fixture.CNSpec) uint64 {
	var next uint64
	for i := len(specs) - 1; i >= 0; i-- {
		s := specs[i]
		s.Next = next
		next = b.CN(s)
	}

	return next
}

// buildMeasurement assembles a complete single-group file: a time master in
// seconds and a speed channel behind a doubling linear conversion.
func buildMeasurement(t *testing.T) *fixture.Builder {
	t.Helper()
	b := fixture.NewFile("4.10", 410)
	hd := b.HD(0, startNS)

	timeName := b.TX("time")
	speedName := b.TX("speed")
	cc := b.CC(fixture.CCSpec{Type: 1, Vals: fixture.F64Bits(0, 2)}) // 2x

	cnFirst := cnChain(b,
		fixture.CNSpec{TxName: timeName, Type: 2, SyncType: 1, DataType: 4, ByteOffset: 0, BitCount: 64},
		fixture.CNSpec{TxName: speedName, Conversion: cc, DataType: 0, ByteOffset: 8, BitCount: 16},
	)

	records := fixture.NewPayload().
		F64(0.0).U16(10).
		F64(0.1).U16(20).
		F64(0.2).U16(30).
		Bytes()
	dt := b.DT(records)
	cg := b.CG(fixture.CGSpec{CnFirst: cnFirst, CycleCount: 3, DataBytes: 10})
	dg := b.DG(fixture.DGSpec{CgFirst: cg, Data: dt})
	b.PatchLink(hd, 0, dg)

	return b
}

func TestOpenMeasurement(t *testing.T) {
	b := buildMeasurement(t)
	r, err := NewReader(b.Reader())
	require.NoError(t, err)

	require.Equal(t, "4.10", r.Version())
	require.Equal(t, uint16(410), r.VersionNum())
	require.Equal(t, uint64(startNS), r.StartTimeNS())
	require.Equal(t, "2020-09-13 12:26:40.000000000", r.TimeStamp())
	require.True(t, r.IsSorted())
	require.Nil(t, r.CheckDuplicates())

	require.ElementsMatch(t, []string{"speed", "time"}, r.ChannelNames())

	// The master is addressable and its channel group discoverable.
	cl, ok := r.ChannelLink("time")
	require.True(t, ok)
	require.NotNil(t, cl.Group)
	require.Equal(t, uint64(3), cl.Group.CycleCount)

	speedLink, ok := r.ChannelLink("speed")
	require.True(t, ok)
	require.Same(t, cl.Group, speedLink.Group)
}

func TestGetData(t *testing.T) {
	b := buildMeasurement(t)
	r, err := NewReader(b.Reader())
	require.NoError(t, err)

	v, err := r.GetData("speed")
	require.NoError(t, err)
	require.Equal(t, signal.KindF64, v.Kind())
	f, _ := v.Floats()
	require.Equal(t, []float64{20, 40, 60}, f)

	raw, err := r.GetRawData("speed")
	require.NoError(t, err)
	require.Equal(t, signal.KindU16, raw.Kind())
	u, _ := raw.Uints()
	require.Equal(t, []uint64{10, 20, 30}, u)

	_, err = r.GetData("missing")
	require.Error(t, err)
}

func TestGetMasterData(t *testing.T) {
	b := buildMeasurement(t)
	r, err := NewReader(b.Reader())
	require.NoError(t, err)

	v, err := r.GetMasterData("speed")
	require.NoError(t, err)
	f, _ := v.Floats()
	require.Equal(t, []float64{0.0, 0.1, 0.2}, f)
	require.Equal(t, 1, r.masters.Len())

	// A second call is served from the cache and stays identical.
	again, err := r.GetMasterData("time")
	require.NoError(t, err)
	require.Equal(t, v, again)
	require.Equal(t, 1, r.masters.Len())
}

func TestProgressHook(t *testing.T) {
	b := buildMeasurement(t)
	var fractions []float64
	_, err := NewReader(b.Reader(), WithProgress(func(f float64) {
		fractions = append(fractions, f)
	}))
	require.NoError(t, err)

	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		require.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	require.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestNotAnMdfFile(t *testing.T) {
	b := fixture.NewBuilder() // no signature
	_, err := NewReader(b.Reader())
	require.ErrorIs(t, err, errs.ErrNotAnMdfFile)
}

func TestUnsupportedVersion(t *testing.T) {
	b := fixture.NewFile("3.30", 330)
	_, err := NewReader(b.Reader())
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}

func TestCheckDuplicates(t *testing.T) {
	b := fixture.NewFile("4.10", 410)
	hd := b.HD(0, startNS)

	mk := func(name string, next uint64) uint64 {
		cnName := b.TX(name)
		cnFirst := cnChain(b, fixture.CNSpec{TxName: cnName, DataType: 0, ByteOffset: 0, BitCount: 8})
		dt := b.DT([]byte{1})
		cg := b.CG(fixture.CGSpec{CnFirst: cnFirst, CycleCount: 1, DataBytes: 1})
		return b.DG(fixture.DGSpec{Next: next, CgFirst: cg, Data: dt})
	}
	dg2 := mk("rpm", 0)
	dg1 := mk("rpm", dg2)
	b.PatchLink(hd, 0, dg1)

	r, err := NewReader(b.Reader())
	require.NoError(t, err)
	require.Equal(t, []string{"rpm"}, r.CheckDuplicates())

	// The duplicate name still resolves (to the last occurrence).
	_, ok := r.ChannelLink("rpm")
	require.True(t, ok)
}

func TestUnsortedFile(t *testing.T) {
	b := fixture.NewFile("4.10", 410)
	hd := b.HD(0, startNS)

	aName := b.TX("alpha")
	bName := b.TX("beta")
	cnA := cnChain(b, fixture.CNSpec{TxName: aName, DataType: 0, ByteOffset: 0, BitCount: 8})
	cnB := cnChain(b, fixture.CNSpec{TxName: bName, DataType: 0, ByteOffset: 0, BitCount: 8})

	payload := []byte{
		1, 0xA0,
		2, 0xB0,
		1, 0xA1,
		2, 0xB1,
	}
	dt := b.DT(payload)
	cgB := b.CG(fixture.CGSpec{CnFirst: cnB, RecordID: 2, CycleCount: 2, DataBytes: 1})
	cgA := b.CG(fixture.CGSpec{Next: cgB, CnFirst: cnA, RecordID: 1, CycleCount: 2, DataBytes: 1})
	dg := b.DG(fixture.DGSpec{CgFirst: cgA, Data: dt, RecIDSize: 1})
	b.PatchLink(hd, 0, dg)

	r, err := NewReader(b.Reader())
	require.NoError(t, err)
	require.False(t, r.IsSorted())

	va, err := r.GetData("alpha")
	require.NoError(t, err)
	fa, _ := va.Floats()
	require.Equal(t, []float64{0xA0, 0xA1}, fa)

	vb, err := r.GetData("beta")
	require.NoError(t, err)
	fb, _ := vb.Floats()
	require.Equal(t, []float64{0xB0, 0xB1}, fb)
}

func TestCompressedPayload(t *testing.T) {
	b := fixture.NewFile("4.10", 410)
	hd := b.HD(0, startNS)

	name := b.TX("pressure")
	cnFirst := cnChain(b, fixture.CNSpec{TxName: name, DataType: 0, ByteOffset: 0, BitCount: 16})

	records := fixture.NewPayload().U16(100).U16(200).U16(300).Bytes()
	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(records)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	dz := b.DZ("DT", 0, uint64(len(records)), compressed.Bytes())
	cg := b.CG(fixture.CGSpec{CnFirst: cnFirst, CycleCount: 3, DataBytes: 2})
	dg := b.DG(fixture.DGSpec{CgFirst: cg, Data: dz})
	b.PatchLink(hd, 0, dg)

	r, err := NewReader(b.Reader())
	require.NoError(t, err)

	v, err := r.GetData("pressure")
	require.NoError(t, err)
	f, _ := v.Floats()
	require.Equal(t, []float64{100, 200, 300}, f)
}

func TestOpenFromDisk(t *testing.T) {
	b := buildMeasurement(t)
	path := t.TempDir() + "/measurement.mf4"
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	v, err := r.GetData("speed")
	require.NoError(t, err)
	require.Equal(t, 3, v.Len())
}
