package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asamkit/mf4/errs"
	"github.com/asamkit/mf4/internal/fixture"
	"github.com/asamkit/mf4/signal"
)

func TestGetSchema(t *testing.T) {
	for _, tag := range []string{"DG", "HD", "CG", "TX", "MD", "CN", "CC", "SI", "CA", "DZ", "HL", "DL"} {
		d, err := Get(tag)
		require.NoError(t, err, tag)
		require.Equal(t, "##"+tag, d.ID)
	}

	_, err := Get("ZZ")
	require.ErrorIs(t, err, errs.ErrSchemaMissing)
}

func TestParseDG(t *testing.T) {
	b := fixture.NewBuilder()
	comment := b.TX("trace")
	dgOff := b.DG(fixture.DGSpec{Next: 0x1000, CgFirst: 0x2000, Data: 0x3000, Comment: comment, RecIDSize: 0})

	desc, err := Get("DG")
	require.NoError(t, err)
	info, err := desc.Parse(b.Reader(), dgOff)
	require.NoError(t, err)

	require.Len(t, info.Links, 4)
	require.Equal(t, uint64(0x1000), info.Link("dg_dg_next"))
	require.Equal(t, uint64(0x2000), info.Link("dg_cg_first"))
	require.Equal(t, uint64(0x3000), info.Link("dg_data"))
	require.Equal(t, comment, info.Link("dg_md_comment"))

	v, ok := info.Data("dg_rec_id_size")
	require.True(t, ok)
	require.Equal(t, signal.KindU8, v.Kind())
	size, ok := info.FirstUint("dg_rec_id_size")
	require.True(t, ok)
	require.Equal(t, uint64(0), size)

	reserved, ok := info.BytesData("dg_reserved")
	require.True(t, ok)
	require.Equal(t, make([]byte, 7), reserved)

	_, ok = info.Data("dg_rec_id_size1")
	require.False(t, ok)
	require.Equal(t, []string{"dg_rec_id_size", "dg_reserved"}, info.Fields())
}

func TestParseBadBlockID(t *testing.T) {
	b := fixture.NewBuilder()
	txOff := b.TX("oops")

	desc, err := Get("DG")
	require.NoError(t, err)
	_, err = desc.Parse(b.Reader(), txOff)
	require.ErrorIs(t, err, errs.ErrBadBlockID)
}

func TestParseNilOffset(t *testing.T) {
	desc, err := Get("DG")
	require.NoError(t, err)
	_, err = desc.Parse(fixture.NewBuilder().Reader(), 0)
	require.ErrorIs(t, err, errs.ErrBadBlockID)
}

// cnBlockWithTails builds a CN block with two attachment links and the
// default-x tail enabled (cn_flags bit 12).
func cnBlockWithTails(b *fixture.Builder) uint64 {
	data := fixture.NewPayload().
		U8(0).U8(0).U8(0).U8(0). // type, sync, data type, bit offset
		U32(0).                  // byte offset
		U32(8).                  // bit count
		U32(1 << 12).            // flags: default-x present
		U32(0).
		U8(0).Zero(1).
		U16(2). // attachment count
		F64(0).F64(0).F64(0).F64(0).F64(0).F64(0).
		Bytes()
	links := []uint64{
		0, 0, 0, 0, 0, 0, 0, 0, // fixed CN links
		0xA1, 0xA2, // attachments
		0xB1, 0xB2, 0xB3, // default-x triple
	}

	return b.Block("CN", links, data)
}

func TestCNLinkTails(t *testing.T) {
	b := fixture.NewBuilder()
	off := cnBlockWithTails(b)

	desc, err := Get("CN")
	require.NoError(t, err)
	info, err := desc.Parse(b.Reader(), off)
	require.NoError(t, err)

	require.Equal(t, []uint64{0xA1, 0xA2}, info.LinkSeq("cn_attachment_first"))
	require.Equal(t, []uint64{0xB1, 0xB2, 0xB3}, info.LinkSeq("cn_default_x"))
}

func TestCNLinkTailOverrun(t *testing.T) {
	b := fixture.NewBuilder()
	// Attachment count of 2 but only the 8 fixed links present.
	data := fixture.NewPayload().
		U8(0).U8(0).U8(0).U8(0).
		U32(0).U32(8).U32(0).U32(0).
		U8(0).Zero(1).
		U16(2).
		F64(0).F64(0).F64(0).F64(0).F64(0).F64(0).
		Bytes()
	off := b.Block("CN", make([]uint64, 8), data)

	desc, err := Get("CN")
	require.NoError(t, err)
	_, err = desc.Parse(b.Reader(), off)
	require.ErrorIs(t, err, errs.ErrLinkCountMismatch)
}

func TestCCRefBinding(t *testing.T) {
	b := fixture.NewBuilder()
	off := b.CC(fixture.CCSpec{
		Type: 7,
		Refs: []uint64{0x10, 0x20, 0x30},
		Vals: fixture.F64Bits(1, 2),
	})

	desc, err := Get("CC")
	require.NoError(t, err)
	info, err := desc.Parse(b.Reader(), off)
	require.NoError(t, err)

	require.Equal(t, []uint64{0x10, 0x20, 0x30}, info.LinkSeq("cc_ref"))
	count, _ := info.FirstUint("cc_ref_count")
	require.Equal(t, uint64(3), count)

	vals, ok := info.Data("cc_val")
	require.True(t, ok)
	require.Equal(t, 2, vals.Len())
}

func TestPeekTag(t *testing.T) {
	b := fixture.NewBuilder()
	off := b.TX("hello")

	tag, err := PeekTag(b.Reader(), off)
	require.NoError(t, err)
	require.Equal(t, "TX", tag)

	_, err = PeekTag(b.Reader(), 0)
	require.ErrorIs(t, err, errs.ErrBadBlockID)
}

func TestText(t *testing.T) {
	b := fixture.NewBuilder()
	txOff := b.TX("engine_speed")
	mdOff := b.Block("MD", nil, []byte("<meta/>\x00"))

	s, err := Text(b.Reader(), txOff)
	require.NoError(t, err)
	require.Equal(t, "engine_speed", s)

	s, err = Text(b.Reader(), mdOff)
	require.NoError(t, err)
	require.Equal(t, "<meta/>", s)

	require.Equal(t, "", TextOrEmpty(b.Reader(), 0))
	require.Equal(t, "engine_speed", TextOrEmpty(b.Reader(), txOff))
}

func TestTextWrongTag(t *testing.T) {
	b := fixture.NewBuilder()
	dgOff := b.DG(fixture.DGSpec{})

	_, err := Text(b.Reader(), dgOff)
	require.ErrorIs(t, err, errs.ErrBadBlockID)
}

func TestChain(t *testing.T) {
	b := fixture.NewBuilder()
	third := b.DG(fixture.DGSpec{})
	second := b.DG(fixture.DGSpec{Next: third})
	first := b.DG(fixture.DGSpec{Next: second})

	offsets, err := Chain(b.Reader(), "DG", first)
	require.NoError(t, err)
	require.Equal(t, []uint64{first, second, third}, offsets)

	offsets, err = Chain(b.Reader(), "DG", 0)
	require.NoError(t, err)
	require.Empty(t, offsets)
}

func TestChainCycle(t *testing.T) {
	b := fixture.NewBuilder()
	first := b.DG(fixture.DGSpec{})
	// Point the block at itself.
	b.PatchLink(first, 0, first)

	_, err := Chain(b.Reader(), "DG", first)
	require.ErrorIs(t, err, errs.ErrDataCorrupt)
}
