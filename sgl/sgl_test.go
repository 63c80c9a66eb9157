package sgl_test

import (
	"math/rand"
	"testing"

	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/sgl"
)

func gather(t *testing.T, m dma.Mapper, segs []dma.Segment) (b []byte) {
	for _, seg := range segs {
		s, e := m.Resolve(seg.Addr, seg.Len)
		if e != nil {
			t.Fatal(e)
		}
		b = append(b, s...)
	}
	return b
}

func TestPopulateRoundtrip(t *testing.T) {
	assert, require := makeAR(t)
	m := dma.NewIOMMU(dma.IOMMUConfig{MaxSegmentSize: 64})

	for i := 0; i < 200; i++ {
		input := make([]byte, 1+rand.Intn(600))
		testenv.RandBytes(input)
		var sizes []int
		for n := 0; n < len(input); {
			size := rand.Intn(100)
			sizes = append(sizes, size)
			n += size
		}
		mp, e := dma.MapBuffer(m, testenv.SplitBytes(input, sizes...))
		require.NoError(e)

		skip := rand.Intn(len(input))
		bl := sgl.New(64, nil, 0)
		count, e := sgl.Populate(bl, mp.Segments(), 0, skip)
		require.NoError(e, "%d", i)
		assert.Equal(bl.Count(), count)
		assert.Equal(len(input)-skip, bl.TotalLen(), "%d", i)
		assert.Equal(input[skip:], gather(t, m, bl.Segments()), "%d", i)
		require.NoError(mp.Unmap())
	}
	assert.Zero(m.CountMappings())
}

func TestPopulateTwoRegions(t *testing.T) {
	assert, require := makeAR(t)
	m := dma.NewIOMMU(dma.IOMMUConfig{})

	aad := []byte("AADAADAADAAD")
	aadAddr, e := m.Map(aad)
	require.NoError(e)
	payload := []byte("..PAYLOADPAYLOAD")
	mp, e := dma.MapBuffer(m, testenv.SplitBytes(payload, 5, 5))
	require.NoError(e)
	defer mp.Unmap()

	bl := sgl.New(5, nil, 0)
	count, e := sgl.Populate(bl, []dma.Segment{{Addr: aadAddr, Len: len(aad)}}, 0, 0)
	require.NoError(e)
	assert.Equal(1, count)
	count, e = sgl.Populate(bl, mp.Segments(), 1, 2)
	require.NoError(e)
	assert.Equal(5, count)
	assert.Equal("AADAADAADAADPAYLOADPAYLOAD", string(gather(t, m, bl.Segments())))

	count, e = sgl.Populate(bl, mp.Segments(), 1, 5)
	require.NoError(e)
	assert.Equal(4, count)
	assert.Equal("AADAADAADAADLOADPAYLOAD", string(gather(t, m, bl.Segments())))

	_, e = sgl.Populate(bl, []dma.Segment{{Addr: aadAddr, Len: 1}}, 5, 0)
	assert.ErrorIs(e, sgl.ErrInvalidSkip)

	small := sgl.New(3, nil, 0)
	_, e = sgl.Populate(small, []dma.Segment{{Addr: aadAddr, Len: len(aad)}}, 0, 0)
	require.NoError(e)
	_, e = sgl.Populate(small, mp.Segments(), 1, 0)
	assert.ErrorIs(e, sgl.ErrTooManySegments)
}

func TestPrefixAlias(t *testing.T) {
	assert, require := makeAR(t)

	src := sgl.New(4, nil, 0)
	_, e := sgl.Populate(src, []dma.Segment{{Addr: 0x1000, Len: 10}, {Addr: 0x3000, Len: 20}}, 0, 0)
	require.NoError(e)

	dst := sgl.New(4, nil, 0)
	require.NoError(dst.Append(dma.Segment{Addr: 0x9000, Len: 1}))
	count, e := sgl.PopulatePrefix(dst, src, 15)
	require.NoError(e)
	assert.Equal(2, count)
	assert.Equal([]dma.Segment{{Addr: 0x1000, Len: 10}, {Addr: 0x3000, Len: 5}}, dst.Segments())

	count, e = sgl.PopulatePrefix(dst, src, 0)
	require.NoError(e)
	assert.Zero(count)

	_, e = sgl.PopulatePrefix(dst, src, 31)
	assert.Error(e)

	require.NoError(sgl.Alias(dst, src))
	assert.Equal(src.Segments(), dst.Segments())

	tiny := sgl.New(1, nil, 0)
	assert.ErrorIs(sgl.Alias(tiny, src), sgl.ErrTooManySegments)
}

func TestEncodeDecode(t *testing.T) {
	assert, require := makeAR(t)

	header := make([]byte, sgl.HeaderSize(3))
	bl := sgl.New(3, header, 0x5000)
	assert.EqualValues(0x5000, bl.Addr())
	require.NoError(bl.Append(dma.Segment{Addr: 0x1000, Len: 7}))
	require.NoError(bl.Append(dma.Segment{Addr: 0x2008, Len: 9}))
	bl.Encode()

	size, e := sgl.EncodedSize(header[:sgl.HeaderFixedSize])
	require.NoError(e)
	assert.Equal(sgl.HeaderSize(2), size)
	_, e = sgl.EncodedSize(header[:4])
	assert.ErrorIs(e, sgl.ErrShortHeader)

	segs, total, e := sgl.Decode(header)
	require.NoError(e)
	assert.Equal(16, total)
	assert.Equal(bl.Segments(), segs)

	_, _, e = sgl.Decode(header[:8])
	assert.ErrorIs(e, sgl.ErrShortHeader)
	_, _, e = sgl.Decode(header[:sgl.HeaderSize(1)])
	assert.ErrorIs(e, sgl.ErrShortHeader)

	header[8]++
	_, _, e = sgl.Decode(header)
	assert.Error(e)

	bl.Reset()
	assert.Zero(bl.Count())
	assert.Equal(make([]byte, len(header)), header)

	assert.Panics(func() { sgl.New(4, header, 0) })
}

func TestChooseAADPlacement(t *testing.T) {
	assert, _ := makeAR(t)

	tests := []struct {
		alg          engine.CipherAlgorithm
		aad          sgl.AADLocation
		payloadStart int
		placement    sgl.AADPlacement
	}{
		{engine.CipherAESCBC, sgl.AADLocation{}, 0, sgl.AADNone},
		{engine.CipherAESGCM, sgl.AADLocation{Len: 16}, 0, sgl.AADSeparate},
		{engine.CipherAESGCM, sgl.AADLocation{Len: 16, InBuffer: true}, 16, sgl.AADSeparate},
		{engine.CipherChaCha20Poly1305, sgl.AADLocation{Len: 8, InBuffer: true, Start: 4}, 12, sgl.AADSeparate},
		{engine.CipherAESCBC, sgl.AADLocation{Len: 16, InBuffer: true, Start: 0}, 16, sgl.AADEmbedded},
		{engine.CipherAESCBC, sgl.AADLocation{Len: 16, InBuffer: true, Start: 0}, 20, sgl.AADRelocated},
		{engine.CipherAESCTR, sgl.AADLocation{Len: 16}, 16, sgl.AADRelocated},
		{engine.CipherNone, sgl.AADLocation{Len: 16, InBuffer: true, Start: 8}, 24, sgl.AADEmbedded},
	}
	for i, tt := range tests {
		assert.Equal(tt.placement, sgl.ChooseAADPlacement(tt.alg, tt.aad, tt.payloadStart), "%d", i)
	}

	assert.True(sgl.DigestSeparated(engine.SessionParams{Operation: engine.OpHash}))
	assert.True(sgl.DigestSeparated(engine.SessionParams{Operation: engine.OpAlgChain}))
	assert.False(sgl.DigestSeparated(engine.SessionParams{Operation: engine.OpCipher}))
}
