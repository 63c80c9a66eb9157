package dma_test

import (
	"testing"

	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/dma"
	"go4.org/must"
)

func TestIOMMU(t *testing.T) {
	assert, require := makeAR(t)
	m := newIOMMU(t, 0)

	_, e := m.Map(nil)
	assert.ErrorIs(e, dma.ErrEmpty)

	b0 := make([]byte, 100)
	b1 := make([]byte, 5000)
	a0, e := m.Map(b0)
	require.NoError(e)
	a1, e := m.Map(b1)
	require.NoError(e)
	assert.True(a0.Valid())
	assert.Zero(uint64(a0) % dma.PageSize)
	assert.Zero(uint64(a1) % dma.PageSize)
	assert.Greater(uint64(a1), uint64(a0.Add(len(b0))))

	r, e := m.Resolve(a1.Add(4990), 10)
	require.NoError(e)
	r[9] = 0xAA
	assert.EqualValues(0xAA, b1[4999])
	assert.Len(r, 10)
	assert.Equal(10, cap(r))

	_, e = m.Resolve(a1.Add(4990), 11)
	assert.ErrorIs(e, dma.ErrBounds)
	_, e = m.Resolve(a0.Add(200), 1)
	assert.ErrorIs(e, dma.ErrNotMapped)
	_, e = m.Resolve(a0-1, 1)
	assert.ErrorIs(e, dma.ErrNotMapped)

	assert.NoError(m.Sync(a0, 100, dma.SyncForDevice))
	assert.Error(m.Sync(a0, 101, dma.SyncForCPU))
	assert.EqualValues(1, m.CountSync(dma.SyncForDevice))
	assert.EqualValues(0, m.CountSync(dma.SyncForCPU))

	assert.NoError(m.Unmap(a0))
	assert.ErrorIs(m.Unmap(a0), dma.ErrNotMapped)
	_, e = m.Resolve(a0, 1)
	assert.ErrorIs(e, dma.ErrNotMapped)
	assert.NoError(m.Unmap(a1))
}

func TestMapBuffer(t *testing.T) {
	assert, require := makeAR(t)
	m := newIOMMU(t, 16)

	input := make([]byte, 70)
	testenv.RandBytes(input)
	bufs := testenv.SplitBytes(input, 40, 0, 30)
	bufs = append(bufs[:1], append([][]byte{{}}, bufs[1:]...)...)

	mp, e := dma.MapBuffer(m, bufs)
	require.NoError(e)
	assert.Equal(70, mp.Len())
	assert.Equal(2, m.CountMappings())

	segs := mp.Segments()
	var lens []int
	var output []byte
	for _, seg := range segs {
		lens = append(lens, seg.Len)
		b, e := m.Resolve(seg.Addr, seg.Len)
		require.NoError(e)
		output = append(output, b...)
	}
	assert.Equal([]int{16, 16, 8, 16, 14}, lens)
	assert.Equal(input, output)
	assert.Equal(segs[0].Addr.Add(16), segs[1].Addr)
	assert.Equal(segs[0].Addr.Add(16), segs[0].End())

	assert.NoError(mp.Sync(dma.SyncForDevice))
	assert.EqualValues(5, m.CountSync(dma.SyncForDevice))

	assert.NoError(mp.Unmap())
	assert.NoError(mp.Unmap())
	assert.Zero(mp.Len())

	var nilMapping *dma.Mapping
	assert.Nil(nilMapping.Segments())
	assert.NoError(nilMapping.Unmap())
}

func TestRegion(t *testing.T) {
	assert, require := makeAR(t)
	m := newIOMMU(t, 0)

	_, e := dma.NewRegion(m, 0)
	assert.ErrorIs(e, dma.ErrEmpty)

	r, e := dma.NewRegion(m, 6000)
	require.NoError(e)
	assert.Equal(6000, r.Len())
	assert.Len(r.Bytes(), 6000)
	assert.Equal(make([]byte, 6000), r.Bytes())

	s := r.Slice(4096, 8)
	copy(s, "ABCDEFGH")
	b, e := m.Resolve(r.Addr(4096), 8)
	require.NoError(e)
	assert.Equal([]byte("ABCDEFGH"), b)
	assert.Equal(8, cap(s))

	must.Close(r)
	assert.NoError(r.Close())
}
