package swengine_test

import (
	"testing"
	"time"

	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/engine/swengine"
	"github.com/usnistgov/symoffload/sgl"
	"go4.org/must"
)

var makeAR = testenv.MakeAR

type completion struct {
	op       *engine.OpDescriptor
	status   error
	verified bool
}

type fixture struct {
	t    testing.TB
	m    *dma.IOMMU
	eng  *swengine.Engine
	done chan completion
}

func newFixture(t testing.TB, cfg swengine.Config) *fixture {
	f := &fixture{
		t:    t,
		m:    dma.NewIOMMU(dma.IOMMUConfig{}),
		done: make(chan completion, 256),
	}
	f.eng = swengine.New(f.m, cfg)
	if e := f.eng.RegisterCallback(func(op *engine.OpDescriptor, status error, verified bool) {
		f.done <- completion{op, status, verified}
	}); e != nil {
		t.Fatal(e)
	}
	t.Cleanup(func() {
		must.Close(f.eng)
		if n := f.m.CountMappings(); n != 0 {
			t.Errorf("%d mappings leaked", n)
		}
	})
	return f
}

// session initializes a session context.
func (f *fixture) session(params engine.SessionParams) *engine.SessionContext {
	size, e := f.eng.SessionContextSize(params)
	if e != nil {
		f.t.Fatal(e)
	}
	r := f.region(make([]byte, size))
	ctx := &engine.SessionContext{Mem: r, Len: size}
	if e := f.eng.InitSession(params, ctx); e != nil {
		f.t.Fatal(e)
	}
	f.t.Cleanup(func() { f.eng.RemoveSession(ctx) })
	return ctx
}

// region allocates device memory initialized with b.
func (f *fixture) region(b []byte) *dma.Region {
	r, e := dma.NewRegion(f.m, max(1, len(b)))
	if e != nil {
		f.t.Fatal(e)
	}
	copy(r.Bytes(), b)
	f.t.Cleanup(func() { must.Close(r) })
	return r
}

// list encodes a buffer list in device memory.
func (f *fixture) list(segs ...dma.Segment) dma.Addr {
	r := f.region(make([]byte, sgl.HeaderSize(len(segs))))
	bl := sgl.New(len(segs), r.Bytes(), r.Addr(0))
	for _, seg := range segs {
		if e := bl.Append(seg); e != nil {
			f.t.Fatal(e)
		}
	}
	bl.Encode()
	return bl.Addr()
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	testenv.RandBytes(b)
	return b
}

// whole returns a segment covering a region.
func whole(r *dma.Region) dma.Segment {
	return dma.Segment{Addr: r.Addr(0), Len: r.Len()}
}

func (f *fixture) wait() completion {
	select {
	case c := <-f.done:
		return c
	case <-time.After(5 * time.Second):
		f.t.Fatal("completion timeout")
	}
	return completion{}
}
