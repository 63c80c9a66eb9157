package session_test

import (
	"testing"
	"time"

	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/engine/swengine"
	"github.com/usnistgov/symoffload/request"
	"github.com/usnistgov/symoffload/session"
	"github.com/usnistgov/symoffload/sgl"
	"go4.org/must"
)

var makeAR = testenv.MakeAR

type fixture struct {
	t     testing.TB
	m     *dma.IOMMU
	eng   *swengine.Engine
	cache *session.Cache
}

func newFixture(t testing.TB, cfg session.Config) *fixture {
	f := &fixture{
		t: t,
		m: dma.NewIOMMU(dma.IOMMUConfig{}),
	}
	f.eng = swengine.New(f.m, swengine.Config{})
	f.eng.RegisterCallback(func(op *engine.OpDescriptor, status error, verified bool) {})
	f.cache = session.New(f.eng, f.m, cfg)
	t.Cleanup(func() {
		must.Close(f.eng)
		if n := f.m.CountMappings(); n != 0 {
			t.Errorf("%d mappings leaked", n)
		}
	})
	return f
}

func (f *fixture) newPair(params request.SessionParams) *session.Pair {
	p, e := f.cache.NewPair(params)
	if e != nil {
		f.t.Fatal(e)
	}
	f.t.Cleanup(func() {
		if e := p.Close(); e != nil {
			f.t.Error(e)
		}
	})
	return p
}

func (f *fixture) ensure(p *session.Pair, req *request.Request) (*session.Half, error) {
	f.cache.Lock()
	defer f.cache.Unlock()
	return f.cache.EnsureReady(p, req)
}

// hold pauses the engine with one operation in flight on h.
// The returned function resumes the engine and waits until h is idle.
func (f *fixture) hold(h *session.Half) (resume func()) {
	r, e := dma.NewRegion(f.m, sgl.HeaderSize(1)+64)
	if e != nil {
		f.t.Fatal(e)
	}
	bl := sgl.New(1, r.Bytes(), r.Addr(0))
	bl.Append(dma.Segment{Addr: r.Addr(sgl.HeaderSize(1)), Len: 64})
	bl.Encode()

	f.eng.Pause()
	op := &engine.OpDescriptor{Session: h.Context(), SrcList: bl.Addr(), DstList: bl.Addr()}
	if e := f.eng.Submit(op, true); e != nil {
		f.eng.Resume()
		f.t.Fatal(e)
	}
	return func() {
		f.eng.Resume()
		deadline := time.Now().Add(5 * time.Second)
		for busy, _ := f.eng.QueryBusy(h.Context()); busy; busy, _ = f.eng.QueryBusy(h.Context()) {
			if time.Now().After(deadline) {
				f.t.Fatal("session still busy")
			}
			time.Sleep(time.Millisecond)
		}
		must.Close(r)
	}
}

// failingEngine fails InitSession after the context has been allocated.
type failingEngine struct {
	*swengine.Engine
}

func (failingEngine) InitSession(params engine.SessionParams, ctx *engine.SessionContext) error {
	return engine.ErrInvalid
}
