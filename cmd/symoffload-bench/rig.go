package main

import (
	"fmt"
	"sync"

	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/engine/swengine"
	"github.com/usnistgov/symoffload/mgmt/offloadgql"
	"github.com/usnistgov/symoffload/offload"
	"go.uber.org/multierr"
)

type rigConfig struct {
	IOMMU   dma.IOMMUConfig `json:"iommu,omitempty"`
	Engine  swengine.Config `json:"engine,omitempty"`
	Offload offload.Config  `json:"offload,omitempty"`
}

// tracer keeps a copy of the most recently submitted descriptor.
type tracer struct {
	*swengine.Engine
	mu   sync.Mutex
	last engine.OpDescriptor
}

func (t *tracer) Submit(op *engine.OpDescriptor, now bool) error {
	t.mu.Lock()
	t.last = *op
	t.mu.Unlock()
	return t.Engine.Submit(op, now)
}

func (t *tracer) Last() engine.OpDescriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// rig is a driver on top of a software engine.
type rig struct {
	m   *dma.IOMMU
	eng *tracer
	d   *offload.Driver
}

func openRig(cfg rigConfig) (r *rig, e error) {
	r = &rig{m: dma.NewIOMMU(cfg.IOMMU)}
	r.eng = &tracer{Engine: swengine.New(r.m, cfg.Engine)}
	if r.d, e = offload.New(r.eng, r.m, cfg.Offload); e != nil {
		r.eng.Close()
		return nil, e
	}
	offloadgql.Bind(r.d)
	return r, nil
}

func (r *rig) Close() (e error) {
	offloadgql.Bind(nil)
	e = multierr.Append(r.d.Close(), r.eng.Close())
	if n := r.m.CountMappings(); n > 0 {
		e = multierr.Append(e, fmt.Errorf("%d DMA mappings leaked", n))
	}
	return e
}
