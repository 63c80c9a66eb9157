// Package session implements the per-instance session cache.
//
// A logical session is a Pair of Halves, one per direction. Each Half is materialized in the
// engine on the first request that needs it.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/retry"
	"github.com/usnistgov/symoffload/core/logging"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/request"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var logger = logging.New("session")

// Half is one direction of a logical session.
type Half struct {
	dir    engine.Direction
	params engine.SessionParams
	ctx    *engine.SessionContext
}

// Direction returns the direction.
func (h *Half) Direction() engine.Direction {
	return h.dir
}

// Ready determines whether the engine context is materialized.
func (h *Half) Ready() bool {
	return h.ctx != nil
}

// Context returns the engine session context, or nil if not materialized.
func (h *Half) Context() *engine.SessionContext {
	return h.ctx
}

// Params returns resolved engine parameters.
func (h *Half) Params() engine.SessionParams {
	return h.params
}

// DigestLen returns resolved digest length.
func (h *Half) DigestLen() int {
	return h.params.DigestLen
}

// AADLen returns resolved AAD length.
func (h *Half) AADLen() int {
	return h.params.AADLen
}

// Pair is a logical session.
type Pair struct {
	cache  *Cache
	params request.SessionParams
	halves [2]Half
}

// Params returns session parameters.
func (p *Pair) Params() request.SessionParams {
	return p.params
}

// Half returns the half of a direction.
func (p *Pair) Half(dir engine.Direction) *Half {
	return &p.halves[dir&1]
}

// Close removes both halves.
func (p *Pair) Close() (e error) {
	p.cache.Lock()
	defer p.cache.Unlock()
	for i := range p.halves {
		e = multierr.Append(e, p.cache.remove(&p.halves[i]))
	}
	return e
}

// Counters contains session cache counters.
type Counters struct {
	Inits          uint64 `json:"inits"`
	Updates        uint64 `json:"updates"`
	Removals       uint64 `json:"removals"`
	RemoveFailures uint64 `json:"removeFailures"`
}

// Cache materializes session halves in an engine.
//
// Cache embeds the instance lock. EnsureReady must be called with the lock held.
type Cache struct {
	sync.Mutex
	eng engine.Engine
	m   dma.Mapper
	cfg Config

	nInits          atomic.Uint64
	nUpdates        atomic.Uint64
	nRemovals       atomic.Uint64
	nRemoveFailures atomic.Uint64
}

// New creates a Cache.
func New(eng engine.Engine, m dma.Mapper, cfg Config) *Cache {
	cfg.Teardown.applyDefaults()
	return &Cache{
		eng: eng,
		m:   m,
		cfg: cfg,
	}
}

// Config returns effective configuration.
func (c *Cache) Config() Config {
	return c.cfg
}

// NewPair creates an empty Pair bound to this cache.
// Unsupported parameters are rejected here.
func (c *Cache) NewPair(params request.SessionParams) (*Pair, error) {
	if _, e := Resolve(params, engine.Encrypt, 0); e != nil {
		return nil, e
	}
	p := &Pair{
		cache:  c,
		params: params,
	}
	p.halves[engine.Encrypt].dir = engine.Encrypt
	p.halves[engine.Decrypt].dir = engine.Decrypt
	return p, nil
}

// EnsureReady returns the materialized half for a request, initializing or updating it as needed.
// The caller must hold the cache lock.
func (c *Cache) EnsureReady(p *Pair, req *request.Request) (*Half, error) {
	dir := Direction(p.params, req.Op)
	h := p.Half(dir)
	aadLen := 0
	if p.params.Mode == request.ModeAEAD {
		aadLen = req.AADLength()
	}

	if h.ctx != nil {
		if h.params.AADLen == aadLen {
			return h, nil
		}
		busy, e := c.eng.QueryBusy(h.ctx)
		if e != nil {
			return nil, e
		}
		if busy {
			return nil, fmt.Errorf("%w: AAD length change on busy session", engine.ErrResource)
		}
		if e := c.remove(h); e != nil {
			return nil, e
		}
		c.nUpdates.Inc()
	}

	if e := c.materialize(p, h, aadLen); e != nil {
		return nil, e
	}
	return h, nil
}

func (c *Cache) materialize(p *Pair, h *Half, aadLen int) error {
	ep, e := Resolve(p.params, h.dir, aadLen)
	if e != nil {
		return e
	}
	if ep.HasHash() && ep.DigestLen == 0 {
		if ep.DigestLen, e = c.eng.DefaultDigestLen(ep.Hash); e != nil {
			return e
		}
	}
	ep.VerifyDigest = c.cfg.HardwareVerify && h.dir == engine.Decrypt && ep.HasHash()

	size, e := c.eng.SessionContextSize(ep)
	if e != nil {
		return e
	}
	mem, e := dma.NewRegion(c.m, size)
	if e != nil {
		return e
	}
	ctx := &engine.SessionContext{Mem: mem, Len: size}
	if e := c.eng.InitSession(ep, ctx); e != nil {
		return multierr.Append(e, mem.Close())
	}

	h.params, h.ctx = ep, ctx
	c.nInits.Inc()
	logger.Debug("session half initialized",
		zap.Stringer("dir", h.dir),
		zap.Stringer("ctx", ctx.Addr()),
		zap.Int("digest-len", ep.DigestLen),
		zap.Int("aad-len", ep.AADLen),
	)
	return nil
}

// Remove waits for a half to become idle, then removes it from the engine and frees its context.
// The caller must not hold the cache lock.
func (c *Cache) Remove(h *Half) error {
	c.Lock()
	defer c.Unlock()
	return c.remove(h)
}

func (c *Cache) remove(h *Half) error {
	if h.ctx == nil {
		return nil
	}

	if e := c.waitIdle(h.ctx); e != nil {
		c.nRemoveFailures.Inc()
		logger.Warn("session context still busy", zap.Stringer("dir", h.dir), zap.Stringer("ctx", h.ctx.Addr()))
		return e
	}
	if e := c.eng.RemoveSession(h.ctx); e != nil {
		c.nRemoveFailures.Inc()
		logger.Warn("session removal failed", zap.Stringer("ctx", h.ctx.Addr()), zap.Error(e))
		return e
	}

	e := h.ctx.Mem.Close()
	h.params, h.ctx = engine.SessionParams{}, nil
	c.nRemovals.Inc()
	return e
}

func (c *Cache) waitIdle(ctx *engine.SessionContext) error {
	policy := c.cfg.Teardown.Policy()
	for i := 0; ; i++ {
		busy, e := c.eng.QueryBusy(ctx)
		if e != nil {
			return e
		}
		if !busy {
			return nil
		}
		if e := retry.Wait(context.Background(), policy, i); e != nil {
			return fmt.Errorf("%w: %v", engine.ErrBusy, e)
		}
	}
}

// InitCount returns number of engine session initializations.
func (c *Cache) InitCount() uint64 {
	return c.nInits.Load()
}

// Counters returns cache counters.
func (c *Cache) Counters() Counters {
	return Counters{
		Inits:          c.nInits.Load(),
		Updates:        c.nUpdates.Load(),
		Removals:       c.nRemovals.Load(),
		RemoveFailures: c.nRemoveFailures.Load(),
	}
}
