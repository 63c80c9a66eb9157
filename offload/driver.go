// Package offload implements the request pipeline and completion reconciler.
//
// A Driver owns one or more instances. Each Instance has a cookie arena, a session cache, and an
// instance lock that serializes session materialization and submission to the engine.
// Requests enter through Session.Process; the engine reports completions to the Driver's single
// callback, which routes each completion to the instance that owns the operation descriptor.
package offload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/core/logging"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/request"
	"github.com/usnistgov/symoffload/session"
	"github.com/zyedidia/generic/mapset"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var logger = logging.New("offload")

// ErrClosed indicates the Driver or Session is closed.
var ErrClosed = errors.New("offload closed")

// Driver is the offload core bound to one engine.
type Driver struct {
	cfg       Config
	eng       engine.Engine
	m         dma.Mapper
	instances []*Instance
	next      atomic.Uint32
	closed    atomic.Bool

	mu       sync.Mutex
	sessions mapset.Set[*Session]
}

// New creates a Driver and registers its completion callback with the engine.
// Failure to create any instance is fatal: nothing is brought online.
func New(eng engine.Engine, m dma.Mapper, cfg Config) (d *Driver, e error) {
	cfg.applyDefaults()
	d = &Driver{
		cfg:      cfg,
		eng:      eng,
		m:        m,
		sessions: mapset.New[*Session](),
	}

	for i := 0; i < cfg.NInstances; i++ {
		inst, e := newInstance(d, i)
		if e != nil {
			for _, inst := range d.instances {
				inst.arena.Close()
			}
			return nil, fmt.Errorf("instance %d: %w", i, e)
		}
		d.instances = append(d.instances, inst)
	}

	if e := eng.RegisterCallback(d.complete); e != nil {
		for _, inst := range d.instances {
			inst.arena.Close()
		}
		return nil, fmt.Errorf("eng.RegisterCallback: %w", e)
	}

	logger.Info("driver online",
		zap.Int("instances", len(d.instances)),
		zap.Bool("hardware-verify", cfg.Session.HardwareVerify),
	)
	return d, nil
}

// Config returns effective configuration.
func (d *Driver) Config() Config {
	return d.cfg
}

// Engine returns the engine.
func (d *Driver) Engine() engine.Engine {
	return d.eng
}

// Instances returns all instances.
func (d *Driver) Instances() []*Instance {
	return d.instances
}

// CountSessions returns number of open sessions.
func (d *Driver) CountSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions.Size()
}

// NewSession creates a logical session bound to an instance in round-robin order.
// Engine contexts are materialized lazily by the first request of each direction.
func (d *Driver) NewSession(params request.SessionParams) (*Session, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	caps := d.eng.Capabilities()
	if params.IVLen < 0 || params.IVLen > min(arena.IVSize, caps.MaxIVSize) {
		return nil, fmt.Errorf("%w: IV length %d", engine.ErrUnsupported, params.IVLen)
	}
	if params.MACLen < 0 || params.MACLen > min(arena.DigestSize, caps.MaxDigestSize) {
		return nil, fmt.Errorf("%w: MAC length %d", engine.ErrUnsupported, params.MACLen)
	}

	inst := d.instances[int(d.next.Inc()-1)%len(d.instances)]
	pair, e := inst.cache.NewPair(params)
	if e != nil {
		return nil, e
	}

	s := &Session{
		d:    d,
		inst: inst,
		pair: pair,
	}
	if !session.IsGMAC(params) {
		ep, _ := session.Resolve(params, engine.Encrypt, 0)
		s.aadCipher = ep.Cipher
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions.Put(s)
	inst.nSessions.Inc()
	logger.Debug("session created",
		zap.Int("instance", inst.id),
		zap.Stringer("mode", params.Mode),
		zap.Stringer("cipher", params.Cipher),
		zap.Stringer("auth", params.Auth),
	)
	return s, nil
}

func (d *Driver) forget(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sessions.Has(s) {
		d.sessions.Remove(s)
		s.inst.nSessions.Dec()
	}
}

// complete is the engine completion callback.
func (d *Driver) complete(op *engine.OpDescriptor, status error, verified bool) {
	for _, inst := range d.instances {
		if inst.arena.Owns(op) {
			inst.complete(op, status, verified)
			return
		}
	}
	logger.Panic("completion for foreign descriptor", zap.Uint32("tag", op.Tag), zap.Stringer("self", op.Self))
}

// Close waits for in-flight requests, closes all sessions, and releases the arenas.
// An arena whose requests do not drain within the configured budget is left allocated;
// Close may be called again to retry.
func (d *Driver) Close() (e error) {
	d.closed.Store(true)

	for _, inst := range d.instances {
		e = multierr.Append(e, inst.drain(context.Background()))
	}

	d.mu.Lock()
	var sessions []*Session
	d.sessions.Each(func(s *Session) { sessions = append(sessions, s) })
	d.mu.Unlock()
	for _, s := range sessions {
		e = multierr.Append(e, s.Close())
	}

	for _, inst := range d.instances {
		ce := inst.arena.CloseIdle()
		if errors.Is(ce, arena.ErrInUse) {
			logger.Error("arena not released", zap.Int("instance", inst.id), zap.Error(ce))
		}
		e = multierr.Append(e, ce)
	}
	logger.Info("driver closed", zap.Error(e))
	return e
}
