// Package swengine implements engine.Engine in software.
//
// Operations are dispatched by a single goroutine in submission order. The engine reads and
// writes memory only through the dma.Mapper, in the same way a device would.
package swengine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/usnistgov/symoffload/core/logging"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/sgl"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var logger = logging.New("swengine")

// ErrClosed is the completion status of operations still queued when the engine is closed.
var ErrClosed = errors.New("engine closed")

// Counters contains engine counters.
type Counters struct {
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

// Engine is a software crypto engine.
type Engine struct {
	cfg Config
	m   dma.Mapper

	mu       sync.Mutex
	sessions map[dma.Addr]*session
	cb       engine.Callback
	staged   []*engine.OpDescriptor
	failNext []error
	closed   bool

	// pending counts operations accepted but not yet dequeued, staged ones included.
	pending atomic.Int32
	queue   chan *engine.OpDescriptor
	hold    sync.RWMutex
	stop    chan struct{}
	stopped chan struct{}
	closing sync.Once

	nSubmitted atomic.Uint64
	nRejected  atomic.Uint64
	nCompleted atomic.Uint64
	nFailed    atomic.Uint64
}

var _ engine.Engine = (*Engine)(nil)

// New creates a software engine and starts its dispatcher.
func New(m dma.Mapper, cfg Config) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:      cfg,
		m:        m,
		sessions: map[dma.Addr]*session{},
		queue:    make(chan *engine.OpDescriptor, cfg.QueueCapacity),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go e.loop()
	logger.Info("engine started", zap.Int("queue-capacity", cfg.QueueCapacity))
	return e
}

// Config returns effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Capabilities implements engine.Engine interface.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		MaxTransferSize: e.cfg.MaxTransferSize,
		MaxAADSize:      e.cfg.MaxAADSize,
		MaxIVSize:       MaxIVSize,
		MaxDigestSize:   MaxDigestSize,
	}
}

// DefaultDigestLen implements engine.Engine interface.
func (e *Engine) DefaultDigestLen(alg engine.HashAlgorithm) (int, error) {
	return digestLen(alg)
}

// SessionContextSize implements engine.Engine interface.
func (e *Engine) SessionContextSize(params engine.SessionParams) (int, error) {
	if _, err := newSession(params); err != nil {
		return 0, err
	}
	return contextSize(params), nil
}

// InitSession implements engine.Engine interface.
func (e *Engine) InitSession(params engine.SessionParams, ctx *engine.SessionContext) error {
	if ctx == nil || ctx.Mem == nil || ctx.Len < contextSize(params) || ctx.Mem.Len() < ctx.Len {
		return fmt.Errorf("%w: session context too small", engine.ErrInvalid)
	}
	s, err := newSession(params)
	if err != nil {
		return err
	}
	s.ctx = ctx

	e.mu.Lock()
	defer e.mu.Unlock()
	key := ctxKey(ctx)
	if _, ok := e.sessions[key]; ok {
		return fmt.Errorf("%w: session context %v already initialized", engine.ErrInvalid, key)
	}
	s.writeContext(ctx.Mem.Bytes()[:ctx.Len])
	e.sessions[key] = s
	logger.Debug("session initialized", zap.Stringer("ctx", key), zap.Stringer("params", params))
	return nil
}

func (e *Engine) findSession(ctx *engine.SessionContext) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions[ctxKey(ctx)]
	if s == nil {
		return nil, fmt.Errorf("%w: unknown session context", engine.ErrInvalid)
	}
	return s, nil
}

// QueryBusy implements engine.Engine interface.
func (e *Engine) QueryBusy(ctx *engine.SessionContext) (bool, error) {
	s, err := e.findSession(ctx)
	if err != nil {
		return false, err
	}
	return s.inflight.Load() > 0, nil
}

// RemoveSession implements engine.Engine interface.
func (e *Engine) RemoveSession(ctx *engine.SessionContext) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := ctxKey(ctx)
	s := e.sessions[key]
	if s == nil {
		return fmt.Errorf("%w: unknown session context", engine.ErrInvalid)
	}
	if s.inflight.Load() > 0 {
		return engine.ErrBusy
	}
	delete(e.sessions, key)
	logger.Debug("session removed", zap.Stringer("ctx", key))
	return nil
}

// CountSessions returns number of initialized session contexts.
func (e *Engine) CountSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// RegisterCallback implements engine.Engine interface.
func (e *Engine) RegisterCallback(cb engine.Callback) error {
	if cb == nil {
		return engine.ErrNoCallback
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = cb
	return nil
}

// Submit implements engine.Engine interface.
func (e *Engine) Submit(op *engine.OpDescriptor, now bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.cb == nil {
		return engine.ErrNoCallback
	}
	if len(e.failNext) > 0 {
		err := e.failNext[0]
		e.failNext = e.failNext[1:]
		e.nRejected.Inc()
		return err
	}

	s := e.sessions[ctxKey(op.Session)]
	if s == nil {
		e.nRejected.Inc()
		return fmt.Errorf("%w: unknown session context", engine.ErrInvalid)
	}
	if err := e.checkLength(op); err != nil {
		e.nRejected.Inc()
		return err
	}
	if int(e.pending.Inc()) > e.cfg.QueueCapacity {
		e.pending.Dec()
		e.nRejected.Inc()
		return engine.ErrRetry
	}

	s.inflight.Inc()
	e.nSubmitted.Inc()
	e.staged = append(e.staged, op)
	if now {
		e.flushLocked()
	}
	return nil
}

func (e *Engine) checkLength(op *engine.OpDescriptor) error {
	fixed, err := e.m.Resolve(op.SrcList, sgl.HeaderFixedSize)
	if err != nil {
		return fmt.Errorf("%w: source list %v", engine.ErrInvalid, err)
	}
	size, err := sgl.EncodedSize(fixed)
	if err != nil {
		return fmt.Errorf("%w: source list %v", engine.ErrInvalid, err)
	}
	header, err := e.m.Resolve(op.SrcList, size)
	if err != nil {
		return fmt.Errorf("%w: source list %v", engine.ErrInvalid, err)
	}
	_, total, err := sgl.Decode(header)
	if err != nil {
		return fmt.Errorf("%w: source list %v", engine.ErrInvalid, err)
	}
	if total > e.cfg.MaxTransferSize {
		return fmt.Errorf("%w: transfer size %d exceeds %d", engine.ErrInvalid, total, e.cfg.MaxTransferSize)
	}
	return nil
}

// Flush implements engine.Engine interface.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushLocked()
	return nil
}

func (e *Engine) flushLocked() {
	for _, op := range e.staged {
		e.queue <- op // never blocks: pending bounds queue occupancy
	}
	e.staged = e.staged[:0]
}

// CountStaged returns number of operations held until Flush.
func (e *Engine) CountStaged() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.staged)
}

// FailNext makes the next Submit calls return the given errors, one per call.
func (e *Engine) FailNext(errs ...error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext = append(e.failNext, errs...)
}

// Pause blocks the dispatcher after the operation in progress, if any, completes.
// Submissions are still accepted until the queue is full.
func (e *Engine) Pause() {
	e.hold.Lock()
}

// Resume unblocks the dispatcher.
func (e *Engine) Resume() {
	e.hold.Unlock()
}

// Counters returns engine counters.
func (e *Engine) Counters() Counters {
	return Counters{
		Submitted: e.nSubmitted.Load(),
		Rejected:  e.nRejected.Load(),
		Completed: e.nCompleted.Load(),
		Failed:    e.nFailed.Load(),
	}
}

func (e *Engine) loop() {
	defer close(e.stopped)
	for {
		select {
		case <-e.stop:
			return
		case op := <-e.queue:
			e.hold.RLock()
			e.pending.Dec()
			e.dispatch(op)
			e.hold.RUnlock()
		}
	}
}

func (e *Engine) dispatch(op *engine.OpDescriptor) {
	e.mu.Lock()
	s, cb := e.sessions[ctxKey(op.Session)], e.cb
	e.mu.Unlock()

	if s == nil {
		logger.Panic("session context removed with operation in flight", zap.Stringer("ctx", ctxKey(op.Session)))
	}
	status, verified := e.execute(s, op)
	if status == nil {
		e.nCompleted.Inc()
	} else {
		e.nFailed.Inc()
		logger.Debug("operation failed", zap.Uint32("tag", op.Tag), zap.Error(status))
	}
	cb(op, status, verified)
	s.inflight.Dec()
}

// Close stops the dispatcher.
// Operations still queued or staged complete with ErrClosed.
// The engine must not be paused.
func (e *Engine) Close() error {
	e.closing.Do(func() {
		close(e.stop)
		<-e.stopped

		e.mu.Lock()
		e.closed = true
		e.flushLocked()
		cb := e.cb
		e.mu.Unlock()
	drain:
		for {
			select {
			case op := <-e.queue:
				e.pending.Dec()
				s, _ := e.findSession(op.Session)
				cb(op, ErrClosed, false)
				if s != nil {
					s.inflight.Dec()
				}
			default:
				break drain
			}
		}
		logger.Info("engine stopped", zap.Any("counters", e.Counters()))
	})
	return nil
}
