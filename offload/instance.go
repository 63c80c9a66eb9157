package offload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grailbio/base/retry"
	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/core/runningstat"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/session"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Counters contains instance counters.
type Counters struct {
	// Submitted is the number of requests accepted by the engine.
	Submitted uint64 `json:"submitted"`
	// Completed is the number of requests completed successfully.
	Completed uint64 `json:"completed"`
	// Failed is the number of requests that failed after submission with an I/O error.
	Failed uint64 `json:"failed"`
	// Integrity is the number of requests that failed authentication.
	Integrity uint64 `json:"integrity"`
	// Retries is the number of requests turned away with a retryable error.
	Retries uint64 `json:"retries"`
	// Exhausted is the number of Retries caused by arena exhaustion.
	Exhausted uint64 `json:"exhausted"`
	// Rejected is the number of requests turned away with a permanent error.
	Rejected uint64 `json:"rejected"`
}

// flight is the reconciler's view of one submitted request.
type flight struct {
	hasHash   bool
	verify    bool
	hwVerify  bool
	digestLen int
	submitted time.Time
}

// Instance is one arena, session cache, and instance lock.
type Instance struct {
	id      int
	d       *Driver
	arena   *arena.Arena
	cache   *session.Cache
	flights []flight

	latencyLock sync.Mutex
	latency     runningstat.RunningStat

	nSessions  atomic.Int32
	nSubmitted atomic.Uint64
	nCompleted atomic.Uint64
	nFailed    atomic.Uint64
	nIntegrity atomic.Uint64
	nRetries   atomic.Uint64
	nExhausted atomic.Uint64
	nRejected  atomic.Uint64
}

func newInstance(d *Driver, id int) (inst *Instance, e error) {
	inst = &Instance{
		id:    id,
		d:     d,
		cache: session.New(d.eng, d.m, d.cfg.Session),
	}
	if inst.arena, e = arena.New(d.m, d.cfg.Arena); e != nil {
		return nil, e
	}
	inst.flights = make([]flight, inst.arena.Capacity())
	inst.latency.Init(d.cfg.LatencySampleInterval)
	return inst, nil
}

// ID returns instance index.
func (inst *Instance) ID() int {
	return inst.id
}

// Arena returns the cookie arena.
func (inst *Instance) Arena() *arena.Arena {
	return inst.arena
}

// Cache returns the session cache.
func (inst *Instance) Cache() *session.Cache {
	return inst.cache
}

// CountSessions returns number of open sessions bound to this instance.
func (inst *Instance) CountSessions() int {
	return int(inst.nSessions.Load())
}

// Counters returns instance counters.
func (inst *Instance) Counters() Counters {
	return Counters{
		Submitted: inst.nSubmitted.Load(),
		Completed: inst.nCompleted.Load(),
		Failed:    inst.nFailed.Load(),
		Integrity: inst.nIntegrity.Load(),
		Retries:   inst.nRetries.Load(),
		Exhausted: inst.nExhausted.Load(),
		Rejected:  inst.nRejected.Load(),
	}
}

// Latency returns statistics of submission-to-completion latency in nanoseconds.
func (inst *Instance) Latency() runningstat.Snapshot {
	inst.latencyLock.Lock()
	defer inst.latencyLock.Unlock()
	return inst.latency.Read()
}

func (inst *Instance) pushLatency(d time.Duration) {
	inst.latencyLock.Lock()
	defer inst.latencyLock.Unlock()
	inst.latency.Push(uint64(d))
}

// drain waits until every cookie is released.
func (inst *Instance) drain(ctx context.Context) error {
	policy := inst.d.cfg.Drain.Policy()
	for i := 0; ; i++ {
		n := inst.arena.CountInUse()
		if n == 0 {
			return nil
		}
		if e := retry.Wait(ctx, policy, i); e != nil {
			logger.Warn("instance not drained", zap.Int("instance", inst.id), zap.Int("in-use", n))
			return fmt.Errorf("instance %d: %d requests in flight: %w", inst.id, n, engine.ErrBusy)
		}
	}
}

// unwind releases a cookie whose request was not submitted.
func (inst *Instance) unwind(c *arena.Cookie, e error) error {
	if ue := c.UnmapBuffers(); ue != nil {
		logger.Warn("unmap during unwind failed", zap.Int("instance", inst.id), zap.Error(ue))
	}
	inst.flights[c.Index()] = flight{}
	if re := inst.arena.Release(c); re != nil {
		logger.Panic("cookie released twice during unwind", zap.Int("instance", inst.id), zap.Int("tag", c.Index()))
	}
	inst.countReject(e)
	return e
}
