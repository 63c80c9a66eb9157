// Package arena provides the pinned descriptor arena.
//
// An Arena is a fixed set of cookies carved from one pinned device-visible region.
// A stack free-list decides cookie ownership; no memory is allocated per request.
package arena

import (
	"errors"
	"fmt"
	"sync"

	"github.com/usnistgov/symoffload/core/logging"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/sgl"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var logger = logging.New("arena")

// Error conditions.
var (
	// ErrExhausted indicates all cookies are in use. This is expected under load and retryable.
	ErrExhausted = errors.New("cookie arena exhausted")
	// ErrDoubleRelease indicates Release on a cookie that is not acquired.
	ErrDoubleRelease = errors.New("cookie already released")
	// ErrUnknownTag indicates Lookup with a tag that does not identify an acquired cookie.
	ErrUnknownTag = errors.New("unknown cookie tag")
	// ErrClosed indicates Acquire on a closed arena.
	ErrClosed = errors.New("cookie arena closed")
	// ErrInUse indicates CloseIdle on an arena with acquired cookies.
	ErrInUse = errors.New("cookie arena in use")
)

// Arena is a fixed-capacity pool of cookies.
type Arena struct {
	cfg     Config
	layout  layout
	region  *dma.Region
	cookies []Cookie

	mu     sync.Mutex
	free   []uint32
	closed bool
}

// New creates an Arena.
func New(m dma.Mapper, cfg Config) (a *Arena, e error) {
	cfg.applyDefaults()
	a = &Arena{
		cfg:    cfg,
		layout: newLayout(cfg),
	}

	if a.region, e = dma.NewRegion(m, a.layout.size*cfg.Capacity); e != nil {
		return nil, fmt.Errorf("arena region: %w", e)
	}
	if !a.region.Locked() {
		logger.Info("arena memory is not locked", zap.Int("size", a.region.Len()))
	}

	a.cookies = make([]Cookie, cfg.Capacity)
	a.free = make([]uint32, cfg.Capacity)
	for i := range a.cookies {
		a.initCookie(uint32(i))
		a.free[i] = uint32(cfg.Capacity - 1 - i)
	}

	logger.Info("arena created",
		zap.Int("capacity", cfg.Capacity),
		zap.Int("max-segments", cfg.MaxSegments),
		zap.Int("record-size", a.layout.size),
		zap.Stringer("addr", a.region.Addr(0)),
	)
	return a, nil
}

func (a *Arena) initCookie(i uint32) {
	l, base := a.layout, int(i)*a.layout.size
	c := &a.cookies[i]
	c.arena, c.index = a, i

	c.IV, c.IVAddr = a.region.Slice(base+l.iv, IVSize), a.region.Addr(base+l.iv)
	c.Digest, c.DigestAddr = a.region.Slice(base+l.digest, DigestSize), a.region.Addr(base+l.digest)
	c.AAD, c.AADAddr = a.region.Slice(base+l.aad, a.cfg.MaxAADSize), a.region.Addr(base+l.aad)
	c.Src = sgl.New(a.cfg.MaxSegments, a.region.Slice(base+l.src, l.listSize), a.region.Addr(base+l.src))
	c.Dst = sgl.New(a.cfg.MaxSegments, a.region.Slice(base+l.dst, l.listSize), a.region.Addr(base+l.dst))
	c.Op.Tag, c.Op.Self = i, a.region.Addr(base+l.op)
}

// Config returns effective configuration.
func (a *Arena) Config() Config {
	return a.cfg
}

// Capacity returns number of cookies.
func (a *Arena) Capacity() int {
	return len(a.cookies)
}

// CountAvailable returns number of free cookies.
func (a *Arena) CountAvailable() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}

// CountInUse returns number of acquired cookies.
func (a *Arena) CountInUse() int {
	return a.Capacity() - a.CountAvailable()
}

// Acquire takes a cookie from the free-list.
func (a *Arena) Acquire() (*Cookie, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	n := len(a.free)
	if n == 0 {
		return nil, ErrExhausted
	}
	c := &a.cookies[a.free[n-1]]
	a.free = a.free[:n-1]
	c.inUse = true
	return c, nil
}

// Release clears a cookie and returns it to the free-list.
// Leftover request buffer mappings are removed.
func (a *Arena) Release(c *Cookie) error {
	if c.arena != a {
		logger.Panic("cookie belongs to another arena", zap.Uint32("tag", c.index))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !c.inUse {
		logger.Warn("cookie double release", zap.Uint32("tag", c.index))
		return ErrDoubleRelease
	}
	if c.SrcMap != nil || c.DstMap != nil {
		if e := c.UnmapBuffers(); e != nil {
			logger.Warn("unmap on release failed", zap.Uint32("tag", c.index), zap.Error(e))
		}
	}
	if a.closed {
		c.Request = nil
	} else {
		c.clear()
	}
	c.inUse = false
	a.free = append(a.free, c.index)
	return nil
}

// Lookup finds an acquired cookie by its tag.
func (a *Arena) Lookup(tag uint32) (*Cookie, error) {
	if int(tag) >= len(a.cookies) {
		return nil, fmt.Errorf("%w %d", ErrUnknownTag, tag)
	}
	c := &a.cookies[tag]
	a.mu.Lock()
	defer a.mu.Unlock()
	if !c.inUse {
		return nil, fmt.Errorf("%w %d", ErrUnknownTag, tag)
	}
	return c, nil
}

// Owns determines whether op is the descriptor slot of a cookie in this arena.
func (a *Arena) Owns(op *engine.OpDescriptor) bool {
	if op == nil || int(op.Tag) >= len(a.cookies) {
		return false
	}
	return &a.cookies[op.Tag].Op == op
}

// FromOp finds the acquired cookie that carries op.
func (a *Arena) FromOp(op *engine.OpDescriptor) (*Cookie, error) {
	if !a.Owns(op) {
		return nil, fmt.Errorf("%w %d", ErrUnknownTag, op.Tag)
	}
	return a.Lookup(op.Tag)
}

// CloseIdle releases the arena memory if no cookie is acquired.
// Otherwise, it returns ErrInUse and the arena stays usable.
func (a *Arena) CloseIdle() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if nInUse := len(a.cookies) - len(a.free); nInUse > 0 && !a.closed {
		return fmt.Errorf("%w: %d cookies", ErrInUse, nInUse)
	}
	return a.closeLocked()
}

// Close releases the arena memory.
// The owner must be quiesced; cookies still in use have their mappings removed.
// After Close, Acquire fails with ErrClosed and Release only returns cookies to the free-list.
func (a *Arena) Close() (e error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

func (a *Arena) closeLocked() (e error) {
	if a.closed {
		return nil
	}
	a.closed = true

	if nInUse := len(a.cookies) - len(a.free); nInUse > 0 {
		logger.Warn("arena closed with cookies in use", zap.Int("in-use", nInUse))
	}
	for i := range a.cookies {
		e = multierr.Append(e, a.cookies[i].UnmapBuffers())
	}
	e = multierr.Append(e, a.region.Close())
	a.region = nil
	return e
}
