package dma

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// IOMMUConfig contains IOMMU configuration.
type IOMMUConfig struct {
	// Base is the first IO virtual address.
	// Default is PageSize, so that zero is never a valid address.
	Base Addr `json:"base,omitempty"`

	// MaxSegmentSize limits device segment length of mapped buffers.
	// Zero means unlimited.
	MaxSegmentSize int `json:"maxSegmentSize,omitempty"`
}

func (cfg *IOMMUConfig) applyDefaults() {
	if !cfg.Base.Valid() {
		cfg.Base = PageSize
	}
	if cfg.MaxSegmentSize < 0 {
		cfg.MaxSegmentSize = 0
	}
}

type iommuEntry struct {
	addr Addr
	b    []byte
}

// IOMMU is a software IO address translation table.
// Addresses are page aligned and never reused; each mapping is followed by an unmapped guard page.
type IOMMU struct {
	cfg     IOMMUConfig
	mu      sync.RWMutex
	next    Addr
	entries []iommuEntry // sorted by addr
	nSync   [2]atomic.Uint64
}

var _ Mapper = (*IOMMU)(nil)

// NewIOMMU creates an IOMMU.
func NewIOMMU(cfg IOMMUConfig) *IOMMU {
	cfg.applyDefaults()
	return &IOMMU{
		cfg:  cfg,
		next: Addr(alignPage(int(cfg.Base))),
	}
}

// Map implements Mapper interface.
func (m *IOMMU) Map(b []byte) (Addr, error) {
	if len(b) == 0 {
		return 0, ErrEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.next
	m.next = a.Add(alignPage(len(b)) + PageSize)
	m.entries = append(m.entries, iommuEntry{addr: a, b: b})
	return a, nil
}

// Unmap implements Mapper interface.
func (m *IOMMU) Unmap(a Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].addr >= a })
	if i == len(m.entries) || m.entries[i].addr != a {
		logger.Debug("unmap of unknown address", zap.Stringer("addr", a))
		return fmt.Errorf("%w: %v", ErrNotMapped, a)
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	return nil
}

func (m *IOMMU) find(a Addr, n int) ([]byte, error) {
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].addr > a }) - 1
	if i < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotMapped, a)
	}
	ent := m.entries[i]
	off := int(a - ent.addr)
	if off >= len(ent.b) {
		return nil, fmt.Errorf("%w: %v", ErrNotMapped, a)
	}
	if n < 0 || off+n > len(ent.b) {
		return nil, fmt.Errorf("%w: %v+%d", ErrBounds, a, n)
	}
	return ent.b[off : off+n : off+n], nil
}

// Resolve implements Mapper interface.
func (m *IOMMU) Resolve(a Addr, n int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.find(a, n)
}

// Sync implements Mapper interface.
// Software memory is coherent, so this only validates the range and counts the call.
func (m *IOMMU) Sync(a Addr, n int, dir SyncDirection) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, e := m.find(a, n); e != nil {
		return e
	}
	m.nSync[dir&1].Inc()
	return nil
}

// MaxSegmentSize implements Mapper interface.
func (m *IOMMU) MaxSegmentSize() int {
	return m.cfg.MaxSegmentSize
}

// CountMappings returns number of active mappings.
func (m *IOMMU) CountMappings() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// CountSync returns number of Sync calls in a direction.
func (m *IOMMU) CountSync(dir SyncDirection) uint64 {
	return m.nSync[dir&1].Load()
}
