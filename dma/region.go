package dma

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Region is a page-aligned block of pinned memory mapped for device access.
type Region struct {
	m      Mapper
	mem    []byte
	size   int
	addr   Addr
	locked bool
}

// NewRegion allocates a Region of at least size octets.
// The memory is zero-filled, locked into RAM when permitted, and mapped by m.
func NewRegion(m Mapper, size int) (r *Region, e error) {
	if size <= 0 {
		return nil, ErrEmpty
	}

	r = &Region{m: m, size: size}
	if r.mem, e = unix.Mmap(-1, 0, alignPage(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS); e != nil {
		return nil, e
	}

	if e := unix.Mlock(r.mem); e != nil {
		logger.Debug("mlock failed, region is not pinned", zap.Int("size", len(r.mem)), zap.Error(e))
	} else {
		r.locked = true
	}

	if r.addr, e = m.Map(r.mem); e != nil {
		r.release()
		return nil, e
	}
	return r, nil
}

// Bytes returns the usable host memory.
func (r *Region) Bytes() []byte {
	return r.mem[:r.size:r.size]
}

// Len returns the usable size.
func (r *Region) Len() int {
	return r.size
}

// Addr returns the IO virtual address at an offset.
func (r *Region) Addr(off int) Addr {
	return r.addr.Add(off)
}

// Slice returns host memory at an offset, with capacity limited to n.
func (r *Region) Slice(off, n int) []byte {
	return r.mem[off : off+n : off+n]
}

// Locked determines whether the memory is pinned.
func (r *Region) Locked() bool {
	return r.locked
}

// Close zeroes, unmaps, and frees the memory.
func (r *Region) Close() (e error) {
	if r.mem == nil {
		return nil
	}
	Zero(r.mem)
	e = r.m.Unmap(r.addr)
	return multierr.Append(e, r.release())
}

func (r *Region) release() (e error) {
	if r.locked {
		e = unix.Munlock(r.mem)
		r.locked = false
	}
	e = multierr.Append(e, unix.Munmap(r.mem))
	r.mem = nil
	return e
}
