// Package dma models device-visible memory.
//
// Device code addresses memory through IO virtual addresses (Addr) assigned by a Mapper.
// Host code never dereferences an Addr; it keeps the host slice alongside.
package dma

import (
	"errors"
	"strconv"

	"github.com/usnistgov/symoffload/core/logging"
)

var logger = logging.New("dma")

// PageSize is the granularity of IO virtual address allocation.
const PageSize = 4096

// Error conditions.
var (
	ErrEmpty     = errors.New("cannot map empty buffer")
	ErrNotMapped = errors.New("address is not mapped")
	ErrBounds    = errors.New("address range exceeds mapping")
)

// Addr is an IO virtual address, as seen by the device.
// Zero value means unset.
type Addr uint64

// Valid determines whether the address is set.
func (a Addr) Valid() bool {
	return a != 0
}

// Add returns the address at an offset.
func (a Addr) Add(off int) Addr {
	return a + Addr(off)
}

func (a Addr) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// Segment is a device-contiguous byte range.
type Segment struct {
	Addr Addr `json:"addr"`
	Len  int  `json:"len"`
}

// End returns the address just past the segment.
func (seg Segment) End() Addr {
	return seg.Addr.Add(seg.Len)
}

// SyncDirection indicates cache synchronization direction.
type SyncDirection int

// SyncDirection values.
const (
	SyncForDevice SyncDirection = iota
	SyncForCPU
)

func (dir SyncDirection) String() string {
	switch dir {
	case SyncForDevice:
		return "device"
	case SyncForCPU:
		return "cpu"
	}
	return strconv.Itoa(int(dir))
}

// Mapper assigns IO virtual addresses to host memory.
type Mapper interface {
	// Map makes b visible to the device.
	// b must not be moved or freed until Unmap.
	Map(b []byte) (Addr, error)

	// Unmap removes a mapping created by Map.
	Unmap(a Addr) error

	// Resolve returns host memory of a mapped range.
	// This is the device side of the Mapper; drivers should keep their own host slices.
	Resolve(a Addr, n int) ([]byte, error)

	// Sync synchronizes caches of a mapped range.
	Sync(a Addr, n int, dir SyncDirection) error

	// MaxSegmentSize returns the maximum length of a device segment, or 0 for unlimited.
	MaxSegmentSize() int
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	clear(b)
}

func alignPage(n int) int {
	return (n + PageSize - 1) / PageSize * PageSize
}
