package arena

import (
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/request"
	"github.com/usnistgov/symoffload/sgl"
	"go.uber.org/multierr"
)

// Cookie is one arena slot: scratch state of one in-flight request.
//
// Device addresses are computed when the arena is created and stay valid for the arena lifetime.
// A Cookie is owned by at most one request between Acquire and Release.
type Cookie struct {
	arena *Arena
	index uint32
	inUse bool

	IV         []byte
	IVAddr     dma.Addr
	Digest     []byte
	DigestAddr dma.Addr
	AAD        []byte
	AADAddr    dma.Addr

	// AADRelocated indicates AAD was copied into the AAD buffer and placed at the front of Src.
	AADRelocated bool

	Src *sgl.BufferList
	Dst *sgl.BufferList

	// Op is the engine operation descriptor; Op.Tag and Op.Self identify this cookie.
	Op engine.OpDescriptor

	// SrcMap and DstMap are request buffer mappings established for this request.
	SrcMap *dma.Mapping
	DstMap *dma.Mapping

	// Request is the originating request.
	Request *request.Request
}

// Index returns the cookie position in the arena.
func (c *Cookie) Index() int {
	return int(c.index)
}

// Tag returns the tag carried in the operation descriptor.
func (c *Cookie) Tag() uint32 {
	return c.index
}

// UnmapBuffers removes request buffer mappings.
// Output is synchronized for CPU before unmapping.
func (c *Cookie) UnmapBuffers() (e error) {
	if c.DstMap != nil && c.DstMap != c.SrcMap {
		e = multierr.Append(e, c.DstMap.Sync(dma.SyncForCPU))
		e = multierr.Append(e, c.DstMap.Unmap())
	}
	if c.SrcMap != nil {
		e = multierr.Append(e, c.SrcMap.Sync(dma.SyncForCPU))
		e = multierr.Append(e, c.SrcMap.Unmap())
	}
	c.SrcMap, c.DstMap = nil, nil
	return e
}

func (c *Cookie) clear() {
	dma.Zero(c.IV)
	dma.Zero(c.Digest)
	dma.Zero(c.AAD)
	c.AADRelocated = false
	c.Src.Reset()
	c.Dst.Reset()
	c.Op.Reset()
	c.Request = nil
}
