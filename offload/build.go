package offload

import (
	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/request"
	"github.com/usnistgov/symoffload/sgl"
)

// build fills the cookie's IV, AAD, buffer lists, and descriptor offsets.
// On error, mappings already established remain on the cookie for unwind.
func (s *Session) build(c *arena.Cookie, req *request.Request, placement sgl.AADPlacement) (e error) {
	params := s.pair.Params()
	m := s.d.m
	op := &c.Op

	if params.IVLen > 0 {
		copy(c.IV[:params.IVLen], req.IV)
		op.IV, op.IVLen = c.IVAddr, params.IVLen
	}

	if c.SrcMap, e = dma.MapBuffer(m, req.Buf); e != nil {
		return e
	}
	if e = c.SrcMap.Sync(dma.SyncForDevice); e != nil {
		return e
	}
	outOfPlace := len(req.OutBuf) > 0 && params.Mode != request.ModeDigest
	if outOfPlace {
		if c.DstMap, e = dma.MapBuffer(m, req.OutBuf); e != nil {
			return e
		}
		if e = c.DstMap.Sync(dma.SyncForDevice); e != nil {
			return e
		}
	}

	aadLen := req.AADLength()
	cipherStart, hashStart, hashLen := req.PayloadStart, req.PayloadStart, req.PayloadLen
	switch placement {
	case sgl.AADSeparate:
		if e = copyAAD(c.AAD[:aadLen], req); e != nil {
			return e
		}
		op.AAD = c.AADAddr
		_, e = sgl.Populate(c.Src, c.SrcMap.Segments(), 0, 0)
	case sgl.AADEmbedded:
		hashStart, hashLen = req.AADStart, aadLen+req.PayloadLen
		_, e = sgl.Populate(c.Src, c.SrcMap.Segments(), 0, 0)
	case sgl.AADRelocated:
		if e = copyAAD(c.AAD[:aadLen], req); e != nil {
			return e
		}
		c.AADRelocated = true
		if _, e = sgl.Populate(c.Src, []dma.Segment{{Addr: c.AADAddr, Len: aadLen}}, 0, 0); e != nil {
			return e
		}
		_, e = sgl.Populate(c.Src, c.SrcMap.Segments(), 1, req.PayloadStart)
		cipherStart, hashStart, hashLen = aadLen, 0, aadLen+req.PayloadLen
	default:
		_, e = sgl.Populate(c.Src, c.SrcMap.Segments(), 0, 0)
	}
	if e != nil {
		return e
	}

	switch params.Mode {
	case request.ModeCipher:
		op.CipherStart, op.CipherLen = cipherStart, req.PayloadLen
	case request.ModeDigest:
		op.HashStart, op.HashLen = hashStart, hashLen
	case request.ModeAEAD:
		op.CipherStart, op.CipherLen = cipherStart, req.PayloadLen
		op.HashStart, op.HashLen = cipherStart, req.PayloadLen
	case request.ModeETA:
		op.CipherStart, op.CipherLen = cipherStart, req.PayloadLen
		op.HashStart, op.HashLen = hashStart, hashLen
	}

	c.Src.Encode()
	op.SrcList = c.Src.Addr()
	if !outOfPlace {
		if e = sgl.Alias(c.Dst, c.Src); e != nil {
			return e
		}
		op.DstList = op.SrcList
		return nil
	}

	// Leading octets before the cipher region are carried forward from the source, so that
	// the cipher region starts at the same offset in both lists.
	k, e := sgl.PopulatePrefix(c.Dst, c.Src, cipherStart)
	if e != nil {
		return e
	}
	if _, e = sgl.Populate(c.Dst, window(c.DstMap.Segments(), req.PayloadOutputStart, req.PayloadLen), k, 0); e != nil {
		return e
	}
	c.Dst.Encode()
	op.DstList = c.Dst.Addr()
	return nil
}

func copyAAD(dst []byte, req *request.Request) error {
	if req.AAD != nil {
		copy(dst, req.AAD)
		return nil
	}
	return req.Buf.CopyOut(req.AADStart, dst)
}

// window returns the part of segs covering [off, off+n).
func window(segs []dma.Segment, off, n int) (w []dma.Segment) {
	for _, seg := range segs {
		if n <= 0 {
			break
		}
		if off >= seg.Len {
			off -= seg.Len
			continue
		}
		seg.Addr, seg.Len = seg.Addr.Add(off), min(seg.Len-off, n)
		off = 0
		n -= seg.Len
		w = append(w, seg)
	}
	return w
}
