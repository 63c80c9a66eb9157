package sgl

import (
	"fmt"

	"github.com/usnistgov/symoffload/dma"
)

// Populate places segments into bl starting at index skipSegments.
//
// The first skipSegments entries already in bl are kept, so that two regions can be appended
// across two calls. The leading skipBytes of segs are not described.
// Returns the resulting segment count.
func Populate(bl *BufferList, segs []dma.Segment, skipSegments, skipBytes int) (int, error) {
	if e := bl.Truncate(skipSegments); e != nil {
		return 0, fmt.Errorf("%w: skipSegments=%d count=%d", e, skipSegments, bl.Count())
	}

	for _, seg := range segs {
		if skipBytes >= seg.Len {
			skipBytes -= seg.Len
			continue
		}
		seg.Addr, seg.Len = seg.Addr.Add(skipBytes), seg.Len-skipBytes
		skipBytes = 0
		if e := bl.Append(seg); e != nil {
			return 0, fmt.Errorf("%w: capacity=%d", e, bl.Capacity())
		}
	}
	return bl.Count(), nil
}

// PopulatePrefix copies the leading n bytes described by src into dst, replacing dst contents.
// A source segment straddling the boundary is shortened.
// Returns the resulting segment count.
func PopulatePrefix(dst, src *BufferList, n int) (int, error) {
	dst.segs = dst.segs[:0]
	for _, seg := range src.segs {
		if n <= 0 {
			break
		}
		if seg.Len > n {
			seg.Len = n
		}
		n -= seg.Len
		if e := dst.Append(seg); e != nil {
			return 0, fmt.Errorf("%w: capacity=%d", e, dst.Capacity())
		}
	}
	if n > 0 {
		return 0, fmt.Errorf("source buffer list is %d octets short of prefix", n)
	}
	return dst.Count(), nil
}

// Alias makes dst describe the same segments as src, for in-place operation.
func Alias(dst, src *BufferList) error {
	if src.Count() > dst.Capacity() {
		return ErrTooManySegments
	}
	dst.segs = append(dst.segs[:0], src.segs...)
	return nil
}
