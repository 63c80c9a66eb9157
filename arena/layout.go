package arena

import (
	"github.com/usnistgov/symoffload/sgl"
)

// layout contains offsets of fields within a cookie record.
type layout struct {
	iv, digest, aad, src, dst, op int
	aadSize, listSize           int
	size                        int
}

func newLayout(cfg Config) (l layout) {
	l.aadSize = align(cfg.MaxAADSize, 8)
	l.listSize = sgl.HeaderSize(cfg.MaxSegments)

	off := 0
	next := func(size int) int {
		pos := off
		off += align(size, 8)
		return pos
	}
	l.iv = next(IVSize)
	l.digest = next(DigestSize)
	l.aad = next(l.aadSize)
	l.src = next(l.listSize)
	l.dst = next(l.listSize)
	l.op = next(OpSlotSize)
	l.size = align(off, cacheLine)
	return l
}
