package dma

import (
	"go.uber.org/multierr"
)

// Mapping is the device view of a segmented host buffer.
type Mapping struct {
	m     Mapper
	addrs []Addr
	segs  []Segment
	n     int
}

// MapBuffer maps every non-empty host segment.
// Each host segment becomes one or more device segments, split at m.MaxSegmentSize().
// If any segment fails to map, segments already mapped are unmapped.
func MapBuffer(m Mapper, bufs [][]byte) (mp *Mapping, e error) {
	mp = &Mapping{m: m}
	maxSeg := m.MaxSegmentSize()
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		a, e := m.Map(b)
		if e != nil {
			return nil, multierr.Append(e, mp.Unmap())
		}
		mp.addrs = append(mp.addrs, a)
		for off := 0; off < len(b); {
			n := len(b) - off
			if maxSeg > 0 && n > maxSeg {
				n = maxSeg
			}
			mp.segs = append(mp.segs, Segment{Addr: a.Add(off), Len: n})
			off += n
		}
		mp.n += len(b)
	}
	return mp, nil
}

// Segments returns device segments in buffer order.
func (mp *Mapping) Segments() []Segment {
	if mp == nil {
		return nil
	}
	return mp.segs
}

// Len returns total mapped length.
func (mp *Mapping) Len() int {
	if mp == nil {
		return 0
	}
	return mp.n
}

// Sync synchronizes every segment.
func (mp *Mapping) Sync(dir SyncDirection) (e error) {
	if mp == nil {
		return nil
	}
	for _, seg := range mp.segs {
		e = multierr.Append(e, mp.m.Sync(seg.Addr, seg.Len, dir))
	}
	return e
}

// Unmap removes all mappings.
// It is safe to call more than once.
func (mp *Mapping) Unmap() (e error) {
	if mp == nil {
		return nil
	}
	for _, a := range mp.addrs {
		e = multierr.Append(e, mp.m.Unmap(a))
	}
	mp.addrs, mp.segs, mp.n = nil, nil, 0
	return e
}
