// Package sgl builds scatter-gather buffer lists for the crypto engine.
package sgl

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/usnistgov/symoffload/dma"
)

// Error conditions.
var (
	ErrTooManySegments = errors.New("too many segments for buffer list")
	ErrInvalidSkip     = errors.New("skip exceeds populated segments")
	ErrShortHeader     = errors.New("buffer list header too short")
)

// Encoded header layout, little endian:
//
//	0   u32 segment count
//	4   u32 reserved
//	8   u64 total length
//	16  {u64 addr, u32 len, u32 reserved} * capacity
const (
	// HeaderFixedSize is the length of the encoded header before segment entries.
	HeaderFixedSize = 16

	headerFixed = HeaderFixedSize
	segmentSize = 16
)

// HeaderSize returns encoded size of a BufferList with given capacity.
func HeaderSize(capacity int) int {
	return headerFixed + capacity*segmentSize
}

// BufferList is an ordered list of device segments with fixed capacity.
// When constructed with a header, Encode writes the device-visible form there.
type BufferList struct {
	segs   []dma.Segment
	header []byte
	addr   dma.Addr
}

// New creates a BufferList.
// header may be nil, otherwise its length must be at least HeaderSize(capacity).
func New(capacity int, header []byte, addr dma.Addr) *BufferList {
	if header != nil && len(header) < HeaderSize(capacity) {
		panic(ErrShortHeader)
	}
	return &BufferList{
		segs:   make([]dma.Segment, 0, capacity),
		header: header,
		addr:   addr,
	}
}

// Capacity returns maximum number of segments.
func (bl *BufferList) Capacity() int {
	return cap(bl.segs)
}

// Count returns number of segments.
func (bl *BufferList) Count() int {
	return len(bl.segs)
}

// Segments returns the segments.
// The returned slice is invalidated by the next modification.
func (bl *BufferList) Segments() []dma.Segment {
	return bl.segs
}

// TotalLen returns total length of all segments.
func (bl *BufferList) TotalLen() (n int) {
	for _, seg := range bl.segs {
		n += seg.Len
	}
	return n
}

// Addr returns device address of the encoded header.
func (bl *BufferList) Addr() dma.Addr {
	return bl.addr
}

// Reset deletes all segments and clears the encoded header.
func (bl *BufferList) Reset() {
	bl.segs = bl.segs[:0]
	if bl.header != nil {
		dma.Zero(bl.header)
	}
}

// Append adds a segment.
func (bl *BufferList) Append(seg dma.Segment) error {
	if len(bl.segs) == cap(bl.segs) {
		return ErrTooManySegments
	}
	bl.segs = append(bl.segs, seg)
	return nil
}

// Truncate keeps the first n segments.
func (bl *BufferList) Truncate(n int) error {
	if n > len(bl.segs) {
		return ErrInvalidSkip
	}
	bl.segs = bl.segs[:n]
	return nil
}

// Encode writes the device-visible form into the header.
func (bl *BufferList) Encode() {
	if bl.header == nil {
		return
	}
	binary.LittleEndian.PutUint32(bl.header[0:], uint32(len(bl.segs)))
	binary.LittleEndian.PutUint32(bl.header[4:], 0)
	binary.LittleEndian.PutUint64(bl.header[8:], uint64(bl.TotalLen()))
	for i, seg := range bl.segs {
		b := bl.header[headerFixed+i*segmentSize:]
		binary.LittleEndian.PutUint64(b[0:], uint64(seg.Addr))
		binary.LittleEndian.PutUint32(b[8:], uint32(seg.Len))
		binary.LittleEndian.PutUint32(b[12:], 0)
	}
}

// EncodedSize returns full encoded header size from its first HeaderFixedSize octets.
func EncodedSize(fixed []byte) (int, error) {
	if len(fixed) < headerFixed {
		return 0, ErrShortHeader
	}
	return HeaderSize(int(binary.LittleEndian.Uint32(fixed[0:]))), nil
}

// Decode parses an encoded header.
// This is the engine side of Encode.
func Decode(header []byte) (segs []dma.Segment, totalLen int, e error) {
	if len(header) < headerFixed {
		return nil, 0, ErrShortHeader
	}
	count := int(binary.LittleEndian.Uint32(header[0:]))
	totalLen = int(binary.LittleEndian.Uint64(header[8:]))
	if len(header) < HeaderSize(count) {
		return nil, 0, fmt.Errorf("%w: count=%d", ErrShortHeader, count)
	}

	segs = make([]dma.Segment, count)
	sum := 0
	for i := range segs {
		b := header[headerFixed+i*segmentSize:]
		segs[i].Addr = dma.Addr(binary.LittleEndian.Uint64(b[0:]))
		segs[i].Len = int(binary.LittleEndian.Uint32(b[8:]))
		sum += segs[i].Len
	}
	if sum != totalLen {
		return nil, 0, fmt.Errorf("buffer list total length %d does not match segments %d", totalLen, sum)
	}
	return segs, totalLen, nil
}
