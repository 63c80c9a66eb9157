package request

import (
	"errors"
)

// ErrOutOfRange indicates an offset or length outside the buffer.
var ErrOutOfRange = errors.New("range exceeds buffer")

// Buffer is a logical byte buffer composed of segments.
type Buffer [][]byte

// Len returns total length.
func (buf Buffer) Len() (n int) {
	for _, seg := range buf {
		n += len(seg)
	}
	return n
}

func (buf Buffer) walk(off, n int, fn func(seg []byte)) error {
	if off < 0 || n < 0 || off+n > buf.Len() {
		return ErrOutOfRange
	}
	for _, seg := range buf {
		if n == 0 {
			break
		}
		if off >= len(seg) {
			off -= len(seg)
			continue
		}
		part := seg[off:]
		if len(part) > n {
			part = part[:n]
		}
		fn(part)
		n -= len(part)
		off = 0
	}
	return nil
}

// CopyOut copies len(dst) octets starting at off into dst.
func (buf Buffer) CopyOut(off int, dst []byte) error {
	return buf.walk(off, len(dst), func(seg []byte) {
		dst = dst[copy(dst, seg):]
	})
}

// CopyIn copies src into the buffer starting at off.
func (buf Buffer) CopyIn(off int, src []byte) error {
	return buf.walk(off, len(src), func(seg []byte) {
		src = src[copy(seg, src):]
	})
}

// Bytes returns a flattened copy.
func (buf Buffer) Bytes() []byte {
	b := make([]byte, 0, buf.Len())
	for _, seg := range buf {
		b = append(b, seg...)
	}
	return b
}
