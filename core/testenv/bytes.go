package testenv

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"github.com/stretchr/testify/assert"
)

// RandBytes fills []byte with non-crypto-safe random bytes.
func RandBytes(p []byte) {
	rand.New(rand.NewSource(rand.Int63())).Read(p)
}

// BytesFromHex converts a hexadecimal string to a byte slice.
// The octets must be written as upper case.
// All characters other than [0-9A-F] are considered comments and stripped.
func BytesFromHex(input string) []byte {
	s := strings.Map(func(ch rune) rune {
		if strings.ContainsRune("0123456789ABCDEF", ch) {
			return ch
		}
		return -1
	}, input)
	decoded, e := hex.DecodeString(s)
	if e != nil {
		panic(fmt.Errorf("hex.DecodeString error %w", e))
	}
	return decoded
}

// BytesEqual asserts that actual bytes equals expected bytes.
// It considers nil slice and zero-length slice to be the same.
func BytesEqual(a *assert.Assertions, expected, actual []byte, msgAndArgs ...any) bool {
	if len(expected) == 0 && len(actual) == 0 {
		return true
	}
	return a.Equal(expected, actual, msgAndArgs...)
}

// SplitBytes copies b into segments of the given sizes.
// The last size is repeated until b is exhausted; a zero size is skipped.
func SplitBytes(b []byte, sizes ...int) (segs [][]byte) {
	if len(sizes) == 0 {
		sizes = []int{len(b)}
	}
	for i := 0; len(b) > 0; i++ {
		n := sizes[len(sizes)-1]
		if i < len(sizes) {
			n = sizes[i]
		}
		if n <= 0 {
			if i >= len(sizes) {
				n = len(b)
			} else {
				continue
			}
		}
		if n > len(b) {
			n = len(b)
		}
		segs = append(segs, append([]byte(nil), b[:n]...))
		b = b[n:]
	}
	return segs
}

// JoinBytes concatenates segments.
func JoinBytes(segs [][]byte) (b []byte) {
	for _, seg := range segs {
		b = append(b, seg...)
	}
	return b
}
