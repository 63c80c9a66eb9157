// Package runningstat implements Knuth and Welford's method for computing the standard deviation.
package runningstat

import (
	"math"

	binutils "github.com/jfoster/binary-utilities"
	"github.com/zyedidia/generic"
)

// RunningStat collects statistics and allows computing min, max, mean, and variance.
// Algorithm comes from https://www.johndcook.com/blog/standard_deviation/ .
//
// RunningStat is not thread-safe.
type RunningStat struct {
	i    uint64
	n    uint64
	mask uint64
	m1   float64
	m2   float64
	min  uint64
	max  uint64
}

// Init initializes the instance and clears existing data.
// sampleInterval: how often to collect sample, will be adjusted to nearest power of two and truncated between 1 and 2^30.
func (s *RunningStat) Init(sampleInterval int) {
	*s = RunningStat{
		mask: generic.Clamp(uint64(binutils.NearPowerOfTwo(int64(sampleInterval))), 1, 1<<30) - 1,
		min:  math.MaxUint64,
	}
}

// Push adds an input.
func (s *RunningStat) Push(x uint64) {
	s.i++
	if (s.i-1)&s.mask != 0 {
		return
	}

	s.min, s.max = generic.Min(s.min, x), generic.Max(s.max, x)
	s.n++
	if s.n == 1 {
		s.m1 = float64(x)
		return
	}
	delta := float64(x) - s.m1
	s.m1 += delta / float64(s.n)
	s.m2 += delta * (float64(x) - s.m1)
}

// Read returns current counters as Snapshot.
func (s *RunningStat) Read() Snapshot {
	return moments{s.i, s.n, s.m1, s.m2}.snapshot().withMinMax(s.min, s.max)
}
