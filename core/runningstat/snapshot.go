package runningstat

import (
	"math"

	"github.com/zyedidia/generic"
)

// Snapshot is a reading of RunningStat.
//
// M1 and M2 are the running mean and the sum of squared deviations over collected samples.
// They allow snapshots to be combined and subtracted.
type Snapshot struct {
	Count    uint64  `json:"count" gqldesc:"Number of inputs."`
	Len      uint64  `json:"len" gqldesc:"Number of collected samples."`
	Mean     float64 `json:"mean" gqldesc:"Mean of samples."`
	Variance float64 `json:"variance" gqldesc:"Sample variance, zero unless len>1."`
	Stdev    float64 `json:"stdev" gqldesc:"Sample standard deviation, zero unless len>1."`
	M1       float64 `json:"m1"`
	M2       float64 `json:"m2"`
	Min      *uint64 `json:"min" gqldesc:"Minimum sample, null if unknown."`
	Max      *uint64 `json:"max" gqldesc:"Maximum sample, null if unknown."`
}

// moments is the mergeable part of a Snapshot.
type moments struct {
	count, n uint64
	m1, m2   float64
}

func (s Snapshot) moments() moments {
	return moments{s.Count, s.Len, s.M1, s.M2}
}

func (m moments) snapshot() (s Snapshot) {
	s.Count, s.Len = m.count, m.n
	if m.n == 0 {
		return s
	}
	s.M1, s.M2 = m.m1, math.Max(m.m2, 0)
	s.Mean = s.M1
	if m.n > 1 {
		s.Variance = s.M2 / float64(m.n-1)
		s.Stdev = math.Sqrt(s.Variance)
	}
	return s
}

func (s Snapshot) withMinMax(min, max uint64) Snapshot {
	if s.Len > 0 {
		s.Min, s.Max = &min, &max
	}
	return s
}

// Add combines two snapshots as if every sample had been pushed into one RunningStat.
func (s Snapshot) Add(o Snapshot) Snapshot {
	switch {
	case o.Len == 0:
		s.Count += o.Count
		return s
	case s.Len == 0:
		o.Count += s.Count
		return o
	}

	a, b := s.moments(), o.moments()
	na, nb := float64(a.n), float64(b.n)
	n := na + nb
	delta := b.m1 - a.m1
	r := moments{
		count: a.count + b.count,
		n:     a.n + b.n,
		m1:    a.m1 + delta*nb/n,
		m2:    a.m2 + b.m2 + delta*delta*na*nb/n,
	}.snapshot()
	if s.Min == nil || o.Min == nil || s.Max == nil || o.Max == nil {
		return r
	}
	return r.withMinMax(generic.Min(*s.Min, *o.Min), generic.Max(*s.Max, *o.Max))
}

// Sub computes statistics of samples collected after o was taken, where o is an earlier snapshot
// of the same RunningStat. Min and max cannot be recovered and are omitted.
func (s Snapshot) Sub(o Snapshot) Snapshot {
	a, c := o.moments(), s.moments()
	if c.n <= a.n {
		return moments{count: c.count - a.count}.snapshot()
	}
	na, nc := float64(a.n), float64(c.n)
	nb := nc - na
	m1 := (nc*c.m1 - na*a.m1) / nb
	delta := m1 - a.m1
	return moments{
		count: c.count - a.count,
		n:     c.n - a.n,
		m1:    m1,
		m2:    c.m2 - a.m2 - delta*delta*na*nb/nc,
	}.snapshot()
}

// Scale multiplies every sample by ratio, such as for converting units.
func (s Snapshot) Scale(ratio float64) Snapshot {
	m := s.moments()
	m.m1 *= ratio
	m.m2 *= ratio * ratio
	r := m.snapshot()
	if s.Min == nil || s.Max == nil {
		return r
	}
	return r.withMinMax(uint64(float64(*s.Min)*ratio), uint64(float64(*s.Max)*ratio))
}
