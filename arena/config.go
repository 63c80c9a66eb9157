package arena

import (
	"github.com/pkg/math"
)

// Limits and defaults.
const (
	DefaultCapacity = 256

	MinSegments     = 2
	MaxSegments     = 256
	DefaultSegments = 16

	DefaultMaxAADSize = 240

	// IVSize is the IV scratch buffer size.
	IVSize = 16
	// DigestSize is the digest scratch buffer size.
	DigestSize = 64
	// OpSlotSize is the space reserved for the operation descriptor.
	OpSlotSize = 128

	cacheLine = 64
)

// Config contains Arena configuration.
type Config struct {
	// Capacity is the number of cookies, which bounds outstanding requests.
	Capacity int `json:"capacity,omitempty"`
	// MaxSegments is the capacity of each buffer list.
	MaxSegments int `json:"maxSegments,omitempty"`
	// MaxAADSize is the size of the AAD side buffer.
	MaxAADSize int `json:"maxAADSize,omitempty"`
}

func (cfg *Config) applyDefaults() {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = DefaultSegments
	}
	cfg.MaxSegments = math.MinInt(math.MaxInt(cfg.MaxSegments, MinSegments), MaxSegments)
	if cfg.MaxAADSize <= 0 {
		cfg.MaxAADSize = DefaultMaxAADSize
	}
}

func align(n, a int) int {
	return (n + a - 1) / a * a
}
