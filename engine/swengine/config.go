package swengine

import (
	binutils "github.com/jfoster/binary-utilities"
	"github.com/pkg/math"
)

// Limits and defaults.
const (
	MinQueueCapacity     = 4
	MaxQueueCapacity     = 65536
	DefaultQueueCapacity = 1024

	DefaultMaxTransferSize = 1 << 20
	DefaultMaxAADSize      = 240

	// MaxIVSize is the longest IV accepted by any supported algorithm.
	MaxIVSize = 16
	// MaxDigestSize is the longest digest produced by any supported algorithm.
	MaxDigestSize = 64
)

// Config contains software engine configuration.
type Config struct {
	// QueueCapacity is the maximum number of submitted but not yet dispatched operations.
	// It is adjusted to a power of two between MinQueueCapacity and MaxQueueCapacity.
	QueueCapacity int `json:"queueCapacity,omitempty"`

	// MaxTransferSize is the maximum source buffer list length.
	MaxTransferSize int `json:"maxTransferSize,omitempty"`

	// MaxAADSize is the maximum separately addressed AAD length.
	MaxAADSize int `json:"maxAADSize,omitempty"`
}

func (cfg *Config) applyDefaults() {
	cfg.QueueCapacity = alignCapacity(cfg.QueueCapacity)
	if cfg.MaxTransferSize <= 0 {
		cfg.MaxTransferSize = DefaultMaxTransferSize
	}
	if cfg.MaxAADSize <= 0 {
		cfg.MaxAADSize = DefaultMaxAADSize
	}
}

func alignCapacity(capacity int) int {
	if capacity <= 0 {
		return DefaultQueueCapacity
	}
	capacity = int(binutils.NextPowerOfTwo(int64(capacity)))
	return math.MinInt(math.MaxInt(MinQueueCapacity, capacity), MaxQueueCapacity)
}
