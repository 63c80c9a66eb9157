package offload

import (
	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/session"
)

// Config contains Driver configuration.
type Config struct {
	// NInstances is the number of instances. Each instance has its own arena, session cache, and lock.
	NInstances int `json:"nInstances,omitempty"`

	Arena   arena.Config   `json:"arena,omitempty"`
	Session session.Config `json:"session,omitempty"`

	// Drain bounds the wait for in-flight requests during Close.
	Drain session.TeardownConfig `json:"drain,omitempty"`

	// LatencySampleInterval is how often a completion latency is collected.
	// It is adjusted to a power of two. Default is 1, collecting every completion.
	LatencySampleInterval int `json:"latencySampleInterval,omitempty"`
}

func (cfg *Config) applyDefaults() {
	if cfg.NInstances <= 0 {
		cfg.NInstances = 1
	}
	if cfg.LatencySampleInterval <= 0 {
		cfg.LatencySampleInterval = 1
	}
}
