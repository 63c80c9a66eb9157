package session

import (
	"time"

	"github.com/grailbio/base/retry"
	"github.com/pkg/math"
	"github.com/usnistgov/symoffload/core/nnduration"
)

// TeardownConfig bounds the wait for a session context to become idle before removal.
type TeardownConfig struct {
	// MaxTries is the number of busy checks before giving up.
	MaxTries int `json:"maxTries,omitempty"`
	// InitialBackoff is the wait after the first busy check.
	InitialBackoff nnduration.Milliseconds `json:"initialBackoff,omitempty"`
	// MaxBackoff caps the wait between busy checks.
	MaxBackoff nnduration.Milliseconds `json:"maxBackoff,omitempty"`
}

func (cfg *TeardownConfig) applyDefaults() {
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 10
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 1
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = nnduration.Milliseconds(math.MaxInt(50, int(cfg.InitialBackoff)))
	}
}

// Policy returns the retry policy.
func (cfg TeardownConfig) Policy() retry.Policy {
	cfg.applyDefaults()
	return retry.MaxRetries(retry.Backoff(cfg.InitialBackoff.Duration(), cfg.MaxBackoff.Duration(), 2), cfg.MaxTries)
}

// Budget returns the longest total wait allowed by the policy.
func (cfg TeardownConfig) Budget() (d time.Duration) {
	policy := cfg.Policy()
	for i := 0; ; i++ {
		ok, wait := policy.Retry(i)
		if !ok {
			return d
		}
		d += wait
	}
}

// Config contains session cache configuration.
type Config struct {
	// HardwareVerify enables digest verification in the engine for decrypt sessions.
	// Otherwise, the digest is verified by the driver after completion.
	HardwareVerify bool `json:"hardwareVerify,omitempty"`

	Teardown TeardownConfig `json:"teardown,omitempty"`
}
