// Package hwinfo gathers hardware information.
package hwinfo

import (
	"slices"

	"github.com/usnistgov/symoffload/core/logging"
)

var logger = logging.New("hwinfo")

// CPU describes the host processors.
type CPU struct {
	Model        string   `json:"model"`
	LogicalCores int      `json:"logicalCores"`
	Flags        []string `json:"flags,omitempty"`
}

// HasFlag determines whether every processor advertises a feature flag.
func (cpu CPU) HasFlag(flag string) bool {
	return slices.Contains(cpu.Flags, flag)
}

// CryptoFlags lists instruction set extensions that accelerate the software engine.
var CryptoFlags = []string{"aes", "pclmulqdq", "sha_ni", "avx2"}

// Accelerations returns CryptoFlags present in the CPU.
func (cpu CPU) Accelerations() (list []string) {
	list = []string{}
	for _, flag := range CryptoFlags {
		if cpu.HasFlag(flag) {
			list = append(list, flag)
		}
	}
	return list
}

// Provider provides information about hardware.
type Provider interface {
	// CPU provides information about CPU.
	CPU() (CPU, error)
}

// Default is the default Provider implementation.
var Default Provider = &procinfoProvider{path: pathCPUInfo}
