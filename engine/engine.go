// Package engine defines the contract of a symmetric crypto engine.
//
// An engine executes operation descriptors asynchronously. Submitted descriptors refer to
// device memory by dma.Addr only; results are reported through a single registered Callback.
package engine

import (
	"errors"

	"github.com/usnistgov/symoffload/dma"
)

// Error conditions reported by an Engine.
var (
	// ErrRetry indicates the engine cannot accept the submission now; it may be retried later.
	ErrRetry = errors.New("engine busy, try again")
	// ErrBusy indicates a session context is still referenced by in-flight operations.
	ErrBusy = errors.New("session context busy")
	// ErrResource indicates the engine lacks a transient resource to update a session.
	ErrResource = errors.New("engine resource busy")
	// ErrUnsupported indicates an unsupported algorithm combination.
	ErrUnsupported = errors.New("unsupported algorithm combination")
	// ErrInvalid indicates a malformed descriptor or session parameter.
	ErrInvalid = errors.New("invalid parameter")
	// ErrNoCallback indicates Submit was invoked before RegisterCallback.
	ErrNoCallback = errors.New("completion callback not registered")
	// ErrVerify is the completion status of an operation whose digest check failed in the engine.
	ErrVerify = errors.New("digest verification failed")
)

// Callback is invoked by the engine when an operation completes.
// status is nil on success. verified reports the engine's digest check result, and is meaningful
// only when the session has VerifyDigest enabled.
// Callback may run concurrently with Submit and with other callbacks.
type Callback func(op *OpDescriptor, status error, verified bool)

// Capabilities describes engine limits.
type Capabilities struct {
	// MaxTransferSize is the maximum payload length of one operation.
	MaxTransferSize int `json:"maxTransferSize"`
	// MaxAADSize is the maximum length of separately addressed AAD.
	MaxAADSize int `json:"maxAADSize"`
	// MaxIVSize is the maximum IV length.
	MaxIVSize int `json:"maxIVSize"`
	// MaxDigestSize is the maximum digest length.
	MaxDigestSize int `json:"maxDigestSize"`
}

// SeparateAAD determines whether AAD of a cipher algorithm is addressed separately from the payload.
func SeparateAAD(alg CipherAlgorithm) bool {
	switch alg {
	case CipherAESGCM, CipherAESCCM, CipherChaCha20Poly1305:
		return true
	}
	return false
}

// SessionContext is engine-owned session state in device memory.
type SessionContext struct {
	Mem *dma.Region
	Len int
}

// Addr returns device address of the context.
func (sc *SessionContext) Addr() dma.Addr {
	if sc == nil || sc.Mem == nil {
		return 0
	}
	return sc.Mem.Addr(0)
}

// Engine is a symmetric crypto engine.
type Engine interface {
	// Capabilities returns engine limits.
	Capabilities() Capabilities

	// DefaultDigestLen returns the natural digest length of a hash algorithm.
	DefaultDigestLen(alg HashAlgorithm) (int, error)

	// SessionContextSize returns the context memory size required by session parameters.
	SessionContextSize(params SessionParams) (int, error)

	// InitSession initializes a session context in caller-allocated memory.
	InitSession(params SessionParams, ctx *SessionContext) error

	// QueryBusy determines whether in-flight operations reference the session context.
	QueryBusy(ctx *SessionContext) (bool, error)

	// RemoveSession releases engine state of a session context.
	// It returns ErrBusy while operations are in flight.
	RemoveSession(ctx *SessionContext) error

	// RegisterCallback sets the completion callback.
	RegisterCallback(cb Callback) error

	// Submit enqueues an operation descriptor.
	// If now is false, the engine may hold the operation until a later Submit with now=true or Flush.
	// ErrRetry is transient; other errors are permanent rejections.
	Submit(op *OpDescriptor, now bool) error

	// Flush dispatches held operations.
	Flush() error
}
