// Package request defines crypto requests as presented by the request source.
package request

import (
	"errors"

	"go.uber.org/atomic"
)

// Outcome classes of a request.
// Completion errors wrap exactly one of these; use errors.Is to classify.
var (
	// ErrRetry indicates a transient condition; the request may be resubmitted later.
	ErrRetry = errors.New("resource temporarily unavailable")
	// ErrIO indicates a permanent failure of this request.
	ErrIO = errors.New("crypto I/O error")
	// ErrIntegrity indicates authentication failure: tampered or corrupt data.
	ErrIntegrity = errors.New("integrity check failed")
)

// Op is the requested operation.
type Op int

// Op flags.
const (
	Encrypt Op = 1 << iota
	Decrypt
	ComputeDigest
	VerifyDigest
)

// IsDecrypt determines whether the cipher direction is decrypt.
// Digest-only requests are neither encrypt nor decrypt; their direction is derived from the digest flag.
func (op Op) IsDecrypt() bool {
	if op&(Encrypt|Decrypt) == 0 {
		return op&VerifyDigest != 0
	}
	return op&Decrypt != 0
}

// Callback receives a completed request.
type Callback func(req *Request)

// Request is one symmetric crypto operation.
//
// Offsets are relative to the start of Buf unless noted.
type Request struct {
	Op Op

	// Buf holds the payload, and optionally AAD and digest.
	Buf Buffer
	// OutBuf, if not empty, receives output instead of Buf.
	OutBuf Buffer

	PayloadStart int
	PayloadLen   int
	// PayloadOutputStart is payload offset within OutBuf.
	PayloadOutputStart int

	// AADStart and AADLen describe AAD within Buf.
	// If AAD is not nil, it is the standalone AAD and AADStart is ignored.
	AADStart int
	AADLen   int
	AAD      []byte

	IV []byte

	// DigestStart is where the digest is read from (VerifyDigest) or written to (ComputeDigest).
	// The digest is read from Buf, and written to OutBuf if present.
	DigestStart int

	Callback Callback

	// Err contains the outcome after completion.
	Err error

	claimed atomic.Bool
	done    atomic.Bool
}

// AADLength returns AAD length, whether standalone or in Buf.
func (req *Request) AADLength() int {
	if req.AAD != nil {
		return len(req.AAD)
	}
	return req.AADLen
}

// Output returns the buffer receiving output.
func (req *Request) Output() Buffer {
	if len(req.OutBuf) > 0 {
		return req.OutBuf
	}
	return req.Buf
}

// Done records the outcome and invokes Callback.
// It returns false without effect if the request was already completed.
// Err is written before IsDone reports true.
func (req *Request) Done(e error) bool {
	if !req.claimed.CAS(false, true) {
		return false
	}
	req.Err = e
	req.done.Store(true)
	if req.Callback != nil {
		req.Callback(req)
	}
	return true
}

// IsDone determines whether Done has been invoked.
// After it returns true, Err may be read.
func (req *Request) IsDone() bool {
	return req.done.Load()
}
