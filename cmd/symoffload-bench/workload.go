package main

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/request"
	"github.com/usnistgov/symoffload/session"
)

// workload describes requests generated by the load generator.
type workload struct {
	Mode     request.Mode      `json:"mode"`
	Cipher   request.Algorithm `json:"cipher,omitempty"`
	Auth     request.Algorithm `json:"auth,omitempty"`
	Size     int               `json:"size"`
	Segment  int               `json:"segment,omitempty"`
	AAD      int               `json:"aad,omitempty"`
	Sessions int               `json:"sessions"`
	Workers  int               `json:"workers"`
	Count    int               `json:"count"`
}

func (w *workload) applyDefaults() {
	if w.Size <= 0 {
		w.Size = 1024
	}
	if w.Sessions <= 0 {
		w.Sessions = 1
	}
	if w.Workers <= 0 {
		w.Workers = 1
	}
	if w.Count <= 0 {
		w.Count = 1000
	}
}

func keyLen(alg request.Algorithm) int {
	switch alg {
	case request.AlgNone, request.AlgNullCBC, request.AlgSHA1, request.AlgSHA2_256, request.AlgSHA2_384, request.AlgSHA2_512:
		return 0
	case request.AlgChaCha20Poly1305, request.AlgSHA1HMAC, request.AlgSHA2_256HMAC:
		return 32
	case request.AlgSHA2_384HMAC, request.AlgSHA2_512HMAC:
		return 64
	}
	return 16
}

func ivLen(alg request.Algorithm) int {
	switch alg {
	case request.AlgAESNISTGCM16, request.AlgAESNISTGMAC, request.AlgAESCCM16, request.AlgChaCha20Poly1305:
		return 12
	case request.AlgNone:
		return 0
	}
	return 16
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

// sessionParams creates session parameters with random keys.
func (w workload) sessionParams() request.SessionParams {
	params := request.SessionParams{
		Mode:   w.Mode,
		Cipher: w.Cipher,
		Auth:   w.Auth,
		IVLen:  ivLen(w.Cipher),
	}
	if session.IsGMAC(params) {
		params.IVLen = ivLen(w.Auth)
	}
	if n := keyLen(w.Cipher); n > 0 {
		params.CipherKey = randBytes(n)
	}
	if n := keyLen(w.Auth); n > 0 {
		params.AuthKey = randBytes(n)
	}
	return params
}

// newRequest creates an encrypt or digest request over a fresh buffer.
//
// Cipher requests carry only the payload. AEAD requests carry standalone AAD.
// ETA requests carry embedded AAD before the payload. A digest follows the payload.
func (w workload) newRequest(params request.SessionParams) (*request.Request, error) {
	req := &request.Request{
		IV:         randBytes(params.IVLen),
		PayloadLen: w.Size,
	}
	var b []byte
	switch w.Mode {
	case request.ModeCipher:
		req.Op = request.Encrypt
		b = randBytes(w.Size)
	case request.ModeDigest:
		req.Op = request.ComputeDigest
		req.DigestStart = w.Size
		b = append(randBytes(w.Size), make([]byte, arena.DigestSize)...)
	case request.ModeAEAD:
		req.Op = request.Encrypt | request.ComputeDigest
		req.AAD = randBytes(w.AAD)
		req.DigestStart = w.Size
		b = append(randBytes(w.Size), make([]byte, arena.DigestSize)...)
	case request.ModeETA:
		req.Op = request.Encrypt | request.ComputeDigest
		req.AADLen = w.AAD
		req.PayloadStart = w.AAD
		req.DigestStart = w.AAD + w.Size
		b = append(randBytes(w.AAD+w.Size), make([]byte, arena.DigestSize)...)
	default:
		return nil, fmt.Errorf("unknown mode %s", w.Mode)
	}
	req.Buf = split(b, w.Segment)
	return req, nil
}

// split divides b into segments of n octets; n<=0 means one segment.
func split(b []byte, n int) (buf request.Buffer) {
	if n <= 0 {
		return request.Buffer{b}
	}
	for len(b) > n {
		buf = append(buf, b[:n])
		b = b[n:]
	}
	return append(buf, b)
}

var errMismatch = errors.New("output mismatch")
