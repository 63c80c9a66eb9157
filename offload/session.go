package offload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/request"
	"github.com/usnistgov/symoffload/session"
	"github.com/usnistgov/symoffload/sgl"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Session is a logical crypto session bound to one instance.
type Session struct {
	d    *Driver
	inst *Instance
	pair *session.Pair
	// aadCipher decides AAD placement; CipherNone for digest sessions.
	aadCipher engine.CipherAlgorithm
	closed    atomic.Bool
}

// Params returns session parameters.
func (s *Session) Params() request.SessionParams {
	return s.pair.Params()
}

// Instance returns the instance this session is bound to.
func (s *Session) Instance() *Instance {
	return s.inst
}

// Pair returns the session halves.
func (s *Session) Pair() *session.Pair {
	return s.pair
}

// Close stops accepting requests and removes both session halves from the engine.
// If teardown fails, the session stays closed and Close may be called again.
func (s *Session) Close() error {
	s.closed.Store(true)
	if e := s.pair.Close(); e != nil {
		logger.Warn("session teardown failed", zap.Int("instance", s.inst.id), zap.Error(e))
		return e
	}
	s.d.forget(s)
	return nil
}

// Process submits a request.
//
// A nil return means the request was accepted by the engine and req.Done will be invoked exactly
// once from the completion path. Otherwise, the request was not submitted, req.Done is not invoked,
// and the error wraps request.ErrRetry or request.ErrIO.
func (s *Session) Process(req *request.Request) error {
	inst := s.inst
	if s.closed.Load() || s.d.closed.Load() {
		inst.nRejected.Inc()
		return fmt.Errorf("%w: %w", request.ErrIO, ErrClosed)
	}

	placement := s.aadPlacement(req)
	if e := s.validate(req, placement); e != nil {
		inst.nRejected.Inc()
		return fmt.Errorf("%w: %w", request.ErrIO, e)
	}

	c, e := inst.arena.Acquire()
	switch {
	case errors.Is(e, arena.ErrClosed):
		inst.nRejected.Inc()
		return fmt.Errorf("%w: %w", request.ErrIO, ErrClosed)
	case e != nil:
		e = fmt.Errorf("%w: %w", request.ErrRetry, e)
		inst.countReject(e)
		return e
	}
	c.Request = req
	// Driver.Close may have started between the first check and Acquire.
	if s.d.closed.Load() {
		return inst.unwind(c, fmt.Errorf("%w: %w", request.ErrIO, ErrClosed))
	}

	if e := s.build(c, req, placement); e != nil {
		return inst.unwind(c, fmt.Errorf("%w: %w", request.ErrIO, e))
	}

	inst.cache.Lock()
	defer inst.cache.Unlock()
	if s.closed.Load() {
		return inst.unwind(c, fmt.Errorf("%w: %w", request.ErrIO, ErrClosed))
	}

	h, e := inst.cache.EnsureReady(s.pair, req)
	switch {
	case errors.Is(e, engine.ErrResource):
		return inst.unwind(c, fmt.Errorf("%w: %w", request.ErrRetry, e))
	case e != nil:
		return inst.unwind(c, fmt.Errorf("%w: %w", request.ErrIO, e))
	}

	fl, e := s.placeDigest(c, req, h)
	if e != nil {
		return inst.unwind(c, fmt.Errorf("%w: %w", request.ErrIO, e))
	}
	c.Op.Session = h.Context()
	fl.submitted = time.Now()
	inst.flights[c.Index()] = fl

	switch e := inst.d.eng.Submit(&c.Op, true); {
	case e == nil:
		inst.nSubmitted.Inc()
		return nil
	case errors.Is(e, engine.ErrRetry):
		return inst.unwind(c, fmt.Errorf("%w: %w", request.ErrRetry, e))
	default:
		return inst.unwind(c, fmt.Errorf("%w: %w", request.ErrIO, e))
	}
}

// Do submits a request and waits for its completion or ctx cancellation.
// When ctx ends first, the request still completes later and its cookie is released then.
func (s *Session) Do(ctx context.Context, req *request.Request) error {
	done := make(chan struct{})
	cb := req.Callback
	req.Callback = func(req *request.Request) {
		if cb != nil {
			cb(req)
		}
		close(done)
	}

	if e := s.Process(req); e != nil {
		req.Callback = cb
		return e
	}

	select {
	case <-done:
		return req.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) aadPlacement(req *request.Request) sgl.AADPlacement {
	aad := sgl.AADLocation{
		Len:      req.AADLength(),
		InBuffer: req.AAD == nil,
		Start:    req.AADStart,
	}
	return sgl.ChooseAADPlacement(s.aadCipher, aad, req.PayloadStart)
}

func (s *Session) validate(req *request.Request, placement sgl.AADPlacement) error {
	params := s.pair.Params()
	caps := s.d.eng.Capabilities()
	bufLen, aadLen := req.Buf.Len(), req.AADLength()

	if req.PayloadStart < 0 || req.PayloadLen < 0 || req.PayloadStart+req.PayloadLen > bufLen {
		return fmt.Errorf("payload [%d,+%d) exceeds buffer length %d", req.PayloadStart, req.PayloadLen, bufLen)
	}
	srcLen := bufLen
	if placement == sgl.AADRelocated {
		srcLen = aadLen + bufLen - req.PayloadStart
	}
	if caps.MaxTransferSize > 0 && srcLen > caps.MaxTransferSize {
		return fmt.Errorf("source length %d exceeds max transfer size %d", srcLen, caps.MaxTransferSize)
	}

	switch params.Mode {
	case request.ModeCipher:
		if req.Op&(request.Encrypt|request.Decrypt) == 0 {
			return errors.New("cipher session requires Encrypt or Decrypt")
		}
		if aadLen > 0 {
			return errors.New("cipher session does not accept AAD")
		}
	default:
		if req.Op&(request.ComputeDigest|request.VerifyDigest) == 0 {
			return errors.New("digest session requires ComputeDigest or VerifyDigest")
		}
	}

	if aadLen > 0 && req.AAD == nil && (req.AADStart < 0 || req.AADStart+aadLen > bufLen) {
		return fmt.Errorf("AAD [%d,+%d) exceeds buffer length %d", req.AADStart, aadLen, bufLen)
	}
	switch placement {
	case sgl.AADSeparate:
		if limit := min(caps.MaxAADSize, s.inst.arena.Config().MaxAADSize); aadLen > limit {
			return fmt.Errorf("AAD length %d exceeds max AAD size %d", aadLen, limit)
		}
	case sgl.AADRelocated:
		if limit := s.inst.arena.Config().MaxAADSize; aadLen > limit {
			return fmt.Errorf("AAD length %d exceeds side buffer size %d", aadLen, limit)
		}
	}

	if len(req.IV) > params.IVLen {
		return fmt.Errorf("IV length %d exceeds session IV length %d", len(req.IV), params.IVLen)
	}

	if len(req.OutBuf) > 0 && params.Mode != request.ModeDigest {
		if outLen := req.OutBuf.Len(); req.PayloadOutputStart < 0 || req.PayloadOutputStart+req.PayloadLen > outLen {
			return fmt.Errorf("output [%d,+%d) exceeds output buffer length %d", req.PayloadOutputStart, req.PayloadLen, outLen)
		}
	}
	return nil
}

// placeDigest points the descriptor at the digest scratch buffer and prepares the flight record.
// The caller must hold the instance lock.
func (s *Session) placeDigest(c *arena.Cookie, req *request.Request, h *session.Half) (fl flight, e error) {
	ep := h.Params()
	if !sgl.DigestSeparated(ep) {
		return fl, nil
	}

	fl = flight{
		hasHash:   true,
		verify:    req.Op&request.VerifyDigest != 0,
		hwVerify:  ep.VerifyDigest,
		digestLen: h.DigestLen(),
	}
	if fl.digestLen > len(c.Digest) {
		return fl, fmt.Errorf("digest length %d exceeds scratch buffer", fl.digestLen)
	}

	buf := req.Output()
	if fl.verify {
		buf = req.Buf
	}
	if req.DigestStart < 0 || req.DigestStart+fl.digestLen > buf.Len() {
		return fl, fmt.Errorf("digest [%d,+%d) exceeds buffer length %d", req.DigestStart, fl.digestLen, buf.Len())
	}

	c.Op.Digest = c.DigestAddr
	if fl.verify && fl.hwVerify {
		if e := req.Buf.CopyOut(req.DigestStart, c.Digest[:fl.digestLen]); e != nil {
			return fl, e
		}
	}
	return fl, nil
}

func (inst *Instance) countReject(e error) {
	switch {
	case errors.Is(e, request.ErrRetry):
		inst.nRetries.Inc()
		if errors.Is(e, arena.ErrExhausted) {
			inst.nExhausted.Inc()
		}
	default:
		inst.nRejected.Inc()
	}
}
