package offload

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/request"
	"go.uber.org/zap"
)

// complete reconciles one completion.
// The cookie is released exactly once, before the request source is notified.
func (inst *Instance) complete(op *engine.OpDescriptor, status error, verified bool) {
	c, e := inst.arena.FromOp(op)
	if e != nil {
		logger.Panic("completion for released cookie", zap.Int("instance", inst.id), zap.Error(e))
	}
	req, fl := c.Request, inst.flights[c.Index()]
	inst.pushLatency(time.Since(fl.submitted))

	result := inst.reconcile(c, fl, status, verified)

	inst.flights[c.Index()] = flight{}
	if e := inst.arena.Release(c); e != nil {
		logger.Panic("cookie released twice", zap.Int("instance", inst.id), zap.Int("tag", c.Index()))
	}
	req.Done(result)
}

func (inst *Instance) reconcile(c *arena.Cookie, fl flight, status error, verified bool) error {
	req := c.Request
	if e := c.UnmapBuffers(); e != nil {
		inst.nFailed.Inc()
		return fmt.Errorf("%w: %w", request.ErrIO, e)
	}

	integrity := func(format string, a ...any) error {
		inst.nIntegrity.Inc()
		return fmt.Errorf("%w: "+format, append([]any{request.ErrIntegrity}, a...)...)
	}
	switch {
	case status != nil:
		return integrity("engine status %w", status)
	case !fl.hasHash:
	case fl.verify && fl.hwVerify:
		if !verified {
			return integrity("engine verify flag unset")
		}
	case fl.verify:
		expected := make([]byte, fl.digestLen)
		if e := req.Buf.CopyOut(req.DigestStart, expected); e != nil {
			inst.nFailed.Inc()
			return fmt.Errorf("%w: %w", request.ErrIO, e)
		}
		if subtle.ConstantTimeCompare(expected, c.Digest[:fl.digestLen]) != 1 {
			return integrity("digest mismatch")
		}
	default:
		if e := req.Output().CopyIn(req.DigestStart, c.Digest[:fl.digestLen]); e != nil {
			inst.nFailed.Inc()
			return fmt.Errorf("%w: %w", request.ErrIO, e)
		}
	}

	inst.nCompleted.Inc()
	return nil
}
