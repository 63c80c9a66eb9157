package session_test

import (
	"sync"
	"testing"

	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/request"
	"github.com/usnistgov/symoffload/session"
	"golang.org/x/sync/errgroup"
)

var (
	key16 = make([]byte, 16)
	key20 = make([]byte, 20)

	gcmParams = request.SessionParams{Mode: request.ModeAEAD, Cipher: request.AlgAESNISTGCM16, CipherKey: key16, IVLen: 12}
	etaParams = request.SessionParams{Mode: request.ModeETA, Cipher: request.AlgAESCBC, CipherKey: key16, IVLen: 16,
		Auth: request.AlgSHA2_256HMAC, AuthKey: key20}
)

func TestResolve(t *testing.T) {
	assert, require := makeAR(t)

	ep, e := session.Resolve(etaParams, engine.Encrypt, 20)
	require.NoError(e)
	assert.Equal(engine.OpAlgChain, ep.Operation)
	assert.Equal(engine.CipherThenHash, ep.ChainOrder)
	assert.Equal(engine.CipherAESCBC, ep.Cipher)
	assert.Equal(engine.HashSHA256, ep.Hash)
	assert.Equal(engine.HashModeAuth, ep.HashMode)
	assert.Equal(0, ep.AADLen)
	assert.Equal(0, ep.DigestLen)

	ep, e = session.Resolve(etaParams, engine.Decrypt, 20)
	require.NoError(e)
	assert.Equal(engine.HashThenCipher, ep.ChainOrder)
	assert.Equal(engine.Decrypt, ep.Direction)

	ep, e = session.Resolve(gcmParams, engine.Decrypt, 16)
	require.NoError(e)
	assert.Equal(engine.HashAESGCM, ep.Hash)
	assert.Equal(16, ep.AADLen)
	assert.Equal(engine.HashThenCipher, ep.ChainOrder)

	gmac := request.SessionParams{Mode: request.ModeDigest, Auth: request.AlgAESNISTGMAC, AuthKey: key16, IVLen: 12, MACLen: 12}
	assert.True(session.IsGMAC(gmac))
	assert.Equal(engine.Encrypt, session.Direction(gmac, request.VerifyDigest))
	ep, e = session.Resolve(gmac, engine.Decrypt, 16)
	require.NoError(e)
	assert.Equal(engine.OpAlgChain, ep.Operation)
	assert.Equal(engine.CipherAESGCM, ep.Cipher)
	assert.Equal(key16, ep.CipherKey)
	assert.Equal(engine.HashAESGMAC, ep.Hash)
	assert.Equal(engine.Encrypt, ep.Direction)
	assert.Equal(0, ep.AADLen)
	assert.Equal(12, ep.DigestLen)

	assert.Equal(engine.Decrypt, session.Direction(etaParams, request.Decrypt|request.VerifyDigest))
	assert.Equal(engine.Encrypt, session.Direction(etaParams, request.Encrypt|request.ComputeDigest))

	unsupported := []request.SessionParams{
		{Mode: request.ModeCipher, Cipher: request.AlgAESNISTGCM16},
		{Mode: request.ModeCipher, Cipher: request.AlgAESCBC, Auth: request.AlgSHA1HMAC},
		{Mode: request.ModeDigest, Auth: request.AlgAESCBC},
		{Mode: request.ModeAEAD, Cipher: request.AlgAESCBC},
		{Mode: request.ModeETA, Cipher: request.AlgAESCBC, Auth: request.AlgAESNISTGMAC},
		{Mode: request.Mode(99)},
	}
	for i, params := range unsupported {
		_, e := session.Resolve(params, engine.Encrypt, 0)
		assert.ErrorIs(e, engine.ErrUnsupported, "%d", i)
	}
}

func TestLazyInit(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, session.Config{})
	p := f.newPair(etaParams)

	assert.False(p.Half(engine.Encrypt).Ready())
	assert.False(p.Half(engine.Decrypt).Ready())

	h, e := f.ensure(p, &request.Request{Op: request.Encrypt | request.ComputeDigest})
	require.NoError(e)
	assert.Same(p.Half(engine.Encrypt), h)
	assert.True(h.Ready())
	assert.False(p.Half(engine.Decrypt).Ready())
	assert.Equal(32, h.DigestLen())
	assert.False(h.Params().VerifyDigest)
	assert.Equal(1, f.eng.CountSessions())

	h2, e := f.ensure(p, &request.Request{Op: request.Encrypt | request.ComputeDigest, AADLen: 8})
	require.NoError(e)
	assert.Same(h, h2)
	assert.EqualValues(1, f.cache.InitCount())

	h, e = f.ensure(p, &request.Request{Op: request.Decrypt | request.VerifyDigest})
	require.NoError(e)
	assert.Equal(engine.Decrypt, h.Direction())
	assert.Equal(engine.HashThenCipher, h.Params().ChainOrder)
	assert.EqualValues(2, f.cache.InitCount())
	assert.Equal(2, f.eng.CountSessions())

	assert.NoError(p.Close())
	assert.False(p.Half(engine.Encrypt).Ready())
	assert.False(p.Half(engine.Decrypt).Ready())
	assert.Equal(0, f.eng.CountSessions())
	assert.EqualValues(2, f.cache.Counters().Removals)
}

func TestMACLen(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, session.Config{HardwareVerify: true})
	params := etaParams
	params.MACLen = 12
	p := f.newPair(params)

	h, e := f.ensure(p, &request.Request{Op: request.Decrypt | request.VerifyDigest})
	require.NoError(e)
	assert.Equal(12, h.DigestLen())
	assert.True(h.Params().VerifyDigest)

	h, e = f.ensure(p, &request.Request{Op: request.Encrypt | request.ComputeDigest})
	require.NoError(e)
	assert.False(h.Params().VerifyDigest)
}

func TestConcurrentInit(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, session.Config{})
	p := f.newPair(gcmParams)

	var mu sync.Mutex
	seen := map[*engine.SessionContext]bool{}
	var eg errgroup.Group
	for i := 0; i < 32; i++ {
		eg.Go(func() error {
			h, e := f.ensure(p, &request.Request{Op: request.Encrypt, AAD: make([]byte, 16)})
			if e != nil {
				return e
			}
			mu.Lock()
			seen[h.Context()] = true
			mu.Unlock()
			return nil
		})
	}
	require.NoError(eg.Wait())
	assert.Len(seen, 1)
	assert.EqualValues(1, f.cache.InitCount())
	assert.Equal(1, f.eng.CountSessions())
}

func TestAADUpdate(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, session.Config{})
	p := f.newPair(gcmParams)

	h, e := f.ensure(p, &request.Request{Op: request.Encrypt, AAD: make([]byte, 16)})
	require.NoError(e)
	assert.Equal(16, h.AADLen())
	ctx0 := h.Context()

	h, e = f.ensure(p, &request.Request{Op: request.Encrypt, AADLen: 20})
	require.NoError(e)
	assert.Equal(20, h.AADLen())
	assert.NotSame(ctx0, h.Context())
	assert.EqualValues(2, f.cache.InitCount())
	assert.EqualValues(1, f.cache.Counters().Updates)
	assert.Equal(1, f.eng.CountSessions())

	resume := f.hold(h)
	_, e = f.ensure(p, &request.Request{Op: request.Encrypt, AADLen: 24})
	assert.ErrorIs(e, engine.ErrResource)
	assert.Equal(20, h.AADLen())
	resume()

	h, e = f.ensure(p, &request.Request{Op: request.Encrypt, AADLen: 24})
	require.NoError(e)
	assert.Equal(24, h.AADLen())
}

func TestRemoveBusy(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, session.Config{Teardown: session.TeardownConfig{MaxTries: 3, InitialBackoff: 1, MaxBackoff: 2}})
	p := f.newPair(etaParams)

	h, e := f.ensure(p, &request.Request{Op: request.Encrypt | request.ComputeDigest})
	require.NoError(e)

	resume := f.hold(h)
	assert.ErrorIs(f.cache.Remove(h), engine.ErrBusy)
	assert.True(h.Ready())
	assert.EqualValues(1, f.cache.Counters().RemoveFailures)
	resume()

	assert.NoError(f.cache.Remove(h))
	assert.False(h.Ready())
	assert.NoError(f.cache.Remove(h))
}

func TestInitFailure(t *testing.T) {
	assert, _ := makeAR(t)
	f := newFixture(t, session.Config{})

	ccm, e := f.cache.NewPair(request.SessionParams{Mode: request.ModeAEAD, Cipher: request.AlgAESCCM16, CipherKey: key16})
	assert.NoError(e)
	_, e = f.ensure(ccm, &request.Request{Op: request.Encrypt})
	assert.ErrorIs(e, engine.ErrUnsupported)
	assert.False(ccm.Half(engine.Encrypt).Ready())

	_, e = f.cache.NewPair(request.SessionParams{Mode: request.ModeCipher, Cipher: request.AlgSHA1})
	assert.ErrorIs(e, engine.ErrUnsupported)

	nMappings := f.m.CountMappings()
	failing := session.New(failingEngine{f.eng}, f.m, session.Config{})
	p, e := failing.NewPair(etaParams)
	assert.NoError(e)
	failing.Lock()
	_, e = failing.EnsureReady(p, &request.Request{Op: request.Encrypt})
	failing.Unlock()
	assert.ErrorIs(e, engine.ErrInvalid)
	assert.False(p.Half(engine.Encrypt).Ready())
	assert.Equal(nMappings, f.m.CountMappings())
	assert.EqualValues(0, failing.InitCount())
}
