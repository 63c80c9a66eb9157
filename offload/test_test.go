package offload_test

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/engine/swengine"
	"github.com/usnistgov/symoffload/offload"
	"github.com/usnistgov/symoffload/request"
	"go4.org/must"
)

var makeAR = testenv.MakeAR

// recorder keeps a copy of every submitted descriptor.
type recorder struct {
	*swengine.Engine
	mu  sync.Mutex
	ops []engine.OpDescriptor
}

func (r *recorder) Submit(op *engine.OpDescriptor, now bool) error {
	r.mu.Lock()
	r.ops = append(r.ops, *op)
	r.mu.Unlock()
	return r.Engine.Submit(op, now)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

func (r *recorder) last() engine.OpDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[len(r.ops)-1]
}

type fixture struct {
	t   testing.TB
	m   *dma.IOMMU
	eng *swengine.Engine
	rec *recorder
	d   *offload.Driver
}

func newFixture(t testing.TB, cfg offload.Config, engCfg swengine.Config) *fixture {
	f := &fixture{
		t: t,
		m: dma.NewIOMMU(dma.IOMMUConfig{}),
	}
	f.eng = swengine.New(f.m, engCfg)
	f.rec = &recorder{Engine: f.eng}
	t.Cleanup(func() {
		must.Close(f.eng)
		if n := f.m.CountMappings(); n != 0 {
			t.Errorf("%d mappings leaked", n)
		}
	})

	d, e := offload.New(f.rec, f.m, cfg)
	if e != nil {
		t.Fatal(e)
	}
	f.d = d
	t.Cleanup(func() { must.Close(f.d) })
	return f
}

func (f *fixture) session(params request.SessionParams) *offload.Session {
	s, e := f.d.NewSession(params)
	if e != nil {
		f.t.Fatal(e)
	}
	return s
}

// do processes a request and waits for its completion.
func (f *fixture) do(s *offload.Session, req *request.Request) error {
	return s.Do(testenv.Context(f.t, 5*time.Second), req)
}

// cookie returns the in-flight cookie of a recorded descriptor.
func (f *fixture) cookie(s *offload.Session, op engine.OpDescriptor) *arena.Cookie {
	c, e := s.Instance().Arena().Lookup(op.Tag)
	if e != nil {
		f.t.Fatal(e)
	}
	return c
}

// notify returns a request callback and a channel closed when it is invoked.
func notify() (request.Callback, <-chan struct{}) {
	done := make(chan struct{})
	return func(*request.Request) { close(done) }, done
}

func (f *fixture) wait(done <-chan struct{}) {
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		f.t.Fatal("completion timeout")
	}
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	testenv.RandBytes(b)
	return b
}

// segmented copies b into a request buffer split at the given sizes.
func segmented(b []byte, sizes ...int) request.Buffer {
	return request.Buffer(testenv.SplitBytes(b, sizes...))
}

func concat(parts ...[]byte) []byte {
	return testenv.JoinBytes(parts)
}

func cbcEncrypt(key, iv, plain []byte) []byte {
	block, _ := aes.NewCipher(key)
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)
	return out
}

func ctrXOR(key, iv, in []byte) []byte {
	block, _ := aes.NewCipher(key)
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out
}

func hmacSHA256(key []byte, parts ...[]byte) []byte {
	h := hmac.New(sha256.New, key)
	for _, part := range parts {
		h.Write(part)
	}
	return h.Sum(nil)
}

func gcmSeal(key, iv, plain, aad []byte) []byte {
	block, _ := aes.NewCipher(key)
	aead, _ := cipher.NewGCM(block)
	return aead.Seal(nil, iv, plain, aad)
}
