package main

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/offload"
	"github.com/usnistgov/symoffload/request"
	"go.uber.org/multierr"
)

type scenario struct {
	Name string
	// Config modifies the rig configuration.
	Config func(cfg *rigConfig)
	Run    func(ctx context.Context, r *rig) error
}

func expect(cond bool, format string, a ...any) error {
	if cond {
		return nil
	}
	return fmt.Errorf("%w: "+format, append([]any{errMismatch}, a...)...)
}

func (r *rig) session(params request.SessionParams) (*offload.Session, error) {
	return r.d.NewSession(params)
}

var scenarios = []scenario{
	{
		Name: "in-place cipher-only",
		Run: func(ctx context.Context, r *rig) error {
			key, iv, plain := randBytes(16), randBytes(16), randBytes(64)
			s, e := r.session(request.SessionParams{Mode: request.ModeCipher, Cipher: request.AlgAESCBC, CipherKey: key, IVLen: 16})
			if e != nil {
				return e
			}
			defer s.Close()

			req := &request.Request{Op: request.Encrypt, Buf: split(bytes.Clone(plain), 24), PayloadLen: 64, IV: iv}
			if e := s.Do(ctx, req); e != nil {
				return e
			}
			op := r.eng.Last()
			block, _ := aes.NewCipher(key)
			ct := make([]byte, 64)
			cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, plain)
			return multierr.Combine(
				expect(op.DstList == op.SrcList, "destination list differs from source list"),
				expect(!op.Digest.Valid(), "digest address is set"),
				expect(bytes.Equal(ct, req.Buf.Bytes()), "ciphertext"),
			)
		},
	},
	{
		Name: "AEAD with separate AAD",
		Run: func(ctx context.Context, r *rig) error {
			key, iv, aad, plain := randBytes(16), randBytes(12), randBytes(16), randBytes(48)
			s, e := r.session(request.SessionParams{Mode: request.ModeAEAD, Cipher: request.AlgAESNISTGCM16, CipherKey: key, IVLen: 12})
			if e != nil {
				return e
			}
			defer s.Close()

			req := &request.Request{
				Op:          request.Encrypt | request.ComputeDigest,
				Buf:         split(append(bytes.Clone(plain), make([]byte, 16)...), 20),
				PayloadLen:  48,
				AAD:         aad,
				IV:          iv,
				DigestStart: 48,
			}
			if e := s.Do(ctx, req); e != nil {
				return e
			}
			op := r.eng.Last()
			block, _ := aes.NewCipher(key)
			aead, _ := cipher.NewGCM(block)
			return multierr.Combine(
				expect(op.AAD.Valid(), "AAD address is unset"),
				expect(op.Digest.Valid(), "digest address is unset"),
				expect(op.CipherStart == 0 && op.CipherLen == 48, "cipher range %d+%d", op.CipherStart, op.CipherLen),
				expect(bytes.Equal(aead.Seal(nil, iv, plain, aad), req.Buf.Bytes()), "ciphertext or tag"),
			)
		},
	},
	{
		Name: "hash-then-cipher with embedded AAD",
		Run: func(ctx context.Context, r *rig) error {
			key, hkey, iv, aad, plain := randBytes(16), randBytes(32), randBytes(16), randBytes(8), randBytes(32)
			s, e := r.session(request.SessionParams{
				Mode: request.ModeETA, Cipher: request.AlgAESCBC, CipherKey: key, IVLen: 16,
				Auth: request.AlgSHA2_256HMAC, AuthKey: hkey,
			})
			if e != nil {
				return e
			}
			defer s.Close()

			block, _ := aes.NewCipher(key)
			ct := make([]byte, 32)
			cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, plain)
			h := hmac.New(sha256.New, hkey)
			h.Write(aad)
			h.Write(ct)
			mac := h.Sum(nil)

			newRequest := func(mac []byte) *request.Request {
				b := append(append(bytes.Clone(aad), ct...), mac...)
				return &request.Request{
					Op:           request.Decrypt | request.VerifyDigest,
					Buf:          split(b, 13),
					AADLen:       8,
					PayloadStart: 8,
					PayloadLen:   32,
					IV:           iv,
					DigestStart:  40,
				}
			}

			req := newRequest(mac)
			if e := s.Do(ctx, req); e != nil {
				return e
			}
			op := r.eng.Last()
			mac[len(mac)-1] ^= 0x01
			tampered := s.Do(ctx, newRequest(mac))
			return multierr.Combine(
				expect(op.HashStart == 0 && op.HashLen == 40, "hash range %d+%d", op.HashStart, op.HashLen),
				expect(op.CipherStart == 8 && op.CipherLen == 32, "cipher range %d+%d", op.CipherStart, op.CipherLen),
				expect(!op.AAD.Valid(), "AAD address is set"),
				expect(bytes.Equal(plain, req.Buf.Bytes()[8:40]), "plaintext"),
				expect(errors.Is(tampered, request.ErrIntegrity), "tampered digest accepted: %v", tampered),
			)
		},
	},
	{
		Name: "exhaustion",
		Config: func(cfg *rigConfig) {
			cfg.Offload.NInstances = 1
			cfg.Offload.Arena.Capacity = 4
		},
		Run: func(ctx context.Context, r *rig) (e error) {
			s, e := r.session(request.SessionParams{Mode: request.ModeCipher, Cipher: request.AlgAESICM, CipherKey: randBytes(16), IVLen: 16})
			if e != nil {
				return e
			}
			defer s.Close()
			inst := s.Instance()
			capacity := inst.Arena().Capacity()

			done := make(chan *request.Request, capacity)
			newRequest := func() *request.Request {
				return &request.Request{
					Op: request.Encrypt, Buf: request.Buffer{randBytes(32)}, PayloadLen: 32, IV: randBytes(16),
					Callback: func(req *request.Request) { done <- req },
				}
			}

			r.eng.Pause()
			for i := 0; i < capacity; i++ {
				if e = s.Process(newRequest()); e != nil {
					break
				}
			}
			var overflow error
			if e == nil {
				overflow = s.Process(newRequest())
			}
			r.eng.Resume()
			if e != nil {
				return e
			}

			for i := 0; i < capacity; i++ {
				select {
				case req := <-done:
					e = multierr.Append(e, req.Err)
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return multierr.Combine(e,
				expect(errors.Is(overflow, request.ErrRetry) && errors.Is(overflow, arena.ErrExhausted),
					"overflow request returned %v", overflow),
				expect(inst.Arena().CountInUse() == 0, "%d cookies in use", inst.Arena().CountInUse()),
			)
		},
	},
}

func runScenario(ctx context.Context, sc scenario) (e error) {
	cfg := rigCfg
	if sc.Config != nil {
		sc.Config(&cfg)
	}
	r, e := openRig(cfg)
	if e != nil {
		return e
	}
	defer func() { e = multierr.Append(e, r.Close()) }()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return sc.Run(ctx, r)
}

func init() {
	defineCommand(&cli.Command{
		Name:  "selftest",
		Usage: "Run offload scenarios against the software engine.",
		Action: func(c *cli.Context) error {
			nFail := 0
			for _, sc := range scenarios {
				if e := runScenario(c.Context, sc); e != nil {
					nFail++
					fmt.Printf("FAIL %s: %v\n", sc.Name, e)
					continue
				}
				fmt.Printf("PASS %s\n", sc.Name)
			}
			if nFail > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d scenarios failed", nFail, len(scenarios)), 1)
			}
			return nil
		},
	})
}
