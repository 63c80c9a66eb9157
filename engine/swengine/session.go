package swengine

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"go.uber.org/atomic"
	"golang.org/x/crypto/chacha20poly1305"
)

// Session context layout in device memory:
//
//	0   [4]byte magic
//	4   u8 operation, u8 chain order, u8 direction, u8 flags
//	8   u8 cipher, u8 hash, u8 hash mode, u8 digest length
//	12  u16 AAD length, u16 cipher key length, u16 auth key length, u16 reserved
//	20  cipher key, then auth key
const (
	ctxHeaderSize = 20
	ctxAlign      = 64
	flagVerify    = 1
)

var ctxMagic = [4]byte{'S', 'W', 'S', 'C'}

type aeadKind int

const (
	aeadNone aeadKind = iota
	aeadGCM
	aeadChaCha
	aeadGMAC
)

type session struct {
	params engine.SessionParams
	ctx    *engine.SessionContext

	block   cipher.Block
	aead    cipher.AEAD
	kind    aeadKind
	newHash func() hash.Hash

	inflight atomic.Int32
}

func digestLen(alg engine.HashAlgorithm) (int, error) {
	switch alg {
	case engine.HashSHA1:
		return sha1.Size, nil
	case engine.HashSHA256:
		return sha256.Size, nil
	case engine.HashSHA384:
		return sha512.Size384, nil
	case engine.HashSHA512:
		return sha512.Size, nil
	case engine.HashAESGMAC, engine.HashAESGCM, engine.HashAESCCM, engine.HashPoly1305:
		return 16, nil
	}
	return 0, fmt.Errorf("%w: hash %s", engine.ErrUnsupported, alg)
}

func plainHash(alg engine.HashAlgorithm) func() hash.Hash {
	switch alg {
	case engine.HashSHA1:
		return sha1.New
	case engine.HashSHA256:
		return sha256.New
	case engine.HashSHA384:
		return sha512.New384
	case engine.HashSHA512:
		return sha512.New
	}
	return nil
}

func contextSize(params engine.SessionParams) int {
	n := ctxHeaderSize + len(params.CipherKey) + len(params.AuthKey)
	return (n + ctxAlign - 1) / ctxAlign * ctxAlign
}

func newSession(params engine.SessionParams) (s *session, e error) {
	s = &session{params: params}
	if params.DigestLen < 0 || params.DigestLen > MaxDigestSize || params.AADLen < 0 {
		return nil, fmt.Errorf("%w: %s", engine.ErrInvalid, params)
	}

	switch params.Operation {
	case engine.OpCipher:
		e = s.initCipher()
	case engine.OpHash:
		e = s.initHash()
	case engine.OpAlgChain:
		switch {
		case params.Cipher == engine.CipherAESGCM && params.Hash == engine.HashAESGCM:
			e = s.initAEAD(aeadGCM)
		case params.Cipher == engine.CipherAESGCM && params.Hash == engine.HashAESGMAC:
			e = s.initAEAD(aeadGMAC)
		case params.Cipher == engine.CipherChaCha20Poly1305 && params.Hash == engine.HashPoly1305:
			e = s.initAEAD(aeadChaCha)
		case params.Cipher.IsAEAD() || !params.Hash.IsPlain():
			e = fmt.Errorf("%w: %s", engine.ErrUnsupported, params)
		default:
			if e = s.initCipher(); e == nil {
				e = s.initHash()
			}
		}
	default:
		e = fmt.Errorf("%w: operation %s", engine.ErrInvalid, params.Operation)
	}
	if e != nil {
		return nil, e
	}
	return s, nil
}

func (s *session) initCipher() (e error) {
	switch s.params.Cipher {
	case engine.CipherNull:
		return nil
	case engine.CipherAESCBC, engine.CipherAESCTR:
		if s.block, e = aes.NewCipher(s.params.CipherKey); e != nil {
			return fmt.Errorf("%w: %v", engine.ErrInvalid, e)
		}
		return nil
	}
	return fmt.Errorf("%w: cipher %s", engine.ErrUnsupported, s.params.Cipher)
}

func (s *session) initHash() error {
	newPlain := plainHash(s.params.Hash)
	if newPlain == nil {
		return fmt.Errorf("%w: hash %s", engine.ErrUnsupported, s.params.Hash)
	}
	if s.params.DigestLen == 0 || s.params.DigestLen > newPlain().Size() {
		return fmt.Errorf("%w: digest length %d for %s", engine.ErrInvalid, s.params.DigestLen, s.params.Hash)
	}

	switch s.params.HashMode {
	case engine.HashModePlain:
		s.newHash = newPlain
	case engine.HashModeAuth:
		key := s.params.AuthKey
		s.newHash = func() hash.Hash { return hmac.New(newPlain, key) }
	default:
		return fmt.Errorf("%w: hash mode %d", engine.ErrInvalid, s.params.HashMode)
	}
	return nil
}

func (s *session) initAEAD(kind aeadKind) (e error) {
	s.kind = kind
	switch kind {
	case aeadGCM, aeadGMAC:
		if s.block, e = aes.NewCipher(s.params.CipherKey); e != nil {
			return fmt.Errorf("%w: %v", engine.ErrInvalid, e)
		}
		if s.aead, e = cipher.NewGCMWithTagSize(s.block, s.params.DigestLen); e != nil {
			return fmt.Errorf("%w: %v", engine.ErrInvalid, e)
		}
	case aeadChaCha:
		if s.params.DigestLen != chacha20poly1305.Overhead {
			return fmt.Errorf("%w: digest length %d for %s", engine.ErrInvalid, s.params.DigestLen, s.params.Hash)
		}
		if s.aead, e = chacha20poly1305.New(s.params.CipherKey); e != nil {
			return fmt.Errorf("%w: %v", engine.ErrInvalid, e)
		}
	}
	return nil
}

func (s *session) writeContext(b []byte) {
	p := s.params
	copy(b[0:], ctxMagic[:])
	b[4], b[5], b[6] = byte(p.Operation), byte(p.ChainOrder), byte(p.Direction)
	b[7] = 0
	if p.VerifyDigest {
		b[7] |= flagVerify
	}
	b[8], b[9], b[10], b[11] = byte(p.Cipher), byte(p.Hash), byte(p.HashMode), byte(p.DigestLen)
	binary.LittleEndian.PutUint16(b[12:], uint16(p.AADLen))
	binary.LittleEndian.PutUint16(b[14:], uint16(len(p.CipherKey)))
	binary.LittleEndian.PutUint16(b[16:], uint16(len(p.AuthKey)))
	binary.LittleEndian.PutUint16(b[18:], 0)
	n := copy(b[ctxHeaderSize:], p.CipherKey)
	copy(b[ctxHeaderSize+n:], p.AuthKey)
}

// checkContext verifies the device copy of a session context still carries its header.
func checkContext(b []byte) bool {
	return len(b) >= ctxHeaderSize && [4]byte(b[0:4]) == ctxMagic
}

func ctxKey(ctx *engine.SessionContext) dma.Addr {
	return ctx.Addr()
}
