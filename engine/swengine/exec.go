package swengine

import (
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/sgl"
	"golang.org/x/crypto/chacha20"
)

func (e *Engine) decodeList(list dma.Addr) (segs []dma.Segment, total int, err error) {
	fixed, err := e.m.Resolve(list, sgl.HeaderFixedSize)
	if err != nil {
		return nil, 0, err
	}
	size, err := sgl.EncodedSize(fixed)
	if err != nil {
		return nil, 0, err
	}
	header, err := e.m.Resolve(list, size)
	if err != nil {
		return nil, 0, err
	}
	return sgl.Decode(header)
}

func (e *Engine) gather(segs []dma.Segment, total int) ([]byte, error) {
	data := make([]byte, 0, total)
	for _, seg := range segs {
		b, err := e.m.Resolve(seg.Addr, seg.Len)
		if err != nil {
			return nil, err
		}
		data = append(data, b...)
	}
	return data, nil
}

func (e *Engine) scatter(segs []dma.Segment, data []byte) error {
	for _, seg := range segs {
		if len(data) == 0 {
			break
		}
		b, err := e.m.Resolve(seg.Addr, seg.Len)
		if err != nil {
			return err
		}
		n := copy(b, data)
		data = data[n:]
	}
	return nil
}

func (e *Engine) execute(s *session, op *engine.OpDescriptor) (status error, verified bool) {
	invalid := func(format string, a ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{engine.ErrInvalid}, a...)...)
	}
	p := s.params

	if b, err := e.m.Resolve(ctxKey(op.Session), ctxHeaderSize); err != nil || !checkContext(b) {
		return invalid("session context corrupted"), false
	}

	srcSegs, srcTotal, err := e.decodeList(op.SrcList)
	if err != nil {
		return invalid("source list %v", err), false
	}
	data, err := e.gather(srcSegs, srcTotal)
	if err != nil {
		return invalid("source data %v", err), false
	}

	cipherEnd, hashEnd := op.CipherStart+op.CipherLen, op.HashStart+op.HashLen
	if op.CipherStart < 0 || op.CipherLen < 0 || cipherEnd > len(data) ||
		op.HashStart < 0 || op.HashLen < 0 || hashEnd > len(data) {
		return invalid("region out of range"), false
	}
	cipherRegion, hashRegion := data[op.CipherStart:cipherEnd], data[op.HashStart:hashEnd]

	var iv []byte
	if op.IVLen > 0 {
		if iv, err = e.m.Resolve(op.IV, op.IVLen); err != nil {
			return invalid("IV %v", err), false
		}
	}

	var digest []byte
	if p.HasHash() {
		if digest, err = e.m.Resolve(op.Digest, p.DigestLen); err != nil {
			return invalid("digest %v", err), false
		}
	}

	var computed []byte
	switch s.kind {
	case aeadGCM, aeadChaCha:
		var aad []byte
		if op.AAD.Valid() && p.AADLen > 0 {
			if aad, err = e.m.Resolve(op.AAD, p.AADLen); err != nil {
				return invalid("AAD %v", err), false
			}
		}
		computed, err = s.aeadTransform(iv, cipherRegion, aad)
	case aeadGMAC:
		computed, err = s.gmac(iv, hashRegion)
	default:
		if p.HasCipher() && (!p.HasHash() || p.ChainOrder == engine.CipherThenHash) {
			err = s.cipherTransform(iv, cipherRegion)
			cipherRegion = nil
		}
		if err == nil && p.HasHash() {
			computed = s.hash(hashRegion)
		}
		if err == nil && cipherRegion != nil && p.HasCipher() {
			err = s.cipherTransform(iv, cipherRegion)
		}
	}
	if err != nil {
		return err, false
	}

	if p.HasHash() {
		if p.VerifyDigest {
			verified = subtle.ConstantTimeCompare(computed, digest) == 1
		} else {
			copy(digest, computed)
		}
	}

	if p.HasCipher() && op.CipherLen > 0 {
		dstSegs, dstTotal := srcSegs, srcTotal
		if op.DstList != op.SrcList {
			if dstSegs, dstTotal, err = e.decodeList(op.DstList); err != nil {
				return invalid("destination list %v", err), false
			}
		}
		if dstTotal < cipherEnd {
			return invalid("destination list shorter than cipher region"), false
		}
		if err = e.scatter(dstSegs, data[:min(len(data), dstTotal)]); err != nil {
			return invalid("destination data %v", err), false
		}
	}
	return nil, verified
}

func (s *session) cipherTransform(iv, b []byte) error {
	switch s.params.Cipher {
	case engine.CipherNull:
		return nil
	case engine.CipherAESCBC:
		if len(iv) != s.block.BlockSize() || len(b)%s.block.BlockSize() != 0 {
			return fmt.Errorf("%w: AES-CBC requires whole blocks", engine.ErrInvalid)
		}
		var m cipher.BlockMode
		if s.params.Direction == engine.Decrypt {
			m = cipher.NewCBCDecrypter(s.block, iv)
		} else {
			m = cipher.NewCBCEncrypter(s.block, iv)
		}
		m.CryptBlocks(b, b)
		return nil
	case engine.CipherAESCTR:
		if len(iv) != s.block.BlockSize() {
			return fmt.Errorf("%w: AES-CTR requires %d-octet IV", engine.ErrInvalid, s.block.BlockSize())
		}
		cipher.NewCTR(s.block, iv).XORKeyStream(b, b)
		return nil
	}
	return fmt.Errorf("%w: cipher %s", engine.ErrUnsupported, s.params.Cipher)
}

func (s *session) hash(b []byte) []byte {
	h := s.newHash()
	h.Write(b)
	return h.Sum(nil)[:s.params.DigestLen]
}

// aeadTransform encrypts or decrypts b in place and returns the authentication tag over the ciphertext.
// Decryption does not check the tag; the tag is recomputed by sealing the recovered plaintext.
func (s *session) aeadTransform(iv, b, aad []byte) (tag []byte, e error) {
	if len(iv) != s.aead.NonceSize() {
		return nil, fmt.Errorf("%w: %s requires %d-octet IV", engine.ErrInvalid, s.params.Cipher, s.aead.NonceSize())
	}
	if s.params.Direction == engine.Decrypt {
		if e = s.keystream(iv, b); e != nil {
			return nil, e
		}
		sealed := s.aead.Seal(nil, iv, b, aad)
		return sealed[len(b):], nil
	}
	sealed := s.aead.Seal(nil, iv, b, aad)
	copy(b, sealed)
	return sealed[len(b):], nil
}

// keystream applies the AEAD cipher's payload keystream to b.
func (s *session) keystream(iv, b []byte) error {
	switch s.kind {
	case aeadGCM:
		var ctr [16]byte
		copy(ctr[:], iv)
		binary.BigEndian.PutUint32(ctr[12:], 2)
		cipher.NewCTR(s.block, ctr[:]).XORKeyStream(b, b)
	case aeadChaCha:
		c, e := chacha20.NewUnauthenticatedCipher(s.params.CipherKey, iv)
		if e != nil {
			return fmt.Errorf("%w: %v", engine.ErrInvalid, e)
		}
		c.SetCounter(1)
		c.XORKeyStream(b, b)
	}
	return nil
}

func (s *session) gmac(iv, b []byte) ([]byte, error) {
	if len(iv) != s.aead.NonceSize() {
		return nil, fmt.Errorf("%w: AES-GMAC requires %d-octet IV", engine.ErrInvalid, s.aead.NonceSize())
	}
	return s.aead.Seal(nil, iv, nil, b), nil
}
