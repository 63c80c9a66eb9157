package session

import (
	"fmt"

	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/request"
)

var plainCiphers = map[request.Algorithm]engine.CipherAlgorithm{
	request.AlgNullCBC: engine.CipherNull,
	request.AlgAESCBC:  engine.CipherAESCBC,
	request.AlgAESICM:  engine.CipherAESCTR,
}

type aeadAlg struct {
	cipher engine.CipherAlgorithm
	hash   engine.HashAlgorithm
}

var aeadCiphers = map[request.Algorithm]aeadAlg{
	request.AlgAESNISTGCM16:     {engine.CipherAESGCM, engine.HashAESGCM},
	request.AlgAESCCM16:         {engine.CipherAESCCM, engine.HashAESCCM},
	request.AlgChaCha20Poly1305: {engine.CipherChaCha20Poly1305, engine.HashPoly1305},
}

type hashAlg struct {
	hash engine.HashAlgorithm
	mode engine.HashMode
}

var hashes = map[request.Algorithm]hashAlg{
	request.AlgSHA1:         {engine.HashSHA1, engine.HashModePlain},
	request.AlgSHA2_256:     {engine.HashSHA256, engine.HashModePlain},
	request.AlgSHA2_384:     {engine.HashSHA384, engine.HashModePlain},
	request.AlgSHA2_512:     {engine.HashSHA512, engine.HashModePlain},
	request.AlgSHA1HMAC:     {engine.HashSHA1, engine.HashModeAuth},
	request.AlgSHA2_256HMAC: {engine.HashSHA256, engine.HashModeAuth},
	request.AlgSHA2_384HMAC: {engine.HashSHA384, engine.HashModeAuth},
	request.AlgSHA2_512HMAC: {engine.HashSHA512, engine.HashModeAuth},
}

// IsGMAC determines whether params describe a GMAC digest session.
// Such a session uses only the encrypt half.
func IsGMAC(params request.SessionParams) bool {
	return params.Mode == request.ModeDigest && params.Auth == request.AlgAESNISTGMAC
}

// Direction returns the session half used by a request.
func Direction(params request.SessionParams, op request.Op) engine.Direction {
	if IsGMAC(params) || !op.IsDecrypt() {
		return engine.Encrypt
	}
	return engine.Decrypt
}

func chainOrder(dir engine.Direction) engine.ChainOrder {
	if dir == engine.Decrypt {
		return engine.HashThenCipher
	}
	return engine.CipherThenHash
}

// Resolve translates session parameters into engine session parameters for one direction.
// aadLen is the separately addressed AAD length, used in AEAD mode only.
// DigestLen is MACLen; zero means the engine default should be used.
func Resolve(params request.SessionParams, dir engine.Direction, aadLen int) (ep engine.SessionParams, e error) {
	unsupported := func() (engine.SessionParams, error) {
		return engine.SessionParams{}, fmt.Errorf("%w: mode %s cipher %s auth %s",
			engine.ErrUnsupported, params.Mode, params.Cipher, params.Auth)
	}

	ep.Direction = dir
	ep.DigestLen = params.MACLen
	switch params.Mode {
	case request.ModeCipher:
		c, ok := plainCiphers[params.Cipher]
		if !ok || params.Auth != request.AlgNone {
			return unsupported()
		}
		ep.Operation, ep.Cipher, ep.CipherKey = engine.OpCipher, c, params.CipherKey
		ep.DigestLen = 0

	case request.ModeDigest:
		if params.Cipher != request.AlgNone {
			return unsupported()
		}
		if IsGMAC(params) {
			ep.Operation, ep.ChainOrder, ep.Direction = engine.OpAlgChain, engine.CipherThenHash, engine.Encrypt
			ep.Cipher, ep.CipherKey = engine.CipherAESGCM, params.AuthKey
			ep.Hash = engine.HashAESGMAC
			break
		}
		h, ok := hashes[params.Auth]
		if !ok {
			return unsupported()
		}
		ep.Operation, ep.Hash, ep.HashMode = engine.OpHash, h.hash, h.mode
		if h.mode == engine.HashModeAuth {
			ep.AuthKey = params.AuthKey
		}

	case request.ModeAEAD:
		a, ok := aeadCiphers[params.Cipher]
		if !ok || (params.Auth != request.AlgNone && params.Auth != params.Cipher) {
			return unsupported()
		}
		ep.Operation, ep.ChainOrder = engine.OpAlgChain, chainOrder(dir)
		ep.Cipher, ep.CipherKey, ep.Hash = a.cipher, params.CipherKey, a.hash
		ep.AADLen = aadLen

	case request.ModeETA:
		c, ok := plainCiphers[params.Cipher]
		if !ok {
			return unsupported()
		}
		h, ok := hashes[params.Auth]
		if !ok {
			return unsupported()
		}
		ep.Operation, ep.ChainOrder = engine.OpAlgChain, chainOrder(dir)
		ep.Cipher, ep.CipherKey = c, params.CipherKey
		ep.Hash, ep.HashMode = h.hash, h.mode
		if h.mode == engine.HashModeAuth {
			ep.AuthKey = params.AuthKey
		}

	default:
		return unsupported()
	}
	return ep, nil
}
