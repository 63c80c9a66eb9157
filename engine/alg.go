package engine

import (
	"strconv"
)

// CipherAlgorithm is engine-native cipher algorithm.
type CipherAlgorithm int

// CipherAlgorithm values.
const (
	CipherNone CipherAlgorithm = iota
	CipherNull
	CipherAESCBC
	CipherAESCTR
	CipherAESGCM
	CipherAESCCM
	CipherChaCha20Poly1305
)

var cipherNames = map[CipherAlgorithm]string{
	CipherNone:             "none",
	CipherNull:             "null",
	CipherAESCBC:           "aes-cbc",
	CipherAESCTR:           "aes-ctr",
	CipherAESGCM:           "aes-gcm",
	CipherAESCCM:           "aes-ccm",
	CipherChaCha20Poly1305: "chacha20-poly1305",
}

func (alg CipherAlgorithm) String() string {
	if s, ok := cipherNames[alg]; ok {
		return s
	}
	return strconv.Itoa(int(alg))
}

// IsAEAD determines whether the cipher carries its own authenticator.
func (alg CipherAlgorithm) IsAEAD() bool {
	return SeparateAAD(alg)
}

// HashAlgorithm is engine-native hash algorithm.
type HashAlgorithm int

// HashAlgorithm values.
const (
	HashNone HashAlgorithm = iota
	HashSHA1
	HashSHA256
	HashSHA384
	HashSHA512
	HashAESGMAC
	HashAESGCM
	HashAESCCM
	HashPoly1305
)

var hashNames = map[HashAlgorithm]string{
	HashNone:     "none",
	HashSHA1:     "sha1",
	HashSHA256:   "sha256",
	HashSHA384:   "sha384",
	HashSHA512:   "sha512",
	HashAESGMAC:  "aes-gmac",
	HashAESGCM:   "aes-gcm",
	HashAESCCM:   "aes-ccm",
	HashPoly1305: "poly1305",
}

func (alg HashAlgorithm) String() string {
	if s, ok := hashNames[alg]; ok {
		return s
	}
	return strconv.Itoa(int(alg))
}

// IsPlain determines whether the algorithm is a standalone message digest.
func (alg HashAlgorithm) IsPlain() bool {
	return alg >= HashSHA1 && alg <= HashSHA512
}

// HashMode selects plain or keyed hashing.
type HashMode int

// HashMode values.
const (
	HashModePlain HashMode = iota
	HashModeAuth
)

// Operation is the kind of symmetric operation.
type Operation int

// Operation values.
const (
	OpCipher Operation = iota
	OpHash
	OpAlgChain
)

func (op Operation) String() string {
	switch op {
	case OpCipher:
		return "cipher"
	case OpHash:
		return "hash"
	case OpAlgChain:
		return "chain"
	}
	return strconv.Itoa(int(op))
}

// ChainOrder is the order of cipher and hash in an OpAlgChain session.
type ChainOrder int

// ChainOrder values.
const (
	CipherThenHash ChainOrder = iota
	HashThenCipher
)

func (order ChainOrder) String() string {
	if order == HashThenCipher {
		return "hash-then-cipher"
	}
	return "cipher-then-hash"
}

// Direction is cipher direction.
type Direction int

// Direction values.
const (
	Encrypt Direction = iota
	Decrypt
)

func (dir Direction) String() string {
	if dir == Decrypt {
		return "decrypt"
	}
	return "encrypt"
}
