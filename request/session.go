package request

import (
	"fmt"
	"strconv"
)

// Mode is the session mode.
type Mode int

// Mode values.
const (
	ModeCipher Mode = iota
	ModeDigest
	// ModeAEAD is an authenticated cipher with AAD.
	ModeAEAD
	// ModeETA is encrypt-then-authenticate: a cipher chained with an HMAC.
	ModeETA
)

func (m Mode) String() string {
	switch m {
	case ModeCipher:
		return "cipher"
	case ModeDigest:
		return "digest"
	case ModeAEAD:
		return "aead"
	case ModeETA:
		return "eta"
	}
	return strconv.Itoa(int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	for _, mode := range []Mode{ModeCipher, ModeDigest, ModeAEAD, ModeETA} {
		if mode.String() == string(text) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", text)
}

// Algorithm identifies a cipher or authentication algorithm as named by the request source.
type Algorithm int

// Algorithm values.
const (
	AlgNone Algorithm = iota
	AlgNullCBC
	AlgAESCBC
	AlgAESICM
	AlgAESNISTGCM16
	AlgAESCCM16
	AlgAESNISTGMAC
	AlgChaCha20Poly1305
	AlgSHA1
	AlgSHA2_256
	AlgSHA2_384
	AlgSHA2_512
	AlgSHA1HMAC
	AlgSHA2_256HMAC
	AlgSHA2_384HMAC
	AlgSHA2_512HMAC
)

var algNames = map[Algorithm]string{
	AlgNone:             "none",
	AlgNullCBC:          "null-cbc",
	AlgAESCBC:           "aes-cbc",
	AlgAESICM:           "aes-icm",
	AlgAESNISTGCM16:     "aes-nist-gcm-16",
	AlgAESCCM16:         "aes-ccm-16",
	AlgAESNISTGMAC:      "aes-nist-gmac",
	AlgChaCha20Poly1305: "chacha20-poly1305",
	AlgSHA1:             "sha1",
	AlgSHA2_256:         "sha2-256",
	AlgSHA2_384:         "sha2-384",
	AlgSHA2_512:         "sha2-512",
	AlgSHA1HMAC:         "sha1-hmac",
	AlgSHA2_256HMAC:     "sha2-256-hmac",
	AlgSHA2_384HMAC:     "sha2-384-hmac",
	AlgSHA2_512HMAC:     "sha2-512-hmac",
}

func (alg Algorithm) String() string {
	if s, ok := algNames[alg]; ok {
		return s
	}
	return strconv.Itoa(int(alg))
}

// ParseAlgorithm parses an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	for alg, name := range algNames {
		if name == s {
			return alg, nil
		}
	}
	return AlgNone, fmt.Errorf("unknown algorithm %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (alg Algorithm) MarshalText() ([]byte, error) {
	return []byte(alg.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (alg *Algorithm) UnmarshalText(text []byte) (e error) {
	*alg, e = ParseAlgorithm(string(text))
	return e
}

// SessionParams contains parameters of a logical session.
type SessionParams struct {
	Mode Mode `json:"mode"`

	Cipher    Algorithm `json:"cipher"`
	CipherKey []byte    `json:"cipherKey,omitempty"`
	// IVLen is the IV length of each request.
	IVLen int `json:"ivLen"`

	Auth    Algorithm `json:"auth"`
	AuthKey []byte    `json:"authKey,omitempty"`
	// MACLen is the digest length; zero selects the algorithm default.
	MACLen int `json:"macLen"`
}
