package sgl

import (
	"strconv"

	"github.com/usnistgov/symoffload/engine"
)

// AADPlacement describes where AAD is presented to the engine.
type AADPlacement int

// AADPlacement values.
const (
	// AADNone means there is no AAD.
	AADNone AADPlacement = iota
	// AADSeparate means AAD is copied into the AAD side buffer and addressed by OpDescriptor.AAD.
	AADSeparate
	// AADEmbedded means AAD immediately precedes the payload and hash offsets cover it in place.
	AADEmbedded
	// AADRelocated means AAD is copied into the side buffer, which becomes the first source segment.
	AADRelocated
)

func (p AADPlacement) String() string {
	switch p {
	case AADNone:
		return "none"
	case AADSeparate:
		return "separate"
	case AADEmbedded:
		return "embedded"
	case AADRelocated:
		return "relocated"
	}
	return strconv.Itoa(int(p))
}

// AADLocation describes AAD supplied with a request.
type AADLocation struct {
	// Len is AAD length.
	Len int
	// InBuffer indicates AAD is inside the payload buffer at Start.
	// Otherwise it is supplied as a standalone buffer.
	InBuffer bool
	// Start is AAD offset within the payload buffer.
	Start int
}

// ChooseAADPlacement decides AAD placement for a cipher algorithm.
func ChooseAADPlacement(alg engine.CipherAlgorithm, aad AADLocation, payloadStart int) AADPlacement {
	switch {
	case aad.Len == 0:
		return AADNone
	case engine.SeparateAAD(alg):
		return AADSeparate
	case aad.InBuffer && aad.Start+aad.Len == payloadStart:
		return AADEmbedded
	default:
		return AADRelocated
	}
}

// DigestSeparated determines whether the digest of a session is read or written outside the payload.
// Every session with a hash stage uses a separated digest.
func DigestSeparated(params engine.SessionParams) bool {
	return params.HasHash()
}
