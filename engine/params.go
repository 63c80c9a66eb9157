package engine

import (
	"fmt"

	"github.com/usnistgov/symoffload/dma"
)

// SessionParams contains session setup parameters.
type SessionParams struct {
	Operation  Operation
	ChainOrder ChainOrder
	Direction  Direction

	Cipher    CipherAlgorithm
	CipherKey []byte

	Hash      HashAlgorithm
	HashMode  HashMode
	AuthKey   []byte
	DigestLen int
	AADLen    int

	// VerifyDigest asks the engine to compare the computed digest with the one at OpDescriptor.Digest.
	VerifyDigest bool
}

// HasCipher determines whether the session includes a cipher stage.
func (p SessionParams) HasCipher() bool {
	return p.Operation != OpHash
}

// HasHash determines whether the session includes a hash stage.
func (p SessionParams) HasHash() bool {
	return p.Operation != OpCipher
}

func (p SessionParams) String() string {
	return fmt.Sprintf("%s %s cipher=%s hash=%s digest=%d aad=%d verify=%t",
		p.Operation, p.Direction, p.Cipher, p.Hash, p.DigestLen, p.AADLen, p.VerifyDigest)
}

// OpDescriptor is one operation handed to the engine.
// It lives in the submitter's pinned arena; the engine hands the same pointer back to Callback.
type OpDescriptor struct {
	// Tag identifies the submitter's bookkeeping record.
	Tag uint32
	// Self is the device address of this descriptor's slot.
	Self dma.Addr

	Session *SessionContext

	// SrcList and DstList are device addresses of encoded buffer lists.
	SrcList dma.Addr
	DstList dma.Addr

	IV    dma.Addr
	IVLen int

	CipherStart int
	CipherLen   int
	HashStart   int
	HashLen     int

	// AAD is the device address of separately addressed AAD, or zero.
	AAD dma.Addr
	// Digest is the device address of the separated digest, or zero for in-line digest.
	Digest dma.Addr
}

// Reset clears per-request fields, keeping Tag and Self.
func (op *OpDescriptor) Reset() {
	*op = OpDescriptor{Tag: op.Tag, Self: op.Self}
}
