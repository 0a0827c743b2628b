// Package fhe defines the homomorphic arithmetic capability the venue core
// computes with. The core never sees plaintext: it hands ciphertexts to an
// Engine and gets new ciphertexts back. A real deployment plugs in an actual
// FHE backend; this repo ships SealBox, an AEAD-backed stand-in for devnets
// and tests.
package fhe

import "errors"

// Width is the declared bit-width class of an encrypted scalar.
type Width uint8

const (
	Bool Width = iota
	Uint8
	Uint32
	Uint64
)

func (w Width) String() string {
	switch w {
	case Bool:
		return "ebool"
	case Uint8:
		return "euint8"
	case Uint32:
		return "euint32"
	case Uint64:
		return "euint64"
	default:
		return "unknown"
	}
}

// Bits returns the number of value bits for the width (1 for Bool).
func (w Width) Bits() int {
	switch w {
	case Bool:
		return 1
	case Uint8:
		return 8
	case Uint32:
		return 32
	case Uint64:
		return 64
	default:
		return 0
	}
}

// Mask returns the value mask for the width.
func (w Width) Mask() uint64 {
	if w == Uint64 {
		return ^uint64(0)
	}
	return (uint64(1) << w.Bits()) - 1
}

// Ciphertext is an encrypted scalar of a declared width. The blob is opaque
// to everything outside the engine.
type Ciphertext struct {
	Width Width
	Blob  []byte
}

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrWidthMismatch     = errors.New("ciphertext width mismatch")
)

// Engine evaluates arithmetic over ciphertexts. All operations are
// synchronous; comparison results carry Width Bool.
type Engine interface {
	Encrypt(value uint64, w Width) (Ciphertext, error)
	Decrypt(ct Ciphertext) (uint64, error)

	// Add and Sub wrap around at the operand width.
	Add(a, b Ciphertext) (Ciphertext, error)
	Sub(a, b Ciphertext) (Ciphertext, error)

	Eq(a, b Ciphertext) (Ciphertext, error)
	Lt(a, b Ciphertext) (Ciphertext, error)

	// Select returns a fresh encryption of a's value when cond is an
	// encrypted true, b's value otherwise. cond must be Bool; a and b must
	// share a width.
	Select(cond, a, b Ciphertext) (Ciphertext, error)
}
