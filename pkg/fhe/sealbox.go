package fhe

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealBox is the development Engine: plaintexts are sealed with
// ChaCha20-Poly1305 under a node key, so ciphertexts are genuinely opaque off
// the node, but arithmetic is open-compute-reseal rather than homomorphic.
// A fresh nonce per encryption means two encryptions of the same value are
// distinct ciphertexts, matching the handle-identity model upstream.
type SealBox struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewSealBox creates an engine from a 32-byte sealing key.
func NewSealBox(key []byte) (*SealBox, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealbox key: %w", err)
	}
	return &SealBox{aead: aead}, nil
}

// NewSealBoxRandom creates an engine with an ephemeral random key. Handles
// produced by it are unreadable after process exit, which is fine for devnet
// runs and tests.
func NewSealBoxRandom() (*SealBox, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return NewSealBox(key)
}

func (s *SealBox) Encrypt(value uint64, w Width) (Ciphertext, error) {
	if w.Bits() == 0 {
		return Ciphertext{}, fmt.Errorf("%w: width %d", ErrInvalidCiphertext, w)
	}
	value &= w.Mask()

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return Ciphertext{}, err
	}

	var pt [9]byte
	binary.BigEndian.PutUint64(pt[:8], value)
	pt[8] = byte(w)

	blob := s.aead.Seal(nonce, nonce, pt[:], nil)
	return Ciphertext{Width: w, Blob: blob}, nil
}

func (s *SealBox) Decrypt(ct Ciphertext) (uint64, error) {
	v, w, err := s.open(ct)
	if err != nil {
		return 0, err
	}
	if w != ct.Width {
		return 0, fmt.Errorf("%w: declared %s, sealed %s", ErrWidthMismatch, ct.Width, w)
	}
	return v, nil
}

func (s *SealBox) open(ct Ciphertext) (uint64, Width, error) {
	if len(ct.Blob) <= chacha20poly1305.NonceSizeX {
		return 0, 0, ErrInvalidCiphertext
	}
	nonce := ct.Blob[:chacha20poly1305.NonceSizeX]
	pt, err := s.aead.Open(nil, nonce, ct.Blob[chacha20poly1305.NonceSizeX:], nil)
	if err != nil || len(pt) != 9 {
		return 0, 0, ErrInvalidCiphertext
	}
	return binary.BigEndian.Uint64(pt[:8]), Width(pt[8]), nil
}

// openPair opens two operands and enforces matching widths.
func (s *SealBox) openPair(a, b Ciphertext) (uint64, uint64, Width, error) {
	av, aw, err := s.open(a)
	if err != nil {
		return 0, 0, 0, err
	}
	bv, bw, err := s.open(b)
	if err != nil {
		return 0, 0, 0, err
	}
	if aw != bw {
		return 0, 0, 0, fmt.Errorf("%w: %s vs %s", ErrWidthMismatch, aw, bw)
	}
	return av, bv, aw, nil
}

func (s *SealBox) Add(a, b Ciphertext) (Ciphertext, error) {
	av, bv, w, err := s.openPair(a, b)
	if err != nil {
		return Ciphertext{}, err
	}
	return s.Encrypt((av+bv)&w.Mask(), w)
}

func (s *SealBox) Sub(a, b Ciphertext) (Ciphertext, error) {
	av, bv, w, err := s.openPair(a, b)
	if err != nil {
		return Ciphertext{}, err
	}
	return s.Encrypt((av-bv)&w.Mask(), w)
}

func (s *SealBox) Eq(a, b Ciphertext) (Ciphertext, error) {
	av, bv, _, err := s.openPair(a, b)
	if err != nil {
		return Ciphertext{}, err
	}
	return s.Encrypt(boolBit(av == bv), Bool)
}

func (s *SealBox) Lt(a, b Ciphertext) (Ciphertext, error) {
	av, bv, _, err := s.openPair(a, b)
	if err != nil {
		return Ciphertext{}, err
	}
	return s.Encrypt(boolBit(av < bv), Bool)
}

func (s *SealBox) Select(cond, a, b Ciphertext) (Ciphertext, error) {
	cv, cw, err := s.open(cond)
	if err != nil {
		return Ciphertext{}, err
	}
	if cw != Bool {
		return Ciphertext{}, fmt.Errorf("%w: select condition is %s, want ebool", ErrWidthMismatch, cw)
	}
	av, bv, w, err := s.openPair(a, b)
	if err != nil {
		return Ciphertext{}, err
	}
	if cv != 0 {
		return s.Encrypt(av, w)
	}
	return s.Encrypt(bv, w)
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

var _ Engine = (*SealBox)(nil)
