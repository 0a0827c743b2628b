// Package handle implements the ciphertext-handle arena and the permission
// registry that gates every use of a handle. A handle is an opaque id for an
// encrypted scalar held by the store; nothing outside this package touches
// the ciphertext bytes except the arithmetic engine behind the Arithmetic
// facade and the sealed-order ingestion path.
package handle

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	vcrypto "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/crypto"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
)

// Handle is an opaque reference to an encrypted scalar. Ids are arena
// indexes: allocated monotonically, never reused, zero is invalid. Two
// handles over equal plaintexts are distinct; only the arithmetic Eq
// operation compares underlying values.
type Handle uint64

type entry struct {
	width fhe.Width
	ct    fhe.Ciphertext
}

// Store owns handle identity allocation. Handles are immutable once created:
// updates allocate new handles and callers replace their stored references.
type Store struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]*entry
	engine  fhe.Engine
}

func NewStore(engine fhe.Engine) *Store {
	return &Store{
		next:    1,
		entries: make(map[Handle]*entry),
		engine:  engine,
	}
}

// Encrypt creates a handle from a system-sourced plaintext (e.g. a zero
// initializer or an operator-supplied reference rate). The new handle carries
// no grants; the caller is responsible for granting before use.
func (s *Store) Encrypt(value uint64, w fhe.Width) (Handle, error) {
	ct, err := s.engine.Encrypt(value, w)
	if err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}
	return s.put(w, ct), nil
}

// Ingest creates a handle from an externally supplied ciphertext. This is the
// only legitimate path for external secret data: the accompanying proof must
// show the submitter knows the plaintext and sealed it at the declared width,
// otherwise ErrProofInvalid and nothing is stored.
func (s *Store) Ingest(ct fhe.Ciphertext, proof []byte, submitter common.Address) (Handle, error) {
	if !vcrypto.VerifyValueProof(submitter, ct.Blob, uint8(ct.Width), proof) {
		return 0, fmt.Errorf("ingest from %s: %w", submitter.Hex(), core.ErrProofInvalid)
	}
	return s.put(ct.Width, ct), nil
}

func (s *Store) put(w fhe.Width, ct fhe.Ciphertext) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.next
	s.next++
	s.entries[h] = &entry{width: w, ct: ct}
	return h
}

func (s *Store) Exists(h Handle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[h]
	return ok
}

// Width reports the declared width class of a handle.
func (s *Store) Width(h Handle) (fhe.Width, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[h]
	if !ok {
		return 0, false
	}
	return e.width, true
}

func (s *Store) ciphertext(h Handle) (fhe.Ciphertext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[h]
	if !ok {
		return fhe.Ciphertext{}, false
	}
	return e.ct, true
}

// Reveal decrypts a handle for a caller holding a grant on it. This is the
// single off-system disclosure path; everything else operates on ciphertext.
func (s *Store) Reveal(h Handle, caller common.Address, perms *Permissions) (uint64, error) {
	ct, ok := s.ciphertext(h)
	if !ok || !perms.IsGranted(h, caller) {
		return 0, fmt.Errorf("reveal %d to %s: %w", h, caller.Hex(), core.ErrPermissionDenied)
	}
	v, err := s.engine.Decrypt(ct)
	if err != nil {
		return 0, fmt.Errorf("reveal %d: %w", h, err)
	}
	return v, nil
}
