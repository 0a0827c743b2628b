package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Plaintext-knowledge proofs for externally supplied ciphertexts. Ingesting a
// ciphertext into the handle store requires a proof that the submitter knows
// the plaintext and sealed it for the declared width: a secp256k1 signature
// over keccak256(blob || width) by the submitting principal. Handles built
// from external bytes without such a proof are the anti-pattern the store
// refuses.

// ProofDigest computes the digest a value proof signs.
func ProofDigest(blob []byte, width uint8) []byte {
	return crypto.Keccak256(blob, []byte{width})
}

// ProveValue signs the proof digest for a sealed value.
func ProveValue(s *Signer, blob []byte, width uint8) ([]byte, error) {
	return s.Sign(ProofDigest(blob, width))
}

// VerifyValueProof reports whether proof attests that submitter sealed blob
// at the declared width.
func VerifyValueProof(submitter common.Address, blob []byte, width uint8, proof []byte) bool {
	return VerifySignature(submitter, ProofDigest(blob, width), proof)
}
