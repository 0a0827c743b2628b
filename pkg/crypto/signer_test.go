package crypto

import (
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestSignAndRecover(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	hash := ethcrypto.Keccak256([]byte("settlement report #1"))
	sig, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}

	if !VerifySignature(signer.Address(), hash, sig) {
		t.Error("signature did not verify for signer address")
	}

	other, _ := GenerateKey()
	if VerifySignature(other.Address(), hash, sig) {
		t.Error("signature verified for wrong address")
	}

	recovered, err := RecoverAddress(hash, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	signer, _ := GenerateKey()

	restored, err := FromPrivateKeyHex(signer.PrivateKeyHex())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Address() != signer.Address() {
		t.Errorf("restored address %s, want %s", restored.Address().Hex(), signer.Address().Hex())
	}

	// 0x prefix accepted
	restored2, err := FromPrivateKeyHex("0x" + signer.PrivateKeyHex())
	if err != nil {
		t.Fatalf("restore with prefix: %v", err)
	}
	if restored2.Address() != signer.Address() {
		t.Error("0x-prefixed key restored to different address")
	}
}

func TestValueProof(t *testing.T) {
	signer, _ := GenerateKey()
	blob := []byte("opaque sealed bytes")

	proof, err := ProveValue(signer, blob, 3)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if !VerifyValueProof(signer.Address(), blob, 3, proof) {
		t.Error("valid proof rejected")
	}
	if VerifyValueProof(signer.Address(), blob, 2, proof) {
		t.Error("proof accepted for a different width")
	}
	other, _ := GenerateKey()
	if VerifyValueProof(other.Address(), blob, 3, proof) {
		t.Error("proof accepted for a different submitter")
	}
}

func TestTypedOrderSubmission(t *testing.T) {
	signer, _ := GenerateKey()
	ts := NewTypedSigner(DefaultDomain())

	sub := &OrderSubmission{
		Trader:   signer.Address(),
		Nonce:    big.NewInt(1),
		Deadline: big.NewInt(0),
	}
	copy(sub.AmountHash[:], ethcrypto.Keccak256([]byte("amount-ct")))
	copy(sub.PriceHash[:], ethcrypto.Keccak256([]byte("price-ct")))
	copy(sub.InstrumentHash[:], ethcrypto.Keccak256([]byte("pair-ct")))

	sig, err := ts.SignSubmission(signer, sub)
	if err != nil {
		t.Fatalf("sign submission: %v", err)
	}

	ok, err := ts.VerifySubmission(sub, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("valid submission signature rejected")
	}

	// Tampering with a ciphertext hash breaks the envelope.
	sub.AmountHash[0] ^= 0xff
	ok, _ = ts.VerifySubmission(sub, sig)
	if ok {
		t.Error("tampered submission accepted")
	}
}

func TestBLSAttestation(t *testing.T) {
	a1 := NewAttestorFromSeed([]byte("replica-1-seed-32-bytes-minimum!"))
	a2 := NewAttestorFromSeed([]byte("replica-2-seed-32-bytes-minimum!"))

	digest := ethcrypto.Keccak256([]byte("report: session=1 executed=3"))

	s1 := a1.Attest(digest)
	s2 := a2.Attest(digest)

	if !VerifyAttestation(a1.Pubkey(), digest, s1) {
		t.Error("single attestation rejected")
	}
	if VerifyAttestation(a2.Pubkey(), digest, s1) {
		t.Error("attestation verified under wrong pubkey")
	}

	agg := AggregateAttestations([]BLSSignature{s1, s2})
	if agg == nil {
		t.Fatal("aggregation failed")
	}
	if !VerifyAggregateAttestation([]*BLSPubKey{a1.Pubkey(), a2.Pubkey()}, digest, agg) {
		t.Error("aggregate attestation rejected")
	}
}
