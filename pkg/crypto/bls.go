package crypto

import (
	bls "github.com/cloudflare/circl/sign/bls"
)

type scheme = bls.KeyG1SigG2

type BLSPubKey = bls.PublicKey[scheme]
type BLSSignature = []byte

// Attestor signs settlement report digests with BLS so attestations from
// multiple venue replicas over the same report aggregate into one signature.
type Attestor struct {
	sk *bls.PrivateKey[scheme]
	pk *BLSPubKey
}

func NewAttestorFromSeed(seed []byte) *Attestor {
	sk, _ := bls.KeyGen[scheme](seed, nil, nil)
	return &Attestor{sk: sk, pk: sk.PublicKey()}
}

func (a *Attestor) Pubkey() *BLSPubKey { return a.pk }

func (a *Attestor) Attest(reportDigest []byte) BLSSignature {
	return bls.Sign(a.sk, reportDigest)
}

func VerifyAttestation(pk *BLSPubKey, reportDigest []byte, sig BLSSignature) bool {
	return bls.Verify(pk, reportDigest, bls.Signature(sig))
}

// AggregateAttestations combines attestations over the same report.
func AggregateAttestations(sigs []BLSSignature) BLSSignature {
	in := make([]bls.Signature, 0, len(sigs))
	for _, s := range sigs {
		if len(s) == 0 {
			continue
		}
		in = append(in, bls.Signature(s))
	}
	agg, err := bls.Aggregate(bls.G1{}, in)
	if err != nil {
		return nil
	}
	return agg
}

func VerifyAggregateAttestation(pks []*BLSPubKey, reportDigest []byte, agg BLSSignature) bool {
	return bls.VerifyAggregate(pks, [][]byte{reportDigest}, bls.Signature(agg))
}
