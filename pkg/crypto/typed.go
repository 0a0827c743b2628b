package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain is the domain separator for typed-data signing, preventing
// replay of order envelopes across venues/chains.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// OrderSubmission is the typed structure a trader signs when submitting a
// sealed order. The signature commits to the keccak of each sealed field
// rather than the plaintext, so the envelope binds the ciphertexts without
// disclosing anything.
type OrderSubmission struct {
	Trader         common.Address
	AmountHash     [32]byte // keccak256 of the sealed amount blob
	PriceHash      [32]byte // keccak256 of the sealed target-price blob
	InstrumentHash [32]byte // keccak256 of the sealed instrument blob
	Nonce          *big.Int
	Deadline       *big.Int // Unix seconds, 0 = no expiry
}

// TypedSigner handles EIP-712 typed data signing for order submissions.
type TypedSigner struct {
	domain EIP712Domain
}

func NewTypedSigner(domain EIP712Domain) *TypedSigner {
	return &TypedSigner{domain: domain}
}

// DefaultDomain returns the venue's default signing domain.
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "PrivateFX",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{}, // zero address: off-chain venue
	}
}

// HashSubmission computes the EIP-712 digest of an order submission.
func (t *TypedSigner) HashSubmission(sub *OrderSubmission) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"OrderSubmission": []apitypes.Type{
				{Name: "trader", Type: "address"},
				{Name: "amountHash", Type: "bytes32"},
				{Name: "priceHash", Type: "bytes32"},
				{Name: "instrumentHash", Type: "bytes32"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "OrderSubmission",
		Domain: apitypes.TypedDataDomain{
			Name:              t.domain.Name,
			Version:           t.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(t.domain.ChainID),
			VerifyingContract: t.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"trader":         sub.Trader.Hex(),
			"amountHash":     hexBytes32(sub.AmountHash),
			"priceHash":      hexBytes32(sub.PriceHash),
			"instrumentHash": hexBytes32(sub.InstrumentHash),
			"nonce":          sub.Nonce.String(),
			"deadline":       sub.Deadline.String(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}

	// digest = keccak256("\x19\x01" || domainSeparator || messageHash)
	raw := append([]byte("\x19\x01"), append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(raw), nil
}

// SignSubmission signs an order submission envelope.
func (t *TypedSigner) SignSubmission(signer *Signer, sub *OrderSubmission) ([]byte, error) {
	hash, err := t.HashSubmission(sub)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

// VerifySubmission reports whether signature matches the envelope's trader.
func (t *TypedSigner) VerifySubmission(sub *OrderSubmission, signature []byte) (bool, error) {
	hash, err := t.HashSubmission(sub)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == sub.Trader, nil
}

func hexBytes32(b [32]byte) string {
	return common.BytesToHash(b[:]).Hex()
}
