// sign-order builds a sealed order submission: it encrypts the three order
// fields under the venue sealing key, proves plaintext knowledge of each, and
// wraps everything in an EIP-712 envelope ready to POST to /api/v1/orders.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/api"
	vcrypto "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/crypto"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
)

func envUint(name string, def uint64) uint64 {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	// SEAL_KEY must match the venue node's key or the sealed fields will
	// not open at settlement.
	sealKeyHex := os.Getenv("SEAL_KEY")
	if sealKeyHex == "" {
		fatalf("SEAL_KEY is required (hex, 32 bytes, same as the venue node)")
	}
	sealKey, err := hex.DecodeString(sealKeyHex)
	if err != nil {
		fatalf("SEAL_KEY: %v", err)
	}
	engine, err := fhe.NewSealBox(sealKey)
	if err != nil {
		fatalf("sealbox: %v", err)
	}

	var signer *vcrypto.Signer
	if pk := os.Getenv("PRIVATE_KEY"); pk != "" {
		signer, err = vcrypto.FromPrivateKeyHex(pk)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = vcrypto.GenerateKey()
	}
	if err != nil {
		fatalf("key: %v", err)
	}
	fmt.Printf("Trader: %s\n", signer.Address().Hex())
	if os.Getenv("PRIVATE_KEY") == "" {
		fmt.Printf("Private key: %s (keep secret)\n", signer.PrivateKeyHex())
	}

	amount := envUint("AMOUNT", 1000)
	price := envUint("PRICE", 11000)
	pair := envUint("PAIR", 0)
	fmt.Printf("Order: amount=%d price=%d pair=%d\n\n", amount, price, pair)

	seal := func(value uint64, w fhe.Width) api.SealedField {
		ct, err := engine.Encrypt(value, w)
		if err != nil {
			fatalf("seal: %v", err)
		}
		proof, err := vcrypto.ProveValue(signer, ct.Blob, uint8(w))
		if err != nil {
			fatalf("prove: %v", err)
		}
		return api.SealedField{
			Blob:  hex.EncodeToString(ct.Blob),
			Width: uint8(w),
			Proof: hex.EncodeToString(proof),
		}
	}
	amountField := seal(amount, fhe.Uint64)
	priceField := seal(price, fhe.Uint64)
	pairField := seal(pair, fhe.Uint8)

	nonce := uint64(time.Now().UnixNano())
	deadline := time.Now().Add(5 * time.Minute).Unix()

	sub := &vcrypto.OrderSubmission{
		Trader:   signer.Address(),
		Nonce:    new(big.Int).SetUint64(nonce),
		Deadline: big.NewInt(deadline),
	}
	decodeInto := func(dst []byte, f api.SealedField) {
		blob, _ := hex.DecodeString(f.Blob)
		copy(dst, ethcrypto.Keccak256(blob))
	}
	decodeInto(sub.AmountHash[:], amountField)
	decodeInto(sub.PriceHash[:], priceField)
	decodeInto(sub.InstrumentHash[:], pairField)

	typed := vcrypto.NewTypedSigner(vcrypto.DefaultDomain())
	sig, err := typed.SignSubmission(signer, sub)
	if err != nil {
		fatalf("sign envelope: %v", err)
	}

	req := api.SubmitOrderRequest{
		Trader:      signer.Address().Hex(),
		Amount:      amountField,
		TargetPrice: priceField,
		Instrument:  pairField,
		Nonce:       nonce,
		Deadline:    deadline,
		Signature:   hex.EncodeToString(sig),
	}
	out, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fatalf("marshal: %v", err)
	}

	fmt.Println("Sealed order submission:")
	fmt.Println(string(out))
	fmt.Println()
	fmt.Println("Submit with:")
	fmt.Println("  POST http://localhost:8080/api/v1/orders")
}
