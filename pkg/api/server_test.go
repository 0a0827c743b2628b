package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/venue"
	vcrypto "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/crypto"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/params"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type apiFixture struct {
	server   *Server
	engine   *fhe.SealBox
	clock    *fakeClock
	operator *vcrypto.Signer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	engine, err := fhe.NewSealBox(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("sealbox: %v", err)
	}
	operator, err := vcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	instruments := []string{"EUR/USD", "GBP/USD", "USD/JPY", "USD/CHF", "AUD/USD"}
	app := venue.New(venue.Options{
		Cfg: params.Venue{
			SessionDuration: time.Hour,
			Instruments:     instruments,
		},
		Engine:   engine,
		Operator: operator.Address(),
		Clock:    clock,
	})
	return &apiFixture{
		server:   NewServer(app, instruments, clock, nil),
		engine:   engine,
		clock:    clock,
		operator: operator,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) signAction(t *testing.T, signer *vcrypto.Signer, op string) OperatorAction {
	t.Helper()
	ts := f.clock.Now().Unix()
	sig, err := signer.Sign(ActionDigest(op, ts))
	if err != nil {
		t.Fatalf("sign action: %v", err)
	}
	return OperatorAction{Timestamp: ts, Signature: hex.EncodeToString(sig)}
}

func (f *apiFixture) startSession(t *testing.T) {
	t.Helper()
	rec := f.do(t, "POST", "/api/v1/sessions", StartSessionRequest{
		OperatorAction: f.signAction(t, f.operator, "start_session"),
		Rates:          []int64{11000, 12700, 14900, 8800, 6500},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("start session: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterAndStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "POST", "/api/v1/traders", RegisterRequest{Address: "0x0000000000000000000000000000000000000001", InitialBalance: 10000})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	// Duplicate registration maps to 409.
	rec = f.do(t, "POST", "/api/v1/traders", RegisterRequest{Address: "0x0000000000000000000000000000000000000001", InitialBalance: 10000})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d", rec.Code)
	}

	rec = f.do(t, "GET", "/api/v1/status", nil)
	var status VenueStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Traders != 1 || status.Live {
		t.Fatalf("status = %+v", status)
	}

	rec = f.do(t, "GET", "/api/v1/traders/0x0000000000000000000000000000000000000001", nil)
	var tr TraderResponse
	json.Unmarshal(rec.Body.Bytes(), &tr)
	if !tr.Registered {
		t.Fatalf("trader = %+v", tr)
	}
}

func TestOperatorAuth(t *testing.T) {
	f := newAPIFixture(t)

	// An unrecognized signer recovers fine but fails the venue's operator
	// check.
	mallory, _ := vcrypto.GenerateKey()
	rec := f.do(t, "POST", "/api/v1/sessions", StartSessionRequest{
		OperatorAction: f.signAction(t, mallory, "start_session"),
		Rates:          []int64{1, 2, 3, 4, 5},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign signer: status %d body %s", rec.Code, rec.Body.String())
	}

	// A stale timestamp is rejected before reaching the venue.
	ts := f.clock.Now().Unix() - 3600
	sig, _ := f.operator.Sign(ActionDigest("start_session", ts))
	rec = f.do(t, "POST", "/api/v1/sessions", StartSessionRequest{
		OperatorAction: OperatorAction{Timestamp: ts, Signature: hex.EncodeToString(sig)},
		Rates:          []int64{1, 2, 3, 4, 5},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("stale action: status %d", rec.Code)
	}

	f.startSession(t)
	rec = f.do(t, "GET", "/api/v1/sessions/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("current session: status %d", rec.Code)
	}
}

func sealedField(t *testing.T, engine *fhe.SealBox, signer *vcrypto.Signer, value uint64, w fhe.Width) (SealedField, fhe.Ciphertext) {
	t.Helper()
	ct, err := engine.Encrypt(value, w)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	proof, err := vcrypto.ProveValue(signer, ct.Blob, uint8(w))
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	return SealedField{
		Blob:  hex.EncodeToString(ct.Blob),
		Width: uint8(w),
		Proof: hex.EncodeToString(proof),
	}, ct
}

func TestSubmitSealedOrder(t *testing.T) {
	f := newAPIFixture(t)
	trader, _ := vcrypto.GenerateKey()

	rec := f.do(t, "POST", "/api/v1/traders", RegisterRequest{Address: trader.Address().Hex(), InitialBalance: 10000})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d", rec.Code)
	}
	f.startSession(t)

	amount, amountCT := sealedField(t, f.engine, trader, 1000, fhe.Uint64)
	price, priceCT := sealedField(t, f.engine, trader, 11000, fhe.Uint64)
	pair, pairCT := sealedField(t, f.engine, trader, 0, fhe.Uint8)

	sub := &vcrypto.OrderSubmission{
		Trader:   trader.Address(),
		Nonce:    big.NewInt(1),
		Deadline: big.NewInt(0),
	}
	copy(sub.AmountHash[:], ethcrypto.Keccak256(amountCT.Blob))
	copy(sub.PriceHash[:], ethcrypto.Keccak256(priceCT.Blob))
	copy(sub.InstrumentHash[:], ethcrypto.Keccak256(pairCT.Blob))
	sig, err := vcrypto.NewTypedSigner(vcrypto.DefaultDomain()).SignSubmission(trader, sub)
	if err != nil {
		t.Fatalf("sign envelope: %v", err)
	}

	req := SubmitOrderRequest{
		Trader:      trader.Address().Hex(),
		Amount:      amount,
		TargetPrice: price,
		Instrument:  pair,
		Nonce:       1,
		Signature:   hex.EncodeToString(sig),
	}
	rec = f.do(t, "POST", "/api/v1/orders", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp SubmitOrderResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Index != 0 || resp.Session != 1 {
		t.Fatalf("resp = %+v", resp)
	}

	rec = f.do(t, "GET", fmt.Sprintf("/api/v1/sessions/1/orders/%s/count", trader.Address().Hex()), nil)
	var count map[string]int
	json.Unmarshal(rec.Body.Bytes(), &count)
	if count["count"] != 1 {
		t.Fatalf("count = %v", count)
	}

	// An envelope signed by someone else is rejected at the door.
	req.Signature = hex.EncodeToString(bytes.Repeat([]byte{0x01}, 65))
	rec = f.do(t, "POST", "/api/v1/orders", req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged envelope: status %d", rec.Code)
	}
}

func TestRevealEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	trader, _ := vcrypto.GenerateKey()
	rec := f.do(t, "POST", "/api/v1/traders", RegisterRequest{Address: trader.Address().Hex(), InitialBalance: 10000})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d", rec.Code)
	}

	rec = f.do(t, "GET", fmt.Sprintf("/api/v1/traders/%s/trade-count", trader.Address().Hex()), nil)
	var tc TradeCountResponse
	json.Unmarshal(rec.Body.Bytes(), &tc)
	if tc.Handle == 0 {
		t.Fatalf("trade count handle = %+v", tc)
	}

	ts := f.clock.Now().Unix()
	digest := ethcrypto.Keccak256([]byte(fmt.Sprintf("reveal|%d|%d", tc.Handle, ts)))
	sig, _ := trader.Sign(digest)
	rec = f.do(t, "POST", "/api/v1/reveal", RevealRequest{
		Handle:    tc.Handle,
		Timestamp: ts,
		Signature: hex.EncodeToString(sig),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reveal: status %d body %s", rec.Code, rec.Body.String())
	}
	var reveal RevealResponse
	json.Unmarshal(rec.Body.Bytes(), &reveal)
	if reveal.Value != 0 {
		t.Fatalf("fresh trade count = %d, want 0", reveal.Value)
	}

	// A principal with no grant recovers fine but is denied by the venue.
	eve, _ := vcrypto.GenerateKey()
	sig, _ = eve.Sign(digest)
	rec = f.do(t, "POST", "/api/v1/reveal", RevealRequest{
		Handle:    tc.Handle,
		Timestamp: ts,
		Signature: hex.EncodeToString(sig),
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign reveal: status %d", rec.Code)
	}
}
