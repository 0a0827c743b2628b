package trader

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/handle"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
)

type stubClock struct{ now time.Time }

func (c *stubClock) Now() time.Time                         { return c.now }
func (c *stubClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func newTestRegistry(t *testing.T) (*Registry, *handle.Store, *handle.Permissions, common.Address) {
	t.Helper()
	engine, err := fhe.NewSealBoxRandom()
	if err != nil {
		t.Fatalf("sealbox: %v", err)
	}
	store := handle.NewStore(engine)
	perms := handle.NewPermissions()
	self := common.HexToAddress("0x00000000000000000000000000000000000000fe")
	clock := &stubClock{now: time.Unix(1700000000, 0)}
	return NewRegistry(store, perms, self, clock, nil, nil), store, perms, self
}

func TestRegisterOnce(t *testing.T) {
	reg, store, perms, self := newTestRegistry(t)
	alice := common.HexToAddress("0x01")

	p, err := reg.Register(alice, 10000)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !p.Registered {
		t.Fatal("profile not marked registered")
	}
	if p.Balance == 0 || p.TradeCount == 0 {
		t.Fatal("profile handles not allocated")
	}

	// Both sides hold persistent grants on both handles.
	for _, h := range []handle.Handle{p.Balance, p.TradeCount} {
		if !perms.IsGranted(h, self) {
			t.Errorf("handle %d: venue not granted", h)
		}
		if !perms.IsGranted(h, alice) {
			t.Errorf("handle %d: owner not granted", h)
		}
	}

	bal, err := store.Reveal(p.Balance, alice, perms)
	if err != nil {
		t.Fatalf("reveal balance: %v", err)
	}
	if bal != 10000 {
		t.Fatalf("balance = %d, want 10000", bal)
	}
	cnt, err := store.Reveal(p.TradeCount, alice, perms)
	if err != nil {
		t.Fatalf("reveal count: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("trade count = %d, want 0", cnt)
	}

	if _, err := reg.Register(alice, 500); !errors.Is(err, core.ErrAlreadyRegistered) {
		t.Fatalf("second register: err = %v, want ErrAlreadyRegistered", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("count = %d, want 1", reg.Count())
	}
}

func TestRegisterRejectsNonPositiveBalance(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	for _, amt := range []int64{0, -1} {
		if _, err := reg.Register(common.HexToAddress("0x02"), amt); !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("register(%d): err = %v, want ErrInvalidAmount", amt, err)
		}
	}
	if reg.IsRegistered(common.HexToAddress("0x02")) {
		t.Fatal("failed register left a profile behind")
	}
}

func TestUpdateBalanceSwapsHandle(t *testing.T) {
	reg, store, perms, _ := newTestRegistry(t)
	bob := common.HexToAddress("0x03")

	p, err := reg.Register(bob, 100)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	old := p.Balance

	if err := reg.UpdateBalance(bob, 2500); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	newBal, _, ok := reg.Handles(bob)
	if !ok {
		t.Fatal("profile vanished")
	}
	if newBal == old {
		t.Fatal("balance handle not replaced")
	}

	v, err := store.Reveal(newBal, bob, perms)
	if err != nil {
		t.Fatalf("reveal new balance: %v", err)
	}
	if v != 2500 {
		t.Fatalf("new balance = %d, want 2500", v)
	}

	// The old handle is dropped, not destroyed; its grant survives.
	if _, err := store.Reveal(old, bob, perms); err != nil {
		t.Fatalf("reveal old balance: %v", err)
	}
}

func TestUpdateBalanceUnknownTrader(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	if err := reg.UpdateBalance(common.HexToAddress("0x04"), 1); !errors.Is(err, core.ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
}

func TestSetTradeCountReassertsGrants(t *testing.T) {
	reg, store, perms, self := newTestRegistry(t)
	carol := common.HexToAddress("0x05")
	if _, err := reg.Register(carol, 100); err != nil {
		t.Fatalf("register: %v", err)
	}

	// An ungranted handle, as a fresh compute result would be.
	h, err := store.Encrypt(7, fhe.Uint32)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := reg.SetTradeCount(carol, h); err != nil {
		t.Fatalf("set trade count: %v", err)
	}
	if !perms.IsGranted(h, self) || !perms.IsGranted(h, carol) {
		t.Fatal("grants not re-asserted on stored counter")
	}
	if _, cnt, _ := reg.Handles(carol); cnt != h {
		t.Fatalf("trade count handle = %d, want %d", cnt, h)
	}
}
