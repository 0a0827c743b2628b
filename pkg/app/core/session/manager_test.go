package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/handle"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
)

var (
	self  = common.HexToAddress("0x5E1F000000000000000000000000000000000000")
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

// fakeClock lets tests move through session windows without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	engine, err := fhe.NewSealBoxRandom()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	store := handle.NewStore(engine)
	perms := handle.NewPermissions()
	return NewManager(time.Hour, 5, store, perms, self, clock, nil)
}

var fiveRates = []int64{11000, 12500, 14900, 9100, 6700}

func TestStartSessionAndLiveness(t *testing.T) {
	clock := newFakeClock()
	m := newManager(t, clock)

	if m.IsLive() {
		t.Fatal("no session yet, must not be live")
	}

	s, err := m.Start(fiveRates)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.ID != 1 {
		t.Errorf("first session id = %d, want 1", s.ID)
	}
	if !s.PricesSet || !s.Active {
		t.Error("started session should have prices set and be active")
	}
	if len(s.Rates) != 5 {
		t.Fatalf("rates = %d handles, want 5", len(s.Rates))
	}
	for i, h := range s.Rates {
		if h == 0 {
			t.Errorf("rate %d has zero handle", i)
		}
		if !m.HasRate(s.ID, core.Instrument(i)) {
			t.Errorf("HasRate(%d, %d) = false", s.ID, i)
		}
	}
	if m.HasRate(s.ID, core.Instrument(5)) {
		t.Error("HasRate out of range should be false")
	}
	if !m.IsLive() {
		t.Error("session should be live inside its window")
	}

	// Window expiry ends liveness without any state change.
	clock.Advance(time.Hour + time.Second)
	if m.IsLive() {
		t.Error("session should not be live past endTime")
	}
}

func TestStartWhileLiveFails(t *testing.T) {
	clock := newFakeClock()
	m := newManager(t, clock)

	if _, err := m.Start(fiveRates); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start(fiveRates); !errors.Is(err, core.ErrSessionActive) {
		t.Errorf("second start while live: got %v, want ErrSessionActive", err)
	}
}

func TestRateVectorLengthValidated(t *testing.T) {
	clock := newFakeClock()
	m := newManager(t, clock)

	if _, err := m.Start([]int64{1, 2, 3}); !errors.Is(err, core.ErrInvalidInstrument) {
		t.Errorf("short rate vector: got %v, want ErrInvalidInstrument", err)
	}
}

func TestCooldownAfterEmergencyEnd(t *testing.T) {
	clock := newFakeClock()
	m := newManager(t, clock)

	s1, _ := m.Start(fiveRates)
	clock.Advance(10 * time.Minute)
	if err := m.EmergencyEnd(); err != nil {
		t.Fatalf("emergency end: %v", err)
	}
	if m.IsLive() {
		t.Error("force-ended session must not be live")
	}

	// Inside the cool-down.
	clock.Advance(30 * time.Minute)
	if _, err := m.Start(fiveRates); !errors.Is(err, core.ErrTooEarly) {
		t.Errorf("start during cool-down: got %v, want ErrTooEarly", err)
	}

	// After the cool-down: next id, exactly +1.
	clock.Advance(31 * time.Minute)
	s2, err := m.Start(fiveRates)
	if err != nil {
		t.Fatalf("start after cool-down: %v", err)
	}
	if s2.ID != s1.ID+1 {
		t.Errorf("session id = %d, want %d", s2.ID, s1.ID+1)
	}

	// History of the ended session is retained untouched.
	old, ok := m.History(s1.ID)
	if !ok {
		t.Fatal("ended session missing from history")
	}
	if old.Active {
		t.Error("ended session still marked active")
	}
}

func TestCooldownAfterLapsedWindow(t *testing.T) {
	clock := newFakeClock()
	m := newManager(t, clock)

	s1, err := m.Start(fiveRates)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Window runs out with no settlement and no forced end.
	clock.Advance(time.Hour + time.Second)
	if m.IsLive() {
		t.Fatal("session should not be live past endTime")
	}
	if _, err := m.Start(fiveRates); !errors.Is(err, core.ErrTooEarly) {
		t.Errorf("start just after lapsed window: got %v, want ErrTooEarly", err)
	}

	// Cool-down counts from the lapsed window's end.
	clock.Advance(time.Hour)
	s2, err := m.Start(fiveRates)
	if err != nil {
		t.Fatalf("start after cool-down: %v", err)
	}
	if s2.ID != s1.ID+1 {
		t.Errorf("session id = %d, want %d", s2.ID, s1.ID+1)
	}

	// The lapsed session keeps its record and its unsettled state.
	old, ok := m.History(s1.ID)
	if !ok {
		t.Fatal("lapsed session missing from history")
	}
	if old.ID != s1.ID {
		t.Errorf("history id = %d, want %d", old.ID, s1.ID)
	}
}

func TestEmergencyEndWithoutLiveSession(t *testing.T) {
	clock := newFakeClock()
	m := newManager(t, clock)

	if err := m.EmergencyEnd(); !errors.Is(err, core.ErrNoActiveSession) {
		t.Errorf("emergency end with no session: got %v, want ErrNoActiveSession", err)
	}

	m.Start(fiveRates)
	clock.Advance(2 * time.Hour) // window passed, no longer live
	if err := m.EmergencyEnd(); !errors.Is(err, core.ErrNoActiveSession) {
		t.Errorf("emergency end after window: got %v, want ErrNoActiveSession", err)
	}
}

func TestParticipantInsertionIdempotent(t *testing.T) {
	clock := newFakeClock()
	m := newManager(t, clock)
	m.Start(fiveRates)

	for _, p := range []common.Address{alice, bob, alice, alice, bob} {
		if err := m.AddParticipant(p); err != nil {
			t.Fatalf("add participant: %v", err)
		}
	}

	s, _ := m.Current()
	if len(s.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(s.Participants))
	}
	// Insertion order preserved.
	if s.Participants[0] != alice || s.Participants[1] != bob {
		t.Error("participant insertion order not preserved")
	}
}

func TestEndAndAdvance(t *testing.T) {
	clock := newFakeClock()
	m := newManager(t, clock)

	s1, _ := m.Start(fiveRates)
	clock.Advance(2 * time.Hour)
	m.EndAndAdvance()

	if m.CurrentID() != s1.ID+1 {
		t.Errorf("current id = %d, want %d", m.CurrentID(), s1.ID+1)
	}
	if _, ok := m.Current(); ok {
		t.Error("advanced pointer should have no session record yet")
	}
	if _, ok := m.History(s1.ID); !ok {
		t.Error("settled session should stay queryable")
	}
}
