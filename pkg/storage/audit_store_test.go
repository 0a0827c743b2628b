package storage

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func newTestStore(t *testing.T) *AuditStore {
	t.Helper()
	s, err := NewAuditStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRecordRoundtrip(t *testing.T) {
	s := newTestStore(t)
	rec := &SessionRecord{
		ID:           3,
		StartTime:    1700000000,
		EndTime:      1700003600,
		PricesSet:    true,
		Settled:      true,
		Participants: []common.Address{common.HexToAddress("0x01")},
	}
	if err := s.SaveSession(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadSession(3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.ID != 3 || !got.Settled || len(got.Participants) != 1 {
		t.Fatalf("got %+v", got)
	}

	missing, err := s.LoadSession(99)
	if err != nil || missing != nil {
		t.Fatalf("missing session: rec=%v err=%v", missing, err)
	}
}

func TestOrderScanPreservesPlacementOrder(t *testing.T) {
	s := newTestStore(t)
	alice := common.HexToAddress("0x01")
	for i := 0; i < 3; i++ {
		err := s.SaveOrder(&OrderRecord{Session: 1, Trader: alice, Index: i, Amount: uint64(10 + i)})
		if err != nil {
			t.Fatalf("save order %d: %v", i, err)
		}
	}
	// An order in another session must not leak into the scan.
	if err := s.SaveOrder(&OrderRecord{Session: 2, Trader: alice, Index: 0}); err != nil {
		t.Fatalf("save: %v", err)
	}

	orders, err := s.LoadSessionOrders(1)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("scanned %d orders, want 3", len(orders))
	}
	for i, o := range orders {
		if o.Index != i || o.Session != 1 {
			t.Fatalf("order %d out of place: %+v", i, o)
		}
	}
}

func TestReportDigestRoundtrip(t *testing.T) {
	s := newTestStore(t)
	digest := bytes.Repeat([]byte{0xab}, 32)
	if err := s.SaveReportDigest(1, digest); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadReportDigest(1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, digest) {
		t.Fatalf("digest mismatch")
	}
	if got, _ := s.LoadReportDigest(2); got != nil {
		t.Fatal("unexpected digest for unknown session")
	}
}
