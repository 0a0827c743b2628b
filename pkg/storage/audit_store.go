// Package storage persists the venue's public bookkeeping to Pebble: session
// records, the order audit log and settlement report digests. Only handle ids,
// flags and timestamps are written; no record ever contains a plaintext
// amount, price or rate. Handles themselves live for the process lifetime, so
// this store is an audit trail, not ciphertext recovery.
package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// SessionRecord mirrors a session's public fields.
type SessionRecord struct {
	ID           uint32
	StartTime    int64
	EndTime      int64
	Active       bool
	PricesSet    bool
	Settled      bool
	Participants []common.Address
}

// OrderRecord mirrors one order's public fields. The three ciphertext fields
// appear only as handle ids.
type OrderRecord struct {
	Session     uint32
	Trader      common.Address
	Index       int
	Amount      uint64
	TargetPrice uint64
	Instrument  uint64
	Executed    bool
	Timestamp   int64
}

// AuditStore is the Pebble-backed venue journal.
type AuditStore struct {
	db *pebble.DB
}

func NewAuditStore(path string) (*AuditStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	return &AuditStore{db: db}, nil
}

func (s *AuditStore) Close() error { return s.db.Close() }

func (s *AuditStore) SaveSession(rec *SessionRecord) error {
	val, err := encodeGob(rec)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", rec.ID, err)
	}
	if err := s.db.Set(sessionKey(rec.ID), val, pebble.Sync); err != nil {
		return fmt.Errorf("save session %d: %w", rec.ID, err)
	}
	return nil
}

func (s *AuditStore) LoadSession(id uint32) (*SessionRecord, error) {
	val, closer, err := s.db.Get(sessionKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", id, err)
	}
	defer closer.Close()
	var rec SessionRecord
	if err := decodeGob(val, &rec); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", id, err)
	}
	return &rec, nil
}

func (s *AuditStore) SaveOrder(rec *OrderRecord) error {
	val, err := encodeGob(rec)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	key := orderKey(rec.Session, rec.Trader, rec.Index)
	if err := s.db.Set(key, val, pebble.Sync); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// LoadSessionOrders scans a session's full order log in key order: grouped by
// trader, placement order within each trader.
func (s *AuditStore) LoadSessionOrders(id uint32) ([]*OrderRecord, error) {
	prefix := orderPrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("scan session %d orders: %w", id, err)
	}
	defer iter.Close()

	var out []*OrderRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec OrderRecord
		if err := decodeGob(iter.Value(), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// SaveReportDigest records the attested digest of a settlement report.
func (s *AuditStore) SaveReportDigest(id uint32, digest []byte) error {
	if err := s.db.Set(reportKey(id), digest, pebble.Sync); err != nil {
		return fmt.Errorf("save report digest %d: %w", id, err)
	}
	return nil
}

func (s *AuditStore) LoadReportDigest(id uint32) ([]byte, error) {
	val, closer, err := s.db.Get(reportKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load report digest %d: %w", id, err)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}
