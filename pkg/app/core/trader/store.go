package trader

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store persists trader public metadata to Pebble. Only bookkeeping crosses
// this boundary: handle ids, flags and timestamps. Ciphertexts stay in the
// in-process handle arena (handles have no lifecycle beyond the process), so
// this is an audit/restart aid, not ciphertext recovery.
type Store struct {
	db *pebble.DB
}

// ProfileMeta is the on-disk shape of a profile.
type ProfileMeta struct {
	Balance      uint64 `json:"balance_handle"`
	TradeCount   uint64 `json:"trade_count_handle"`
	Registered   bool   `json:"registered"`
	LastActivity int64  `json:"last_activity"`
}

func NewStore(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open trader store at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func profileKey(addr common.Address) []byte {
	return []byte("trd:" + addr.Hex())
}

func (s *Store) SaveProfile(addr common.Address, p *Profile) error {
	rec := ProfileMeta{
		Balance:      uint64(p.Balance),
		TradeCount:   uint64(p.TradeCount),
		Registered:   p.Registered,
		LastActivity: p.LastActivity,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := s.db.Set(profileKey(addr), data, pebble.Sync); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// LoadProfileMeta loads the public metadata of a profile.
// Returns nil if the trader was never registered.
func (s *Store) LoadProfileMeta(addr common.Address) (*ProfileMeta, error) {
	data, closer, err := s.db.Get(profileKey(addr))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	defer closer.Close()

	var rec ProfileMeta
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &rec, nil
}
