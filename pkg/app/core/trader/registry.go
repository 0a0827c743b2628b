// Package trader implements the one-time registration ledger. A profile maps
// a principal to its encrypted balance and trade-count handles plus public
// metadata; the plaintexts behind the handles never appear here.
package trader

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/handle"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/util"
)

// Profile is a trader's ledger entry. Created exactly once per principal,
// never destroyed. The handles are references: balance updates and settlement
// swap in freshly allocated handles and drop the old references.
type Profile struct {
	Balance      handle.Handle
	TradeCount   handle.Handle
	Registered   bool
	LastActivity core.Timestamp
}

// Registry manages trader profiles. All mutations grant (self, principal)
// persistent access on any handle they store; storing an ungranted handle
// would strand the value for both parties.
type Registry struct {
	mu       sync.RWMutex
	profiles map[common.Address]*Profile

	handles *handle.Store
	perms   *handle.Permissions
	self    common.Address
	clock   util.Clock
	store   *Store // optional persistence of public metadata
	log     *zap.SugaredLogger
}

func NewRegistry(handles *handle.Store, perms *handle.Permissions, self common.Address, clock util.Clock, store *Store, log *zap.SugaredLogger) *Registry {
	return &Registry{
		profiles: make(map[common.Address]*Profile),
		handles:  handles,
		perms:    perms,
		self:     self,
		clock:    clock,
		store:    store,
		log:      log,
	}
}

// Register creates a profile with an encrypted initial balance and an
// encrypted zero trade counter. Fails before any allocation when the
// principal is already registered or the balance is non-positive.
func (r *Registry) Register(principal common.Address, initialBalance int64) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[principal]; ok {
		return nil, fmt.Errorf("register %s: %w", principal.Hex(), core.ErrAlreadyRegistered)
	}
	if initialBalance <= 0 {
		return nil, fmt.Errorf("register %s: %w", principal.Hex(), core.ErrInvalidAmount)
	}

	bal, err := r.handles.Encrypt(uint64(initialBalance), fhe.Uint64)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", principal.Hex(), err)
	}
	cnt, err := r.handles.Encrypt(0, fhe.Uint32)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", principal.Hex(), err)
	}

	// Fresh handles carry no grants; both the venue process and the owner
	// need persistent access before either can ever use them.
	r.perms.Grant(bal, r.self, handle.Persistent)
	r.perms.Grant(bal, principal, handle.Persistent)
	r.perms.Grant(cnt, r.self, handle.Persistent)
	r.perms.Grant(cnt, principal, handle.Persistent)

	p := &Profile{
		Balance:      bal,
		TradeCount:   cnt,
		Registered:   true,
		LastActivity: r.clock.Now().Unix(),
	}
	r.profiles[principal] = p
	r.persist(principal, p)

	if r.log != nil {
		r.log.Infow("trader_registered", "trader", principal.Hex())
	}
	return p, nil
}

// UpdateBalance replaces the balance handle with a freshly encrypted one and
// re-grants. The old handle reference is dropped, not destroyed; it may still
// be referenced from history or events.
func (r *Registry) UpdateBalance(principal common.Address, newBalance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[principal]
	if !ok {
		return fmt.Errorf("update balance %s: %w", principal.Hex(), core.ErrNotRegistered)
	}

	bal, err := r.handles.Encrypt(uint64(newBalance), fhe.Uint64)
	if err != nil {
		return fmt.Errorf("update balance %s: %w", principal.Hex(), err)
	}
	r.perms.Grant(bal, r.self, handle.Persistent)
	r.perms.Grant(bal, principal, handle.Persistent)

	p.Balance = bal
	p.LastActivity = r.clock.Now().Unix()
	r.persist(principal, p)
	return nil
}

// SetTradeCount swaps in a new trade-count handle. The caller (settlement)
// must already have granted (self, principal) on it; this method re-asserts
// the grants so a missed grant upstream cannot strand the counter.
func (r *Registry) SetTradeCount(principal common.Address, h handle.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[principal]
	if !ok {
		return fmt.Errorf("set trade count %s: %w", principal.Hex(), core.ErrNotRegistered)
	}
	r.perms.Grant(h, r.self, handle.Persistent)
	r.perms.Grant(h, principal, handle.Persistent)
	p.TradeCount = h
	r.persist(principal, p)
	return nil
}

// Touch updates last-activity. Called by every state-mutating trader action.
func (r *Registry) Touch(principal common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[principal]; ok {
		p.LastActivity = r.clock.Now().Unix()
		r.persist(principal, p)
	}
}

func (r *Registry) IsRegistered(principal common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.profiles[principal]
	return ok
}

// GetProfile is the public projection: registration flag and last activity,
// no handle exposure.
func (r *Registry) GetProfile(principal common.Address) (registered bool, lastActivity core.Timestamp) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[principal]
	if !ok {
		return false, 0
	}
	return p.Registered, p.LastActivity
}

// Handles returns the profile's current handle references for internal use
// (settlement, caller-scoped projections). Not part of the public surface.
func (r *Registry) Handles(principal common.Address) (balance, tradeCount handle.Handle, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, found := r.profiles[principal]
	if !found {
		return 0, 0, false
	}
	return p.Balance, p.TradeCount, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

func (r *Registry) persist(principal common.Address, p *Profile) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveProfile(principal, p); err != nil && r.log != nil {
		r.log.Warnw("profile_persist_failed", "trader", principal.Hex(), "err", err)
	}
}
