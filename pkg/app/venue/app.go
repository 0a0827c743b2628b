// Package venue is the operation surface of the private FX venue. Every
// state-mutating operation runs end to end under one mutex (single-writer
// model), is bracketed by BeginOp/EndOp so transient grants cannot leak
// across operations, and on commit appends a WAL line and emits a typed
// event. Precondition failures leave no state behind.
package venue

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/book"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/handle"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/session"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/settle"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/trader"
	vcrypto "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/crypto"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/params"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/storage"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/util"
)

// Options wires an App. Engine and Operator are required; nil WAL, Audit,
// Attestor and Logger degrade to no-ops.
type Options struct {
	Cfg      params.Venue
	Engine   fhe.Engine
	Operator common.Address
	Clock    util.Clock
	WAL      storage.WAL
	Audit    *storage.AuditStore
	Attestor *vcrypto.Attestor
	Traders  *trader.Store // optional metadata write-through
	Logger   *zap.SugaredLogger
}

// App owns the confidential core and serializes access to it. The venue
// process itself acts under the operator's principal; handles the venue must
// later compute on carry a persistent self-grant from the moment they are
// stored.
type App struct {
	mu sync.Mutex

	cfg      params.Venue
	operator common.Address
	self     common.Address

	handles  *handle.Store
	perms    *handle.Permissions
	arith    *handle.Arithmetic
	traders  *trader.Registry
	sessions *session.Manager
	orders   *book.Book
	settler  *settle.Engine

	wal      storage.WAL
	audit    *storage.AuditStore
	attestor *vcrypto.Attestor
	clock    util.Clock
	log      *zap.SugaredLogger

	// OnEvent receives every committed event, synchronously, in commit
	// order. Set before serving traffic.
	OnEvent func(Event)

	// OnSettled fires after a settlement commits, with the attested report
	// digest. Only called when an attestor is configured.
	OnSettled func(sessionID uint32, digest, attestation []byte)
}

func New(opts Options) *App {
	clock := opts.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	wal := opts.WAL
	if wal == nil {
		wal = storage.NewNopWAL()
	}

	self := opts.Operator
	store := handle.NewStore(opts.Engine)
	perms := handle.NewPermissions()
	traders := trader.NewRegistry(store, perms, self, clock, opts.Traders, opts.Logger)
	sessions := session.NewManager(opts.Cfg.SessionDuration, len(opts.Cfg.Instruments), store, perms, self, clock, opts.Logger)
	orders := book.NewBook()
	arith := handle.NewArithmetic(store, perms, self)
	settler := settle.NewEngine(sessions, orders, traders, store, arith, perms, self, clock, opts.Logger)

	a := &App{
		cfg:      opts.Cfg,
		operator: opts.Operator,
		self:     self,
		handles:  store,
		perms:    perms,
		arith:    arith,
		traders:  traders,
		sessions: sessions,
		orders:   orders,
		settler:  settler,
		wal:      wal,
		audit:    opts.Audit,
		attestor: opts.Attestor,
		clock:    clock,
		log:      opts.Logger,
	}
	settler.OnExecuted = a.onExecuted
	return a
}

func (a *App) Operator() common.Address { return a.operator }

func (a *App) emit(e Event) {
	if a.OnEvent != nil {
		a.OnEvent(e)
	}
}

func (a *App) checkOperator(caller common.Address) error {
	if caller != a.operator {
		return fmt.Errorf("caller %s: %w", caller.Hex(), core.ErrNotOperator)
	}
	return nil
}

// Register creates a trader profile with an encrypted initial balance.
func (a *App) Register(principal common.Address, initialBalance int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perms.BeginOp()
	defer a.perms.EndOp()

	if _, err := a.traders.Register(principal, initialBalance); err != nil {
		return err
	}
	a.wal.Append(fmt.Sprintf("register trader=%s", principal.Hex()))
	a.emit(Event{Kind: EvTraderRegistered, Time: a.now(), Trader: principal})
	return nil
}

// UpdateBalance replaces a trader's encrypted balance.
func (a *App) UpdateBalance(principal common.Address, newBalance int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perms.BeginOp()
	defer a.perms.EndOp()

	if err := a.traders.UpdateBalance(principal, newBalance); err != nil {
		return err
	}
	a.wal.Append(fmt.Sprintf("update_balance trader=%s", principal.Hex()))
	a.emit(Event{Kind: EvBalanceUpdated, Time: a.now(), Trader: principal})
	return nil
}

// StartSession opens a trading window with one encrypted reference rate per
// configured currency pair. Operator only.
func (a *App) StartSession(caller common.Address, rates []int64) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perms.BeginOp()
	defer a.perms.EndOp()

	if err := a.checkOperator(caller); err != nil {
		return 0, err
	}
	s, err := a.sessions.Start(rates)
	if err != nil {
		return 0, err
	}
	a.auditSession(s, false)
	a.wal.Append(fmt.Sprintf("start_session id=%d end=%d", s.ID, s.EndTime))
	a.emit(Event{Kind: EvSessionStarted, Time: a.now(), Session: s.ID})
	return s.ID, nil
}

// PlaceOrder validates and appends a private order: each field is encrypted
// independently and granted to (venue, trader). Returns the order's stable
// index in the trader's per-session log. Preconditions are checked before any
// handle exists; a failure mutates nothing.
func (a *App) PlaceOrder(caller common.Address, amount, targetPrice int64, instrument core.Instrument) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perms.BeginOp()
	defer a.perms.EndOp()

	if !a.traders.IsRegistered(caller) {
		return 0, fmt.Errorf("place order %s: %w", caller.Hex(), core.ErrNotRegistered)
	}
	if !a.sessions.IsLive() {
		return 0, fmt.Errorf("place order %s: %w", caller.Hex(), core.ErrSessionNotLive)
	}
	if amount <= 0 || targetPrice <= 0 {
		return 0, fmt.Errorf("place order %s: %w", caller.Hex(), core.ErrInvalidAmount)
	}
	if int(instrument) >= len(a.cfg.Instruments) {
		return 0, fmt.Errorf("place order %s: pair %d: %w", caller.Hex(), instrument, core.ErrInvalidInstrument)
	}

	amtH, err := a.handles.Encrypt(uint64(amount), fhe.Uint64)
	if err != nil {
		return 0, fmt.Errorf("place order %s: %w", caller.Hex(), err)
	}
	priceH, err := a.handles.Encrypt(uint64(targetPrice), fhe.Uint64)
	if err != nil {
		return 0, fmt.Errorf("place order %s: %w", caller.Hex(), err)
	}
	pairH, err := a.handles.Encrypt(uint64(instrument), fhe.Uint8)
	if err != nil {
		return 0, fmt.Errorf("place order %s: %w", caller.Hex(), err)
	}

	return a.commitOrder(caller, amtH, priceH, pairH)
}

// SealedOrder is an externally encrypted order: the trader sealed the three
// fields client-side and proves plaintext knowledge of each. Amount and
// target-price positivity cannot be checked here; the sealed path trades that
// validation for never showing the venue the plaintext.
type SealedOrder struct {
	Amount          fhe.Ciphertext
	TargetPrice     fhe.Ciphertext
	Instrument      fhe.Ciphertext
	AmountProof     []byte
	PriceProof      []byte
	InstrumentProof []byte
}

// PlaceOrderSealed ingests a sealed order. All three proofs are verified
// before any ciphertext enters the handle store, keeping a rejection free of
// side effects.
func (a *App) PlaceOrderSealed(caller common.Address, o *SealedOrder) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perms.BeginOp()
	defer a.perms.EndOp()

	if !a.traders.IsRegistered(caller) {
		return 0, fmt.Errorf("sealed order %s: %w", caller.Hex(), core.ErrNotRegistered)
	}
	if !a.sessions.IsLive() {
		return 0, fmt.Errorf("sealed order %s: %w", caller.Hex(), core.ErrSessionNotLive)
	}
	if o.Amount.Width != fhe.Uint64 || o.TargetPrice.Width != fhe.Uint64 {
		return 0, fmt.Errorf("sealed order %s: %w", caller.Hex(), core.ErrInvalidAmount)
	}
	if o.Instrument.Width != fhe.Uint8 {
		return 0, fmt.Errorf("sealed order %s: %w", caller.Hex(), core.ErrInvalidInstrument)
	}
	for _, f := range []struct {
		ct    fhe.Ciphertext
		proof []byte
	}{
		{o.Amount, o.AmountProof},
		{o.TargetPrice, o.PriceProof},
		{o.Instrument, o.InstrumentProof},
	} {
		if !vcrypto.VerifyValueProof(caller, f.ct.Blob, uint8(f.ct.Width), f.proof) {
			return 0, fmt.Errorf("sealed order %s: %w", caller.Hex(), core.ErrProofInvalid)
		}
	}

	amtH, err := a.handles.Ingest(o.Amount, o.AmountProof, caller)
	if err != nil {
		return 0, fmt.Errorf("sealed order %s: %w", caller.Hex(), err)
	}
	priceH, err := a.handles.Ingest(o.TargetPrice, o.PriceProof, caller)
	if err != nil {
		return 0, fmt.Errorf("sealed order %s: %w", caller.Hex(), err)
	}
	pairH, err := a.handles.Ingest(o.Instrument, o.InstrumentProof, caller)
	if err != nil {
		return 0, fmt.Errorf("sealed order %s: %w", caller.Hex(), err)
	}

	return a.commitOrder(caller, amtH, priceH, pairH)
}

func (a *App) commitOrder(caller common.Address, amtH, priceH, pairH handle.Handle) (int, error) {
	for _, h := range []handle.Handle{amtH, priceH, pairH} {
		a.perms.Grant(h, a.self, handle.Persistent)
		a.perms.Grant(h, caller, handle.Persistent)
	}

	s, _ := a.sessions.Current()
	o := &book.Order{
		Amount:      amtH,
		TargetPrice: priceH,
		Instrument:  pairH,
		Timestamp:   a.now(),
		Trader:      caller,
	}
	idx := a.orders.Append(s.ID, o)
	if err := a.sessions.AddParticipant(caller); err != nil {
		return 0, fmt.Errorf("place order %s: %w", caller.Hex(), err)
	}
	a.traders.Touch(caller)

	a.auditOrder(s.ID, o, idx)
	a.wal.Append(fmt.Sprintf("place_order trader=%s session=%d index=%d", caller.Hex(), s.ID, idx))
	a.emit(Event{Kind: EvPrivateOrderPlaced, Time: a.now(), Trader: caller, Session: s.ID, OrderIndex: idx})
	return idx, nil
}

// SettleSession sweeps the concluded session, attests the report when an
// attestor is configured, and advances the session pointer. Operator only.
func (a *App) SettleSession(caller common.Address) (*settle.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perms.BeginOp()
	defer a.perms.EndOp()

	if err := a.checkOperator(caller); err != nil {
		return nil, err
	}
	s, _ := a.sessions.Current()
	report, err := a.settler.Settle()
	if err != nil {
		return nil, err
	}

	if a.attestor != nil {
		digest := report.Digest()
		sig := a.attestor.Attest(digest)
		if a.log != nil {
			a.log.Infow("settlement_attested", "session", report.SessionID, "sig_bytes", len(sig))
		}
		if a.audit != nil {
			if err := a.audit.SaveReportDigest(report.SessionID, digest); err != nil && a.log != nil {
				a.log.Warnw("report_digest_persist_failed", "session", report.SessionID, "err", err)
			}
		}
		if a.OnSettled != nil {
			a.OnSettled(report.SessionID, digest, sig)
		}
	}
	if s != nil {
		a.auditSession(s, true)
	}
	a.wal.Append(fmt.Sprintf("settle_session id=%d executed=%d", report.SessionID, report.OrdersExecuted))
	a.emit(Event{
		Kind:           EvSessionEnded,
		Time:           a.now(),
		Session:        report.SessionID,
		OrdersExecuted: report.OrdersExecuted,
	})
	return report, nil
}

// EmergencyEnd forces the live session closed without settling it. Operator
// only.
func (a *App) EmergencyEnd(caller common.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perms.BeginOp()
	defer a.perms.EndOp()

	if err := a.checkOperator(caller); err != nil {
		return err
	}
	id := a.sessions.CurrentID()
	if err := a.sessions.EmergencyEnd(); err != nil {
		return err
	}
	if s, ok := a.sessions.Current(); ok {
		a.auditSession(s, false)
	}
	a.wal.Append(fmt.Sprintf("emergency_end id=%d", id))
	a.emit(Event{Kind: EvSessionEnded, Time: a.now(), Session: id, Forced: true})
	return nil
}

// onExecuted runs inside the settlement sweep, already under the app mutex.
func (a *App) onExecuted(sessionID uint32, e settle.Executed) {
	if o, ok := a.orders.Get(sessionID, e.Trader, e.Index); ok {
		a.auditOrder(sessionID, o, e.Index)
	}
	a.wal.Append(fmt.Sprintf("order_executed trader=%s session=%d index=%d", e.Trader.Hex(), sessionID, e.Index))
	a.emit(Event{Kind: EvOrderExecuted, Time: a.now(), Trader: e.Trader, Session: sessionID, OrderIndex: e.Index})
}

// SessionInfo is the public projection of a session; rates stay hidden.
type SessionInfo struct {
	ID           uint32 `json:"id"`
	Live         bool   `json:"live"`
	Active       bool   `json:"active"`
	PricesSet    bool   `json:"prices_set"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	Participants int    `json:"participants"`
}

func sessionInfo(s *session.Session, now core.Timestamp) SessionInfo {
	return SessionInfo{
		ID:           s.ID,
		Live:         s.Live(now),
		Active:       s.Active,
		PricesSet:    s.PricesSet,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Participants: len(s.Participants),
	}
}

// SessionInfo reports the current session, if one exists under the current
// pointer.
func (a *App) SessionInfo() (SessionInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions.Current()
	if !ok {
		return SessionInfo{}, false
	}
	return sessionInfo(s, a.now()), true
}

// SessionHistory reports any retained session by id.
func (a *App) SessionHistory(id uint32) (SessionInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions.History(id)
	if !ok {
		return SessionInfo{}, false
	}
	return sessionInfo(s, a.now()), true
}

// HasInstrumentRate reports whether a session holds an encrypted rate for the
// pair, without exposing the handle.
func (a *App) HasInstrumentRate(id uint32, pair core.Instrument) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions.HasRate(id, pair)
}

// OrderCount is the public order-log projection.
func (a *App) OrderCount(sessionID uint32, trader common.Address) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orders.Count(sessionID, trader)
}

// TraderProfile is the public trader projection.
func (a *App) TraderProfile(principal common.Address) (registered bool, lastActivity int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.traders.GetProfile(principal)
}

// MyEncryptedTradeCount returns the caller's trade-count handle. The handle
// is only useful to a caller holding a grant on it, which registration and
// settlement maintain.
func (a *App) MyEncryptedTradeCount(caller common.Address) (handle.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, cnt, ok := a.traders.Handles(caller)
	if !ok {
		return 0, fmt.Errorf("trade count %s: %w", caller.Hex(), core.ErrNotRegistered)
	}
	return cnt, nil
}

// Reveal decrypts a handle for a granted caller. The off-system disclosure
// path; everything else only moves handles.
func (a *App) Reveal(caller common.Address, h handle.Handle) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handles.Reveal(h, caller, a.perms)
}

// TraderCount reports the number of registered traders.
func (a *App) TraderCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.traders.Count()
}

// IsLive reports current session liveness.
func (a *App) IsLive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions.IsLive()
}

func (a *App) now() int64 { return a.clock.Now().Unix() }

func (a *App) auditSession(s *session.Session, settled bool) {
	if a.audit == nil {
		return
	}
	rec := &storage.SessionRecord{
		ID:           s.ID,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Active:       s.Active,
		PricesSet:    s.PricesSet,
		Settled:      settled,
		Participants: append([]common.Address(nil), s.Participants...),
	}
	if err := a.audit.SaveSession(rec); err != nil && a.log != nil {
		a.log.Warnw("session_persist_failed", "session", s.ID, "err", err)
	}
}

func (a *App) auditOrder(sessionID uint32, o *book.Order, idx int) {
	if a.audit == nil {
		return
	}
	rec := &storage.OrderRecord{
		Session:     sessionID,
		Trader:      o.Trader,
		Index:       idx,
		Amount:      uint64(o.Amount),
		TargetPrice: uint64(o.TargetPrice),
		Instrument:  uint64(o.Instrument),
		Executed:    o.Executed,
		Timestamp:   o.Timestamp,
	}
	if err := a.audit.SaveOrder(rec); err != nil && a.log != nil {
		a.log.Warnw("order_persist_failed", "session", sessionID, "err", err)
	}
}
