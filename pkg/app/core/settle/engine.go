// Package settle batch-processes the unsettled orders of a concluded session.
// Settlement here is demonstrative bookkeeping, not matching: every
// unexecuted order bumps the trader's encrypted trade counter by an encrypted
// one. The sweep is restartable at order granularity: an order is marked
// executed only together with its granted counter update, so a reattempt
// after a partial failure never double-counts.
package settle

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/book"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/handle"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/session"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/trader"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/util"
)

// Executed describes one settled order.
type Executed struct {
	Trader common.Address
	Index  int // order index in the trader's per-session log
}

// Report summarizes one settlement sweep.
type Report struct {
	SessionID      uint32
	OrdersExecuted int
	Participants   int
	Orders         []Executed
}

// Digest is what replicas attest over: keccak of the report's public fields.
func (r *Report) Digest() []byte {
	buf := make([]byte, 0, 12+len(r.Orders)*24)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], r.SessionID)
	buf = append(buf, u32[:]...)
	binary.BigEndian.PutUint32(u32[:], uint32(r.OrdersExecuted))
	buf = append(buf, u32[:]...)
	binary.BigEndian.PutUint32(u32[:], uint32(r.Participants))
	buf = append(buf, u32[:]...)
	for _, e := range r.Orders {
		buf = append(buf, e.Trader.Bytes()...)
		binary.BigEndian.PutUint32(u32[:], uint32(e.Index))
		buf = append(buf, u32[:]...)
	}
	return crypto.Keccak256(buf)
}

// Engine runs the sweep over a concluded session.
type Engine struct {
	sessions *session.Manager
	orders   *book.Book
	traders  *trader.Registry
	handles  *handle.Store
	arith    *handle.Arithmetic
	perms    *handle.Permissions
	self     common.Address
	clock    util.Clock
	log      *zap.SugaredLogger

	// OnExecuted fires after each order commits (executed flag + granted
	// counter), before the session advances.
	OnExecuted func(sessionID uint32, e Executed)
}

func NewEngine(sessions *session.Manager, orders *book.Book, traders *trader.Registry, handles *handle.Store, arith *handle.Arithmetic, perms *handle.Permissions, self common.Address, clock util.Clock, log *zap.SugaredLogger) *Engine {
	return &Engine{
		sessions: sessions,
		orders:   orders,
		traders:  traders,
		handles:  handles,
		arith:    arith,
		perms:    perms,
		self:     self,
		clock:    clock,
		log:      log,
	}
}

// Settle sweeps the current session once its window has closed. It does not
// require the session to still be active: an emergency-ended session settles
// the same way, because ending and settling are decoupled. Participants are
// visited in insertion order, orders in placement order.
func (e *Engine) Settle() (*Report, error) {
	s, ok := e.sessions.Current()
	if !ok || !s.PricesSet {
		return nil, fmt.Errorf("settle: %w", core.ErrNoActiveSession)
	}
	now := e.clock.Now().Unix()
	if now <= s.EndTime {
		return nil, fmt.Errorf("settle: window open until %d: %w", s.EndTime, core.ErrTooEarly)
	}

	report := &Report{SessionID: s.ID, Participants: len(s.Participants)}

	for _, p := range s.Participants {
		_, countH, registered := e.traders.Handles(p)
		if !registered {
			// Participants are only ever added by successful order
			// placement, which requires registration.
			return report, fmt.Errorf("settle: participant %s: %w", p.Hex(), core.ErrNotRegistered)
		}

		for i, o := range e.orders.Orders(s.ID, p) {
			if o.Executed {
				continue
			}

			// Compute the counter update first. Nothing below mutates
			// until the new handle exists and is granted; an engine
			// failure here leaves the order unexecuted and the sweep
			// restartable.
			oneH, err := e.handles.Encrypt(1, fhe.Uint32)
			if err != nil {
				return report, fmt.Errorf("settle order %d of %s: %w", i, p.Hex(), err)
			}
			e.perms.Grant(oneH, e.self, handle.Persistent)

			newCount, err := e.arith.Add(countH, oneH)
			if err != nil {
				return report, fmt.Errorf("settle order %d of %s: %w", i, p.Hex(), err)
			}

			// The fresh counter has no grants. Re-granting before the
			// swap is what keeps the trader able to read their own
			// counter; skipping this strands the value for everyone.
			e.perms.Grant(newCount, e.self, handle.Persistent)
			e.perms.Grant(newCount, p, handle.Persistent)

			if err := e.traders.SetTradeCount(p, newCount); err != nil {
				return report, fmt.Errorf("settle order %d of %s: %w", i, p.Hex(), err)
			}
			o.Executed = true
			countH = newCount

			exec := Executed{Trader: p, Index: i}
			report.Orders = append(report.Orders, exec)
			report.OrdersExecuted++
			if e.OnExecuted != nil {
				e.OnExecuted(s.ID, exec)
			}
		}
		e.traders.Touch(p)
	}

	e.sessions.EndAndAdvance()

	if e.log != nil {
		e.log.Infow("session_settled",
			"session", report.SessionID,
			"orders", report.OrdersExecuted,
			"participants", report.Participants)
	}
	return report, nil
}
