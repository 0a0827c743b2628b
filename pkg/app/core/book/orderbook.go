// Package book keeps the per-(session, trader) log of private orders. The
// log is append-only: placement indexes are stable and zero-based, and orders
// are never removed. Precondition checks (registration, liveness, amount and
// instrument validation) happen in the venue operation before anything is
// appended here.
package book

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/handle"
)

// Order is one private order. Amount, target price and instrument are
// encrypted independently, never combined into one ciphertext, so a grant
// on one field discloses nothing about the others. Executed flips exactly
// once, false to true, at settlement.
type Order struct {
	Amount      handle.Handle
	TargetPrice handle.Handle
	Instrument  handle.Handle
	Executed    bool
	Timestamp   core.Timestamp
	Trader      common.Address
}

type logKey struct {
	session uint32
	trader  common.Address
}

// Book is the order log, keyed by (session, trader).
type Book struct {
	mu   sync.RWMutex
	logs map[logKey][]*Order
}

func NewBook() *Book {
	return &Book{logs: make(map[logKey][]*Order)}
}

// Append adds an order to the trader's per-session log and returns its
// stable zero-based index.
func (b *Book) Append(session uint32, o *Order) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := logKey{session, o.Trader}
	b.logs[k] = append(b.logs[k], o)
	return len(b.logs[k]) - 1
}

// Count is the public projection: number of orders, no handle exposure.
func (b *Book) Count(session uint32, trader common.Address) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.logs[logKey{session, trader}])
}

// Orders returns the trader's log in placement order. The slice header is a
// copy; the entries are the live orders (settlement flips Executed in place).
func (b *Book) Orders(session uint32, trader common.Address) []*Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	log := b.logs[logKey{session, trader}]
	out := make([]*Order, len(log))
	copy(out, log)
	return out
}

// Get returns one order by index.
func (b *Book) Get(session uint32, trader common.Address, index int) (*Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	log := b.logs[logKey{session, trader}]
	if index < 0 || index >= len(log) {
		return nil, false
	}
	return log[index], true
}
