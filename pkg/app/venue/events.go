package venue

import (
	"github.com/ethereum/go-ethereum/common"
)

// EventKind discriminates committed venue events.
type EventKind string

const (
	EvTraderRegistered   EventKind = "trader_registered"
	EvSessionStarted     EventKind = "session_started"
	EvPrivateOrderPlaced EventKind = "private_order_placed"
	EvOrderExecuted      EventKind = "order_executed"
	EvSessionEnded       EventKind = "session_ended"
	EvBalanceUpdated     EventKind = "balance_updated"
)

// Event is a committed state change, flat for gob and JSON transport. Only
// public facts appear: principals, session ids, order indexes, timestamps.
// Encrypted values never ride an event, not even as handle ids.
type Event struct {
	Kind    EventKind      `json:"kind"`
	Time    int64          `json:"time"`
	Trader  common.Address `json:"trader,omitempty"`
	Session uint32         `json:"session,omitempty"`

	// EvPrivateOrderPlaced, EvOrderExecuted
	OrderIndex int `json:"order_index,omitempty"`

	// EvSessionEnded
	Forced         bool `json:"forced,omitempty"`
	OrdersExecuted int  `json:"orders_executed,omitempty"`
}
