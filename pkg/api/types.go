package api

// Request and response types for the REST surface and WebSocket messages.
// Responses carry public projections only: registration flags, timestamps,
// counts and opaque handle ids. No endpoint ever returns a plaintext amount,
// target price or reference rate belonging to someone else.

// VenueStatus is the GET /status response.
type VenueStatus struct {
	Operator    string   `json:"operator"`
	Instruments []string `json:"instruments"`
	Traders     int      `json:"traders"`
	Live        bool     `json:"live"`
}

// TraderResponse is the public trader projection.
type TraderResponse struct {
	Address      string `json:"address"`
	Registered   bool   `json:"registered"`
	LastActivity int64  `json:"lastActivity"`
}

// TradeCountResponse carries the opaque trade-count handle id. Only a
// principal holding a grant can turn it into a value via /reveal.
type TradeCountResponse struct {
	Address string `json:"address"`
	Handle  uint64 `json:"handle"`
}

// RegisterRequest is the POST /traders payload.
type RegisterRequest struct {
	Address        string `json:"address"`
	InitialBalance int64  `json:"initialBalance"`
}

// UpdateBalanceRequest is the POST /traders/{address}/balance payload.
type UpdateBalanceRequest struct {
	NewBalance int64 `json:"newBalance"`
}

// OperatorAction authenticates a session-control request: the operator signs
// keccak256("<op>|<timestamp>") and the server recovers the caller from the
// signature. Stale timestamps are rejected.
type OperatorAction struct {
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"` // hex, 65 bytes
}

// StartSessionRequest is the POST /sessions payload.
type StartSessionRequest struct {
	OperatorAction
	Rates []int64 `json:"rates"`
}

// SealedField is one client-encrypted order field with its plaintext
// knowledge proof.
type SealedField struct {
	Blob  string `json:"blob"`  // hex ciphertext
	Width uint8  `json:"width"`
	Proof string `json:"proof"` // hex, 65 bytes
}

// SubmitOrderRequest is the POST /orders payload: three independently sealed
// fields plus an EIP-712 signature binding them to the trader.
type SubmitOrderRequest struct {
	Trader      string      `json:"trader"`
	Amount      SealedField `json:"amount"`
	TargetPrice SealedField `json:"targetPrice"`
	Instrument  SealedField `json:"instrument"`
	Nonce       uint64      `json:"nonce"`
	Deadline    int64       `json:"deadline"`
	Signature   string      `json:"signature"` // EIP-712, hex
}

// SubmitOrderResponse reports the order's stable index.
type SubmitOrderResponse struct {
	Status  string `json:"status"`
	Session uint32 `json:"session"`
	Index   int    `json:"index"`
}

// RevealRequest asks for a handle's plaintext. The caller signs
// keccak256("reveal|<handle>|<timestamp>"); the venue checks the recovered
// principal's grant.
type RevealRequest struct {
	Handle    uint64 `json:"handle"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// RevealResponse carries a revealed plaintext to its granted caller.
type RevealResponse struct {
	Handle uint64 `json:"handle"`
	Value  uint64 `json:"value"`
}

// SettleResponse summarizes a settlement sweep.
type SettleResponse struct {
	Session        uint32 `json:"session"`
	OrdersExecuted int    `json:"ordersExecuted"`
	Participants   int    `json:"participants"`
}

// WSSubscribeRequest is sent by a client to manage channel subscriptions.
// Channels: "events" (every committed event), "settlements" (order execution
// and session end only).
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
