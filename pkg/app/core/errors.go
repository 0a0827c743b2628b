package core

import "errors"

// Operation rejections. Every precondition is checked before any mutation;
// a failed operation has no observable effect. Callers discriminate with
// errors.Is; messages never carry sensitive plaintext.
var (
	ErrAlreadyRegistered = errors.New("trader already registered")
	ErrNotRegistered     = errors.New("trader not registered")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidInstrument = errors.New("instrument out of range")
	ErrNotOperator       = errors.New("caller is not the venue operator")
	ErrSessionActive     = errors.New("a session is already active")
	ErrSessionNotLive    = errors.New("no live trading session")
	ErrTooEarly          = errors.New("too early")
	ErrNoActiveSession   = errors.New("no active session")
	ErrProofInvalid      = errors.New("plaintext knowledge proof invalid")
	ErrPermissionDenied  = errors.New("permission denied")
)
