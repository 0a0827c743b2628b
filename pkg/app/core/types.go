package core

// Instrument tags a currency pair by its index into the venue's configured
// pair list. Tags are validated at the operation boundary; out-of-range tags
// are rejected, never wrapped.
type Instrument uint8

// Timestamp is Unix seconds from the externally supplied clock. Session
// windows are pure data compared against it; the core never runs timers.
type Timestamp = int64
