package stratum

import "errors"

// ErrChannelClosed is returned when enqueueing to a closed uploader queue.
var ErrChannelClosed = errors.New("stratum: uploader channel closed")

// StoreError wraps any I/O or RPC failure from the state store, object
// store, or meta client (§7).
type StoreError struct{ Err error }

func (e *StoreError) Error() string { return "stratum: store error: " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// DataIntegrityError marks a fatal, operator-level data integrity violation:
// a cell count not a multiple of schema length, or a row deserialization
// failure (§7).
type DataIntegrityError struct{ Msg string }

func (e *DataIntegrityError) Error() string { return "stratum: data integrity: " + e.Msg }

// UsageError marks a debug-only assertion violation: pop_top_element on an
// empty state, delete of an absent key, and similar caller-contract breaches
// (§7).
type UsageError struct{ Msg string }

func (e *UsageError) Error() string { return "stratum: usage: " + e.Msg }
