package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEventType is returned when no handler is registered for an event.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrUnsupportedVersion is returned for a registered type with an unknown version.
	ErrUnsupportedVersion = errors.New("unsupported event version")
	// ErrMissingResult indicates the procedure result lacked the expected field.
	ErrMissingResult = errors.New("missing procedure result")
	// ErrTierNotCached means a tier was missing from the cache right after its upsert.
	ErrTierNotCached = errors.New("liquidity tier not cached")
)

// Decode stages.
const (
	StagePayload = "payload"
	StageResult  = "result"
)

// DecodeError reports a malformed event payload or an incompatible procedure
// result. It is fatal for the event and must not be retried blindly.
type DecodeError struct {
	EventType  string
	TxID       string
	EventIndex uint32
	Stage      string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s %s (tx %s, index %d): %v", e.EventType, e.Stage, e.TxID, e.EventIndex, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PersistenceError reports a failed procedure call. Retrying is up to the caller.
type PersistenceError struct {
	EventType  string
	TxID       string
	EventIndex uint32
	Procedure  string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s via %s (tx %s, index %d): %v", e.EventType, e.Procedure, e.TxID, e.EventIndex, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRetryable reports whether err may succeed when the block is redelivered.
func IsRetryable(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr)
}
