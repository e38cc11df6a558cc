// Package ferr defines the error taxonomy shared across the store,
// the forge adapters, the sync engine and the write path (see
// SPEC_FULL.md §9). Callers use errors.Is against the sentinel and
// errors.As against Error to recover the kind and any attached
// binding/op context for --json error rendering.
package ferr

import (
	"errors"
	"fmt"
)

// Kind is one bucket of the error taxonomy.
type Kind string

const (
	Connectivity    Kind = "connectivity"
	Authentication  Kind = "authentication"
	RateLimit       Kind = "rate_limit"
	Conflict        Kind = "conflict"
	PayloadRejected Kind = "payload_rejected"
	NotFound        Kind = "not_found"
	StoreBusy       Kind = "store_busy"
	StoreCorrupt    Kind = "store_corrupt"
	Protocol        Kind = "protocol"
)

// sentinel per kind, so callers can `errors.Is(err, ferr.ErrNotFound)`
// without unwrapping an Error first.
var (
	ErrConnectivity    = errors.New("connectivity error")
	ErrAuthentication  = errors.New("authentication error")
	ErrRateLimit       = errors.New("rate limited")
	ErrConflict        = errors.New("remote conflict")
	ErrPayloadRejected = errors.New("payload rejected")
	ErrNotFound        = errors.New("not found")
	ErrStoreBusy       = errors.New("store busy")
	ErrStoreCorrupt    = errors.New("store corrupt")
	ErrProtocol        = errors.New("protocol error")
)

var sentinels = map[Kind]error{
	Connectivity:    ErrConnectivity,
	Authentication:  ErrAuthentication,
	RateLimit:       ErrRateLimit,
	Conflict:        ErrConflict,
	PayloadRejected: ErrPayloadRejected,
	NotFound:        ErrNotFound,
	StoreBusy:       ErrStoreBusy,
	StoreCorrupt:    ErrStoreCorrupt,
	Protocol:        ErrProtocol,
}

// Error carries a kind plus optional binding/op context for --json
// error responses ({kind, message, binding?, op_id?}).
type Error struct {
	Kind      Kind
	Message   string
	Binding   string
	OpID      int64
	Remedy    string
	Wrapped   error
}

func (e *Error) Error() string {
	if e.Remedy != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Remedy)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e.Wrapped != nil {
		return e.Wrapped
	}
	return sentinels[e.Kind]
}

// Is matches the sentinel for e's Kind, so errors.Is(err, ErrX) holds
// even when Wrapped carries an unrelated underlying error.
func (e *Error) Is(target error) bool {
	return target == sentinels[e.Kind]
}

// New builds a taxonomy error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind to an underlying error, preserving it for
// errors.As/errors.Unwrap chains.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Wrapped: err}
}

// WithRemedy attaches a short human-readable remedy string, rendered
// after the message in CLI output.
func (e *Error) WithRemedy(remedy string) *Error {
	e.Remedy = remedy
	return e
}

// WithBinding attaches the binding identity this error concerns.
func (e *Error) WithBinding(bindingID string) *Error {
	e.Binding = bindingID
	return e
}

// WithOpID attaches the pending-op id this error concerns.
func (e *Error) WithOpID(id int64) *Error {
	e.OpID = id
	return e
}

// Retryable reports whether the daemon should absorb and retry this
// error internally rather than surface it (§7 propagation policy).
func Retryable(err error) bool {
	return errors.Is(err, ErrConnectivity) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrStoreBusy)
}

// KindOf extracts the Kind from err, if it (or something it wraps) is
// a *Error or one of the package sentinels.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	for k, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return k, true
		}
	}
	return "", false
}
