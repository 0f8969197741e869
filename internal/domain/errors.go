package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure that leaves the dispatch core.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindAlreadyAssigned    ErrorKind = "already_assigned"
	KindInvalidTransition  ErrorKind = "invalid_transition"
	KindLocationUnresolved ErrorKind = "location_unresolved"
	KindCourierUnavailable ErrorKind = "courier_unavailable"
	KindCourierRejected    ErrorKind = "courier_rejected"
	KindPartialReversal    ErrorKind = "partial_reversal"
	KindInvalidInput       ErrorKind = "invalid_input"
	KindConflict           ErrorKind = "conflict"
	KindMethodDisabled     ErrorKind = "method_disabled"
	KindInternal           ErrorKind = "internal"
)

// DispatchError is the structured error returned by usecases.
// Two DispatchErrors match under errors.Is when their kinds are equal.
type DispatchError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewError(kind ErrorKind, message string, cause error) *DispatchError {
	return &DispatchError{Kind: kind, Message: message, Err: cause}
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func (e *DispatchError) Is(target error) bool {
	var t *DispatchError
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Retryable reports whether the operation may be retried unchanged.
func (e *DispatchError) Retryable() bool {
	return e.Kind == KindCourierUnavailable
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound           = &DispatchError{Kind: KindNotFound, Message: "not found"}
	ErrAlreadyAssigned    = &DispatchError{Kind: KindAlreadyAssigned, Message: "order already assigned"}
	ErrInvalidTransition  = &DispatchError{Kind: KindInvalidTransition, Message: "transition not allowed"}
	ErrLocationUnresolved = &DispatchError{Kind: KindLocationUnresolved, Message: "location unresolved"}
	ErrCourierUnavailable = &DispatchError{Kind: KindCourierUnavailable, Message: "courier unavailable"}
	ErrCourierRejected    = &DispatchError{Kind: KindCourierRejected, Message: "courier rejected request"}
	ErrPartialReversal    = &DispatchError{Kind: KindPartialReversal, Message: "partial reversal"}
	ErrInvalidInput       = &DispatchError{Kind: KindInvalidInput, Message: "invalid input"}
	ErrStaleRevision      = &DispatchError{Kind: KindConflict, Message: "order was modified concurrently"}
	ErrMethodDisabled     = &DispatchError{Kind: KindMethodDisabled, Message: "method disabled"}
)

// ErrConsignmentPickedUp is reported by a courier gateway when a consignment
// can no longer be cancelled remotely.
var ErrConsignmentPickedUp = errors.New("consignment already picked up")

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// OperatorMessage is the actionable text shown in the admin UI for a kind.
func OperatorMessage(kind ErrorKind) string {
	switch kind {
	case KindNotFound:
		return "order or rider not found"
	case KindAlreadyAssigned:
		return "already dispatched"
	case KindInvalidTransition:
		return "this change is not allowed for the order's current state"
	case KindLocationUnresolved:
		return "address not recognized, please select city, zone and area manually"
	case KindCourierUnavailable:
		return "courier temporarily unavailable, try again"
	case KindCourierRejected:
		return "courier rejected the request, please correct the details"
	case KindPartialReversal:
		return "assignment cleared locally, contact the courier to stop the parcel"
	case KindInvalidInput:
		return "invalid request"
	case KindConflict:
		return "order changed while saving, reload and try again"
	case KindMethodDisabled:
		return "this method is currently disabled"
	default:
		return "internal error"
	}
}
