package inventory

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error kinds §7 defines. Callers should
// use errors.As to recover a *Error and branch on Kind, the same way the
// teacher's db/services layer wraps errors with fmt.Errorf("...: %w") for
// context while letting callers unwrap to the underlying sentinel.
type Kind string

const (
	KindNotFound             Kind = "NotFound"
	KindInvalidProduction    Kind = "InvalidProduction"
	KindInvalidCut           Kind = "InvalidCut"
	KindInvalidSplit         Kind = "InvalidSplit"
	KindInvalidDispatch      Kind = "InvalidDispatch"
	KindInvalidReturn        Kind = "InvalidReturn"
	KindInvalidScrap         Kind = "InvalidScrap"
	KindDuplicateBatchCode   Kind = "DuplicateBatchCode"
	KindDuplicateCustomer    Kind = "DuplicateCustomer"
	KindInsufficientPieces   Kind = "InsufficientPieces"
	KindPiecesLocked         Kind = "PiecesLocked"
	KindConcurrent           Kind = "Concurrent"
	KindMixedScrapForbidden  Kind = "MixedScrapForbidden"
	KindAlreadyReverted      Kind = "AlreadyReverted"
	KindCannotRevert         Kind = "CannotRevert"
)

// Error is the structured error every Operation returns on failure. Item
// is set for multi-item operations (Dispatch, Return, Scrap) to identify
// the offending item index per §7.
type Error struct {
	Kind    Kind
	Message string
	Item    *int
	err     error
}

func (e *Error) Error() string {
	if e.Item != nil {
		return fmt.Sprintf("%s: %s (item %d)", e.Kind, e.Message, *e.Item)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// New builds a Kind-tagged error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a Kind-tagged error that preserves the underlying cause for
// errors.Is/As chains (e.g. a driver-level unique-violation).
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), err: cause}
}

// AtItem attaches the failing item index to a multi-item operation error.
func AtItem(kind Kind, index int, format string, args ...any) *Error {
	i := index
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Item: &i}
}

// KindOf extracts the Kind from err, or "" if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether err is one of the explicitly retry-safe kinds
// (§7: "PiecesLocked, Concurrent ... must not log as fatal").
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindPiecesLocked, KindConcurrent:
		return true
	default:
		return false
	}
}
