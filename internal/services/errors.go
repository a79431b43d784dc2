package services

import (
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies a service failure so callers can react without parsing
// messages.
type Kind string

const (
	KindNotFound                 Kind = "NOT_FOUND"
	KindPermissionDenied         Kind = "PERMISSION_DENIED"
	KindInvalidState             Kind = "INVALID_STATE"
	KindInvalidTransition        Kind = "INVALID_TRANSITION"
	KindCapacityExceeded         Kind = "CAPACITY_EXCEEDED"
	KindInsufficientParticipants Kind = "INSUFFICIENT_PARTICIPANTS"
	KindConflict                 Kind = "CONFLICT"
	KindPersistence              Kind = "PERSISTENCE_ERROR"
	KindInvalidInput             Kind = "INVALID_INPUT"
	KindUnauthenticated          Kind = "UNAUTHENTICATED"
)

// Error is returned by every public service operation
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient
func (e *Error) Retryable() bool {
	return e.Kind == KindPersistence
}

func newError(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// storeError translates a repository error into a service error
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		return &Error{Kind: KindNotFound, Op: op, Err: err}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &Error{Kind: KindConflict, Op: op, Err: err}
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf extracts the kind of err, or "" when err is not a service error
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ""
}

// IsKind reports whether err is a service error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
