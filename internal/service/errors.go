package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrorKind is the stable classification surfaced to callers.
type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION_ERROR"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindInvalidState        ErrorKind = "INVALID_STATE"
	KindInsufficientStock   ErrorKind = "INSUFFICIENT_STOCK"
	KindCapacityExceeded    ErrorKind = "CAPACITY_EXCEEDED"
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
	KindUnavailable         ErrorKind = "UNAVAILABLE"
)

// Kind sentinels, matched with errors.Is against any *Error of the same kind.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrUnavailable         = errors.New("service unavailable")
)

var kindSentinels = map[ErrorKind]error{
	KindValidation:          ErrValidation,
	KindNotFound:            ErrNotFound,
	KindInvalidState:        ErrInvalidState,
	KindInsufficientStock:   ErrInsufficientStock,
	KindCapacityExceeded:    ErrCapacityExceeded,
	KindConcurrencyConflict: ErrConcurrencyConflict,
	KindUnavailable:         ErrUnavailable,
}

// Specific codes carried next to the kind.
const (
	CodeInvalidQuantity        = "INVALID_QUANTITY"
	CodePickingAlreadyExists   = "PICKING_ALREADY_EXISTS"
	CodeNothingPicked          = "NOTHING_PICKED"
	CodeNoHoldingStock         = "NO_HOLDING_STOCK"
	CodeInvalidHoldingLocation = "INVALID_HOLDING_LOCATION"
	CodeLocationInactive       = "LOCATION_INACTIVE"
	CodeLocationNotEmpty       = "LOCATION_NOT_EMPTY"
)

// Error is the typed result of every failed business operation.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel so callers can write errors.Is(err, ErrInsufficientStock).
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newError(kind ErrorKind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) *Error {
	return newError(KindValidation, "", format, args...)
}

func notFound(entity string) *Error {
	return newError(KindNotFound, "", "%s not found", entity)
}

func invalidState(format string, args ...interface{}) *Error {
	return newError(KindInvalidState, "", format, args...)
}

// KindOf classifies err; anything unrecognised is an infrastructure failure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnavailable
}

// Postgres SQLSTATEs that mean the transaction lost a race and may be retried.
var conflictStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// translateDBError maps persistence failures onto the error taxonomy.
// entity names the row being looked up, for NOT_FOUND messages.
func translateDBError(entity string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(entity)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &Error{Kind: KindConcurrencyConflict, Message: "concurrent write on " + entity, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && conflictStates[pgErr.Code] {
		return &Error{Kind: KindConcurrencyConflict, Message: "concurrent update on " + entity, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUnavailable, Message: "request cancelled", Err: err}
	}
	return &Error{Kind: KindUnavailable, Message: "storage failure on " + entity, Err: err}
}
