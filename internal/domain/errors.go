package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures into user-facing categories
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindStorage         ErrorKind = "storage"
	KindEngineExecution ErrorKind = "engine_execution"
	KindIntegrity       ErrorKind = "integrity"
	KindMissingOutput   ErrorKind = "missing_output"
	KindChart           ErrorKind = "chart"
	KindConfiguration   ErrorKind = "configuration"
	KindDelivery        ErrorKind = "delivery"
	KindSchema          ErrorKind = "schema"
	KindProvider        ErrorKind = "provider"
	KindInternal        ErrorKind = "internal"
)

// Sentinels for errors.Is checks against a category.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrStorage         = &Error{Kind: KindStorage}
	ErrEngineExecution = &Error{Kind: KindEngineExecution}
	ErrIntegrity       = &Error{Kind: KindIntegrity}
	ErrMissingOutput   = &Error{Kind: KindMissingOutput}
	ErrChart           = &Error{Kind: KindChart}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrDelivery        = &Error{Kind: KindDelivery}
	ErrSchema          = &Error{Kind: KindSchema}
	ErrProvider        = &Error{Kind: KindProvider}
)

// Error is a categorized failure.
// Op names the operation that failed (e.g. "storage.upload"), Message is
// safe to show to the requester, Err is the underlying cause if any.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// NewError creates a categorized error
func NewError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Errorf creates a categorized error with a formatted message and no cause
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrStorage) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the category of the outermost *Error in the chain, or
// KindInternal for uncategorized errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the requester-facing message of a categorized error,
// falling back to err.Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	return err.Error()
}
