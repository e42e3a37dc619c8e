package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindRead
	KindSchemaConflict
	KindWrite
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindRead:
		return "ReadError"
	case KindSchemaConflict:
		return "SchemaConflictError"
	case KindWrite:
		return "WriteError"
	case KindCancelled:
		return "Cancelled"
	default:
		return "UnknownError"
	}
}

// Error is a classified error with a user-facing message.
type Error struct {
	err    error
	msg    string
	kind   Kind
	fields []string
}

// Error implements the error interface. It prefers the message and appends
// the underlying cause when one is present.
func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	default:
		return e.kind.String()
	}
}

// String returns a verbose representation for logs.
func (e *Error) String() string {
	return fmt.Sprintf("Kind: %s, Message: %s, Fields: %v, Underlying Error: %v",
		e.kind, e.msg, e.fields, e.err)
}

// Msg returns the user-facing message.
func (e *Error) Msg() string {
	if e.msg == "" {
		return e.kind.String()
	}
	return e.msg
}

// Kind returns the classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// Fields returns field-level details, if any.
func (e *Error) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

func newError(err error, msg string, kind Kind) *Error {
	return &Error{err: err, msg: msg, kind: kind}
}

// NewValidation returns a ValidationError. err may be nil.
func NewValidation(msg string, err error) error {
	return newError(err, msg, KindValidation)
}

// NewFieldValidation returns a ValidationError that lists every offending field.
func NewFieldValidation(msg string, fields []string) error {
	e := newError(nil, msg, KindValidation)
	e.fields = append([]string(nil), fields...)
	return e
}

// NewRead returns a ReadError.
func NewRead(msg string, err error) error {
	return newError(err, msg, KindRead)
}

// NewSchemaConflict returns a SchemaConflictError.
func NewSchemaConflict(msg string) error {
	return newError(nil, msg, KindSchemaConflict)
}

// NewWrite returns a WriteError.
func NewWrite(msg string, err error) error {
	return newError(err, msg, KindWrite)
}

// NewCancelled returns a cancellation error wrapping the context error.
func NewCancelled(err error) error {
	return newError(err, "run cancelled", KindCancelled)
}

// NewUnknown wraps an unclassified error with context.
func NewUnknown(context string, err error) error {
	return newError(err, context, KindUnknown)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Message returns the user-facing message of err. Unclassified errors get a
// generic message so that internal detail is not shown to users.
func Message(err error) string {
	if e, ok := As(err); ok {
		return e.Msg()
	}
	return "unexpected error"
}
