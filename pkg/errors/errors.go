// Package errors defines the error taxonomy of the analysis library. Every
// failure carries one ErrorType so callers branch on the category instead of
// matching message text.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies a failure.
type ErrorType string

// The taxonomy. Table operations return Schema, Precondition, NotFound,
// Conflict or Validation; ingestion and export return Data, File or Config;
// Internal marks bugs and canceled work.
const (
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeSchema       ErrorType = "schema"
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeData         ErrorType = "data"
	ErrorTypeFile         ErrorType = "file"
	ErrorTypeConfig       ErrorType = "config"
)

// Error is a classified error, optionally wrapping a cause and carrying
// free-form diagnostic details.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error renders as "type: message" with the cause chain appended.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap makes Error transparent to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a named value for diagnostics and returns e.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// New creates a classified error.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap classifies err under t with added context. A nil err wraps to nil so
// call sites can wrap unconditionally.
func Wrap(err error, t ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(t, message)
	e.Cause = err
	return e
}

// Wrapf classifies err under t with a formatted message.
func Wrapf(err error, t ErrorType, format string, args ...interface{}) *Error {
	return Wrap(err, t, fmt.Sprintf(format, args...))
}

// IsType reports whether the outermost classified error in err's chain has
// type t. Rewrapping an error therefore decides how callers see it.
func IsType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// IsSchema reports whether err names a column missing from a schema.
func IsSchema(err error) bool { return IsType(err, ErrorTypeSchema) }

// IsPrecondition reports whether err names an input ordering violation.
func IsPrecondition(err error) bool { return IsType(err, ErrorTypePrecondition) }

// IsNotFound reports whether err names a key that was never observed.
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsValidation reports whether err names a bad argument.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsConflict reports whether err names a merged-schema name collision.
func IsConflict(err error) bool { return IsType(err, ErrorTypeConflict) }
