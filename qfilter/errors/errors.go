// Package errors defines the error kinds returned while building and
// executing filter documents.
package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorKind string

const (
	ErrParse      ErrorKind = "parse"
	ErrOperator   ErrorKind = "operator"
	ErrValueParse ErrorKind = "value_parse"

	ErrIO          ErrorKind = "io"
	ErrSQL         ErrorKind = "sql"
	ErrNotFound    ErrorKind = "not_found"
	ErrUnsupported ErrorKind = "unsupported"
	ErrCursor      ErrorKind = "cursor"
	ErrDocument    ErrorKind = "document"
)

// ErrFilter is the base of every *Error; errors.Is(err, ErrFilter) holds for
// all kinds.
var ErrFilter = stderrors.New("qfilter")

type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	// Pos is the byte offset into the binding expression for parse errors,
	// -1 otherwise.
	Pos   int
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Pos >= 0 {
		base = fmt.Sprintf("%s (pos=%d)", base, e.Pos)
	}
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	return target == ErrFilter
}

func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Pos: -1}
}

func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Pos: -1, Cause: cause}
}

func ParseError(msg string, pos int) *Error {
	return &Error{Kind: ErrParse, Message: msg, Pos: pos}
}

func OperatorError(msg, field string) *Error {
	return &Error{Kind: ErrOperator, Message: msg, Field: field, Pos: -1}
}

func ValueParseError(raw string, cause error) *Error {
	return &Error{Kind: ErrValueParse, Message: fmt.Sprintf("failed to parse value '%s'", raw), Pos: -1, Cause: cause}
}

func UnsupportedError(msg, field string) *Error {
	return &Error{Kind: ErrUnsupported, Message: msg, Field: field, Pos: -1}
}

func NotFoundError(id string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("document not found: %s", id), Pos: -1}
}

func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsClient reports whether err was caused by the caller's input rather than
// by the backend.
func IsClient(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case ErrParse, ErrOperator, ErrValueParse, ErrUnsupported, ErrCursor, ErrDocument:
		return true
	}
	return false
}
