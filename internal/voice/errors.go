package voice

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures so callers can pick a distinct message
// for each one.
type Kind int

const (
	KindUnknown Kind = iota
	KindDevice
	KindInvalidState
	KindEncoding
	KindService
	KindEmptyResult
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindInvalidState:
		return "invalid_state"
	case KindEncoding:
		return "encoding"
	case KindService:
		return "service"
	case KindEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

// Error is a classified pipeline failure. Err keeps the underlying cause for
// diagnostics.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrDevice       = &Error{Kind: KindDevice}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrEncoding     = &Error{Kind: KindEncoding}
	ErrService      = &Error{Kind: KindService}
	ErrEmptyResult  = &Error{Kind: KindEmptyResult}
)

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
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

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a classified error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return KindUnknown
}
