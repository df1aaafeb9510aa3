package feed

import (
	"errors"
	"fmt"
)

// Kind classifies a feed failure.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindTransport    Kind = "transport"
	KindDecode       Kind = "decode"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrTransport    = errors.New("transport failure")
	ErrDecode       = errors.New("malformed upstream payload")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindNotFound:
		return ErrNotFound
	case KindTransport:
		return ErrTransport
	case KindDecode:
		return ErrDecode
	}
	return nil
}

// Error is a classified feed failure.
type Error struct {
	Kind   Kind
	Op     string // e.g. "lookup stop", "list realtime/siri"
	Status int    // HTTP status when the upstream answered
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.sentinel().Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the kind of err, or "" when err is not a feed error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func invalidInput(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

func notFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

func transport(op string, status int, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Status: status, Err: err}
}

func decode(op string, err error) *Error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}

// NewError builds a classified error for sources living outside this package.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
