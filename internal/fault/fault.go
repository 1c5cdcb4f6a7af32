// Package fault classifies every error that can cross a subsystem
// boundary into one of the five kinds the dispatcher and transports
// need to distinguish: protocol, validation, transient, hard, and
// auth failures.
package fault

import "github.com/pkg/errors"

type Kind int

const (
	Protocol Kind = iota
	Validation
	Transient
	Hard
	Auth
)

func (k Kind) String() string {
	switch k {
	case Protocol:
		return "protocol"
	case Validation:
		return "validation"
	case Transient:
		return "transient"
	case Hard:
		return "hard"
	case Auth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a classification kind.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Kind() Kind { return e.kind }

func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, msg: errors.Errorf(format, args...).Error()}
}

func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, cause: errors.WithStack(cause)}
}

func Wrapf(kind Kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	return &Error{kind: kind, msg: errors.WithStack(errors.Errorf(format, args...)).Error(), cause: cause}
}

// KindOf extracts the classification of err, defaulting to Hard when
// err was never wrapped by this package — an unclassified error is
// treated as a programming-invariant violation.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return Hard
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
