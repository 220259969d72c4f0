package feedback

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindInput      Kind = "input"
	KindGeneration Kind = "generation"
	KindValidation Kind = "validation"
	KindPersist    Kind = "persist"
)

// Error is a classified pipeline failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: KindInput}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// KindOf returns the kind of a classified error or an empty string.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func inputError(msg string) *Error {
	return &Error{Kind: KindInput, Msg: msg}
}

func generationError(msg string, err error) *Error {
	return &Error{Kind: KindGeneration, Msg: msg, Err: err}
}

func validationError(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Err: err}
}

func persistError(msg string, err error) *Error {
	return &Error{Kind: KindPersist, Msg: msg, Err: err}
}
