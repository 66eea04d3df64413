package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures crossing the store and advisor boundaries.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindRemote     Kind = "remote"
	KindTimeout    Kind = "timeout"
	KindAdvisor    Kind = "advisor"
	KindFormat     Kind = "format"
	KindSession    Kind = "session"
)

var (
	ErrCategoryInUse     = errors.New("category is used by existing expenses")
	ErrDuplicateCategory = errors.New("category name already exists")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrUnknownExpense    = errors.New("unknown expense")
	ErrUnknownGoal       = errors.New("unknown goal")
	ErrSessionClosed     = errors.New("session is no longer current")
	ErrMalformedResponse = errors.New("malformed advisor response")
)

// Error is the typed failure returned by store mutations and collaborators.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op string, err error) error { return newError(KindValidation, op, err) }
func Conflict(op string, err error) error   { return newError(KindConflict, op, err) }
func NotFound(op string, err error) error   { return newError(KindNotFound, op, err) }
func Advisor(op string, err error) error    { return newError(KindAdvisor, op, err) }
func Format(op string, err error) error     { return newError(KindFormat, op, err) }
func Session(op string) error               { return newError(KindSession, op, ErrSessionClosed) }

// Remote wraps a storage collaborator failure. Deadline overruns are reported
// as KindTimeout.
func Remote(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, op, err)
	}
	return newError(KindRemote, op, err)
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
