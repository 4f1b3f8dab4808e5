package tablekit

import (
	"errors"
	"fmt"
)

// Sentinel targets for errors.Is. Operations never return these directly;
// they return *Error values whose Kind matches one of them.
var (
	// ErrInvalidArgument marks malformed caller input: a column not present in
	// the schema, a non-positive row identifier, an unsupported alter action.
	ErrInvalidArgument = errors.New("tablekit: invalid argument")

	// ErrDatabase marks an executor failure, or a zero-effect result on a
	// write that was expected to produce a row.
	ErrDatabase = errors.New("tablekit: database error")
)

// Kind tags an Error with its failure class.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindDatabase
)

// Error is the tagged failure returned by every public operation. Callers
// branch on the class with errors.Is(err, ErrInvalidArgument) or
// errors.Is(err, ErrDatabase); the underlying cause (if any) is reachable
// through errors.Unwrap.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "get_by"
	Message string
	Err     error // underlying cause; may be nil for validation failures
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("tablekit: %s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("tablekit: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("tablekit: %s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	case ErrDatabase:
		return e.Kind == KindDatabase
	}
	return false
}

func invalidArgf(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Message: fmt.Sprintf(format, args...)}
}

func dbErr(op string, err error) *Error {
	return &Error{Kind: KindDatabase, Op: op, Err: err}
}

func dbErrf(op, format string, args ...any) *Error {
	return &Error{Kind: KindDatabase, Op: op, Message: fmt.Sprintf(format, args...)}
}
