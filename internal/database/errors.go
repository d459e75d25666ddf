package database

import (
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
)

// ErrClosed reports that a handle is unknown or the database behind it has
// already been closed. It is a distinct condition from a SQL failure and is
// never retried.
var ErrClosed = errors.New("database is closed")

// Error is a native engine failure: bind mismatch, syntax error, constraint
// violation, I/O failure. Code is the SQLite result code when the driver
// exposes one. SQL and Params carry the offending statement for diagnostics
// on statement-shaped operations.
type Error struct {
	Code    int
	Message string
	SQL     string
	Params  []Value
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return e.Message
}

// OpenError is a failed native open: bad path, permission denied, corrupt
// file. The path is carried for context.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open failed for %q: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// wrapError normalizes a driver failure into *Error, attaching the statement
// context and extracting the native result code when present. ErrClosed and
// already-wrapped errors pass through untouched.
func wrapError(err error, sqlText string, params []Value) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrClosed) {
		return err
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	e := &Error{Message: err.Error(), SQL: sqlText, Params: params}
	var se *sqlite.Error
	if errors.As(err, &se) {
		e.Code = se.Code()
		e.Message = se.Error()
	}
	return e
}

// AsError extracts the *Error from err, synthesizing one when a different
// failure (for example a canceled context) reached a statement operation.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Message: err.Error()}
}
