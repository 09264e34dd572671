// Package dberr defines the error kinds shared by the storage engines and the
// path-based data access layer.
package dberr

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrValidation is returned for bad arguments: empty paths, nil values,
	// non-finite amounts, out-of-range indexes, type mismatches at a path.
	ErrValidation = errors.New("validation failed")

	// ErrStorageUnavailable is returned when the backing store cannot be
	// reached or read. It is the only kind retried at start-up.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotConnected is returned by the document engine before Connect
	// succeeded. It also matches ErrStorageUnavailable.
	ErrNotConnected = fmt.Errorf("%w: not connected", ErrStorageUnavailable)

	// ErrMisconfigured is returned when required connection settings are missing.
	ErrMisconfigured = errors.New("storage misconfigured")

	// ErrMalformedStorage is returned when stored content does not parse or
	// does not have the expected document shape.
	ErrMalformedStorage = errors.New("malformed storage")
)

// Error carries the kind of a failure together with the operation, the
// offending path or key, and the underlying cause.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" at %q", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation builds an ErrValidation error.
func Validation(op, path, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// Unavailable builds an ErrStorageUnavailable error wrapping cause.
func Unavailable(op string, cause error) error {
	return &Error{Kind: ErrStorageUnavailable, Op: op, Err: cause}
}

// Malformed builds an ErrMalformedStorage error for the given key.
func Malformed(op, key string, cause error) error {
	return &Error{Kind: ErrMalformedStorage, Op: op, Path: key, Err: cause}
}

// IsRetryable reports whether err is worth retrying during start-up.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) && !errors.Is(err, ErrMisconfigured)
}
