package store

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistenceWrite is returned when a dataset could not be committed.
	// Nothing was written; the caller may resubmit.
	ErrPersistenceWrite = errors.New("failed to write dataset")

	// ErrPersistenceRead is returned when the stored dataset could not be loaded.
	ErrPersistenceRead = errors.New("failed to read dataset")

	// ErrSubscribe is returned or reported when a change subscription fails.
	ErrSubscribe = errors.New("dataset subscription failed")

	// ErrInvalidUserKey is returned for empty user keys or keys containing '/'.
	ErrInvalidUserKey = errors.New("invalid user key")
)

// GatewayError ties a taxonomy error to the document and the cause.
type GatewayError struct {
	// Op is the operation that failed (e.g., "Write", "Subscribe").
	Op string

	// Path is the document path.
	Path string

	// Kind is one of the package sentinels.
	Kind error

	// Err is the backend error.
	Err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("store: %s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the taxonomy error and the backend error.
func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewGatewayError creates a new GatewayError.
func NewGatewayError(op, path string, kind, err error) *GatewayError {
	return &GatewayError{
		Op:   op,
		Path: path,
		Kind: kind,
		Err:  err,
	}
}

// IsWriteError reports whether err is a failed commit.
func IsWriteError(err error) bool {
	return errors.Is(err, ErrPersistenceWrite)
}
