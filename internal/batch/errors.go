package batch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAllFilesFailed is matched by AllFailedError.
	ErrAllFilesFailed = errors.New("all files failed")

	// ErrNoFiles is returned for an empty batch.
	ErrNoFiles = errors.New("no files submitted")
)

// FileFailure is one file that produced no payload.
type FileFailure struct {
	Filename string
	Err      error
}

// AllFailedError is returned when no file of a batch could be extracted.
// Persisted state is left untouched.
type AllFailedError struct {
	Failures []FileFailure
}

func (e *AllFailedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s (%v)", f.Filename, f.Err)
	}
	return fmt.Sprintf("%v: %s", ErrAllFilesFailed, strings.Join(parts, "; "))
}

// Is matches ErrAllFilesFailed.
func (e *AllFailedError) Is(target error) bool {
	return target == ErrAllFilesFailed
}

// Unwrap exposes the per-file errors.
func (e *AllFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// Filenames lists the failed files in submission order.
func (e *AllFailedError) Filenames() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Filename
	}
	return names
}
