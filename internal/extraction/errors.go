package extraction

import (
	"errors"
	"fmt"
)

// Extraction error taxonomy. Every error returned by this package matches
// exactly one of these with errors.Is.
var (
	// ErrUnsupportedFormat is returned before any network call when the media
	// type of a file is not an image, a PDF or a spreadsheet.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrTransport is returned for network failures and 5xx responses. These
	// are retried; after the last attempt the error is terminal for the file.
	ErrTransport = errors.New("extraction service unavailable")

	// ErrClient is returned for 4xx responses. Never retried.
	ErrClient = errors.New("extraction service rejected the request")

	// ErrMalformedResponse is returned when the service answered successfully
	// but the payload text is missing or is not valid JSON.
	ErrMalformedResponse = errors.New("malformed extraction response")

	// ErrMissingCredentials is returned when a provider is built without an API key.
	ErrMissingCredentials = errors.New("missing extraction service credentials")
)

// ExtractionError wraps errors with the operation and file they belong to.
type ExtractionError struct {
	// Op is the operation that failed (e.g., "Extract", "GenerateContent").
	Op string

	// Err is the underlying taxonomy error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// StatusCode is the HTTP status returned by the service, if any.
	StatusCode int

	// Attempts is how many calls were made before giving up.
	Attempts int
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction: %s failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %v", msg, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(op string, err error, details string) *ExtractionError {
	return &ExtractionError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapExtractionError wraps err unless it already is an ExtractionError.
func WrapExtractionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return err
	}

	return NewExtractionError(op, err, details)
}

// statusError classifies an HTTP status from the extraction service.
func statusError(op string, status int, details string) *ExtractionError {
	e := NewExtractionError(op, ErrTransport, details)
	if status >= 400 && status < 500 {
		e.Err = ErrClient
	}
	e.StatusCode = status
	return e
}

// IsRetryable reports whether err should be retried by the retry policy.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}
