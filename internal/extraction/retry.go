package extraction

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts is the total number of calls made for one file.
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the wait before the second attempt. It doubles
	// before every further attempt.
	DefaultInitialBackoff = time.Second
)

// RetryPolicy bounds the calls made to the extraction service for one file.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 3 attempts with a 1s backoff doubling each retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.InitialBackoff << (attempt - 1)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted.
func (p RetryPolicy) Do(ctx context.Context, op string, log zerolog.Logger, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		wait := p.Backoff(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", wait).
			Msg("Extraction call failed, retrying")

		if err := sleep(ctx, wait); err != nil {
			return NewExtractionError(op, ErrTransport, fmt.Sprintf("retry aborted: %v", err))
		}
	}

	e := NewExtractionError(op, ErrTransport, fmt.Sprintf("all %d attempts failed, last error: %v", maxAttempts, lastErr))
	e.Attempts = maxAttempts
	var last *ExtractionError
	if errors.As(lastErr, &last) {
		e.StatusCode = last.StatusCode
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transportError classifies an error raised before any HTTP status was seen.
// Cancellation is reported as is so the batch does not keep retrying.
func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	details := "network failure"
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		details = "network timeout"
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		details = "connection refused or reset"
	}
	return NewExtractionError(op, ErrTransport, fmt.Sprintf("%s: %v", details, err))
}
