package simap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// StatusError is returned for any non-2xx response from the SIMAP API.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("simap returned %d for %s", e.StatusCode, e.URL)
}

// Transient reports whether the response is worth retrying: rate limiting
// (429) and server-side errors (5xx). Other 4xx responses are permanent.
func (e *StatusError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsTransient classifies an error as retryable: transient HTTP statuses,
// network timeouts, and temporary transport failures. Context cancellation
// is never transient — the caller is shutting down.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Backoff is the pure retry-delay strategy: exponential doubling of base
// per attempt (attempt is 1-based, so attempt 1 waits base, attempt 2
// waits 2×base, …).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// Retry invokes op up to attempts times, sleeping Backoff(base, n) between
// tries. It stops early on success, on a non-transient error, or when ctx
// is done. The last error is returned.
func Retry(ctx context.Context, attempts int, base time.Duration, op func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(Backoff(base, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
