package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotConfigured = errors.New("remote store not configured")
	ErrUnavailable   = errors.New("remote store unavailable")
	ErrRejected      = errors.New("remote store rejected the request")
	ErrNotFound      = errors.New("remote record not found")

	// ErrBadResponse reports a successful status with a body that cannot be
	// decoded. The write may have been committed, so it is not retried.
	ErrBadResponse = errors.New("remote store sent an undecodable response")
)

// mapStatus converts a non-2xx response into a sentinel-wrapped error.
func mapStatus(code int, msg string) error {
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, code, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, code, msg)
	}
}

// mapTransport converts a transport failure. Caller cancellation is kept
// as is so it is not mistaken for an outage.
func mapTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
