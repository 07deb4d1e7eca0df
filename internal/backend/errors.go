package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel failure classes. Callers use errors.Is to distinguish a backend
// that answered with a server error from one that never answered in time.
var (
	ErrUnavailable = errors.New("backend unavailable")
	ErrTimeout     = errors.New("backend request timed out")
)

// statusError wraps a non-2xx HTTP response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error {
	if e.code >= 500 {
		return ErrUnavailable
	}
	return nil
}

// Transient reports whether an error is worth retrying: server-side failures
// and timeouts are; client errors and context cancellation are not.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// Classify maps an error onto the sentinel it most resembles, so user-facing
// messages can distinguish "unavailable" from "timed out" from anything else.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrUnavailable):
		return ErrUnavailable
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ErrTimeout
		}
		return err
	}
}
