package middleware

import (
	"net/http"
	"time"
)

const (
	// DefaultRequestTimeout leaves room for a model call plus storage writes
	DefaultRequestTimeout = 60 * time.Second
)

// Timeout answers 503 when a handler runs longer than timeout. The handler's context is
// cancelled at the deadline.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"success":false,"error":"Service Unavailable","message":"Request timed out"}`)
	}
}
