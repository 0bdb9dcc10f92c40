package middleware

import (
	"net/http"

	"github.com/benvon/scam-hunter/internal/ratelimit"
)

// RateLimitGuard checks l for every request. Rate limit headers are set whether or not
// the request is allowed; denied requests are answered with 429.
func RateLimitGuard(l *ratelimit.Limiter) Guard {
	return func(w http.ResponseWriter, r *http.Request) *Block {
		res := l.Check(r.Context(), r)
		ratelimit.SetHeaders(w.Header(), res)
		if res.Allowed {
			return nil
		}
		return &Block{Status: http.StatusTooManyRequests, Body: ratelimit.Denied(res)}
	}
}
