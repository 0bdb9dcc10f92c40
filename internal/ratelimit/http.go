package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// DeniedResponse is the JSON body of a 429 answer
type DeniedResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
}

// Denied builds the body for a denied result
func Denied(res Result) DeniedResponse {
	return DeniedResponse{
		Error:      "Rate limit exceeded",
		Message:    fmt.Sprintf("Too many requests. Please try again in %d seconds.", res.RetryAfter),
		RetryAfter: res.RetryAfter,
		Limit:      res.Limit,
		Remaining:  res.Remaining,
	}
}

// SetHeaders stamps the X-RateLimit-* headers for res on h.
// Retry-After is only set for denied results.
func SetHeaders(h http.Header, res Result) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.UnixMilli(), 10))
	if !res.Allowed {
		h.Set("Retry-After", strconv.Itoa(res.RetryAfter))
	}
	if res.Fallback {
		h.Set("X-RateLimit-Fallback", "true")
	}
}

// Middleware rejects requests over the limit with 429 and stamps the rate limit
// headers on every response it lets through.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Check(r.Context(), r)
			SetHeaders(w.Header(), res)
			if !res.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(Denied(res))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
