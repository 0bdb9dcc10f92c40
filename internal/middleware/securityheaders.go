package middleware

import (
	"net/http"
)

// ContentSecurityPolicy allows same-origin resources plus remote images for uploaded screenshots
const ContentSecurityPolicy = "default-src 'self'; img-src 'self' data: https:; frame-ancestors 'none'"

// ApplySecurityHeaders sets the fixed set of security headers on h
func ApplySecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	// legacy but still honored by some browsers
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
	h.Set("Content-Security-Policy", ContentSecurityPolicy)
}

// SecurityHeaders sets security headers on all responses
func SecurityHeaders(enableHSTS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ApplySecurityHeaders(w.Header())

			// HSTS only over TLS and only when enabled, so local development keeps working
			if enableHSTS && r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			next.ServeHTTP(w, r)
		})
	}
}
