package middleware

import (
	"net/http"

	"github.com/benvon/scam-hunter/internal/request"
	"github.com/rs/cors"
)

// CORS handles cross-origin headers and preflight requests for the listed origins
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", request.UserIDHeader},
		ExposedHeaders: []string{
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
			"X-RateLimit-Fallback", "Retry-After", "X-Storage-Fallback",
		},
	})
	return c.Handler
}
