package middleware

import (
	"net/http"

	logpkg "github.com/benvon/scam-hunter/internal/logger"
	"github.com/benvon/scam-hunter/internal/request"
	"go.uber.org/zap"
)

// Audit logs rejected and throttled requests. Client IPs are logged hashed.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := func() []zap.Field {
				return []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("ip_hash", request.HashIP(request.ClientIP(r))),
					zap.String("user_agent", logpkg.SanitizeUserAgent(r.UserAgent())),
				}
			}

			switch wrapped.statusCode {
			case http.StatusBadRequest, http.StatusForbidden, http.StatusMethodNotAllowed,
				http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
				logger.Warn("security_event", append(fields(), zap.Int("status_code", wrapped.statusCode))...)
			case http.StatusTooManyRequests:
				logger.Warn("rate_limit_violation", append(fields(),
					zap.String("retry_after", wrapped.Header().Get("Retry-After")),
					zap.Bool("fallback", wrapped.Header().Get("X-RateLimit-Fallback") == "true"))...)
			}
		})
	}
}
