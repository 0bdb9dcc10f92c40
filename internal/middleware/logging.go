package middleware

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/scam-hunter/internal/logger"
	"go.uber.org/zap"
)

// Logging creates logging middleware
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.Int("status_code", wrapped.statusCode),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if wrapped.Header().Get("X-Storage-Fallback") == "true" {
				fields = append(fields, zap.Bool("storage_fallback", true))
			}
			logger.Info("http_request", fields...)
		})
	}
}

// responseWriter captures the status code written by the next handler
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
