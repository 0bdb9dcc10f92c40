package middleware

import (
	"net/http"
)

const (
	// DefaultMaxRequestSize caps JSON request bodies (1MB)
	DefaultMaxRequestSize int64 = 1 << 20
	// MaxUploadRequestSize caps multipart image uploads (6MB, leaving room for form overhead)
	MaxUploadRequestSize int64 = 6 << 20
)

// MaxRequestSize limits the size of request bodies
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
