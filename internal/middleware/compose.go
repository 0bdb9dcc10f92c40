package middleware

import (
	"fmt"
	"net/http"

	logpkg "github.com/benvon/scam-hunter/internal/logger"
	"github.com/benvon/scam-hunter/internal/request"
	"go.uber.org/zap"
)

// Block is a complete response produced by a guard that stops the request
type Block struct {
	Status int
	Header http.Header
	Body   any
}

// Guard inspects a request and returns a Block to stop it, or nil to let it continue.
// A guard that continues may still set headers on w.
type Guard func(w http.ResponseWriter, r *http.Request) *Block

// HandlerFunc is a request handler that reports failures as errors
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Compose runs guards in order ahead of h. The first Block is written as the response.
// Every response carries the security headers. Errors and panics from h are logged as
// security events and answered with a generic 500 unless h already wrote a response.
func Compose(logger *zap.Logger, h HandlerFunc, guards ...Guard) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ApplySecurityHeaders(w.Header())

		for _, guard := range guards {
			if b := guard(w, r); b != nil {
				writeBlock(w, b, logger)
				return
			}
		}

		tw := &trackingWriter{ResponseWriter: w}
		err := runHandler(h, tw, r)
		if err == nil {
			return
		}

		logger.Error("security_event",
			zap.String("event", "handler_error"),
			zap.String("method", r.Method),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("ip_hash", request.HashIP(request.ClientIP(r))),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		if tw.wrote {
			return
		}
		respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
	})
}

func runHandler(h HandlerFunc, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h(w, r)
}

func writeBlock(w http.ResponseWriter, b *Block, logger *zap.Logger) {
	for k, vs := range b.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	writeJSON(w, b.Status, b.Body, logger)
}

// trackingWriter records whether a response has been started
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (tw *trackingWriter) WriteHeader(code int) {
	tw.wrote = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	tw.wrote = true
	return tw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (tw *trackingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}
