package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// SecurityPolicy configures SecurityGuard. Zero fields disable the matching check.
type SecurityPolicy struct {
	// AllowedMethods lists accepted HTTP methods
	AllowedMethods []string
	// MaxBodyBytes caps the declared Content-Length
	MaxBodyBytes int64
	// AllowedContentTypes are media type prefixes accepted for requests with bodies.
	// Defaults to application/json and multipart/form-data.
	AllowedContentTypes []string
	// AllowedOrigins rejects browser requests whose Origin is not listed
	AllowedOrigins []string
	// RequireUserAgent rejects requests without a User-Agent header
	RequireUserAgent bool
}

var defaultContentTypes = []string{"application/json", "multipart/form-data"}

// SecurityGuard validates request shape before any handler work is done
func SecurityGuard(p SecurityPolicy) Guard {
	contentTypes := p.AllowedContentTypes
	if len(contentTypes) == 0 {
		contentTypes = defaultContentTypes
	}

	return func(_ http.ResponseWriter, r *http.Request) *Block {
		if len(p.AllowedMethods) > 0 && !slices.Contains(p.AllowedMethods, r.Method) {
			return errorBlock(r, http.StatusMethodNotAllowed, "Method Not Allowed", "Method not allowed for this endpoint",
				http.Header{"Allow": {strings.Join(p.AllowedMethods, ", ")}})
		}

		if p.MaxBodyBytes > 0 && r.ContentLength > p.MaxBodyBytes {
			return errorBlock(r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body is too large", nil)
		}

		if hasBody(r.Method) {
			ct := strings.ToLower(r.Header.Get("Content-Type"))
			if ct == "" {
				return errorBlock(r, http.StatusBadRequest, "Bad Request", "Content-Type header is required", nil)
			}
			if !slices.ContainsFunc(contentTypes, func(allowed string) bool { return strings.HasPrefix(ct, allowed) }) {
				return errorBlock(r, http.StatusUnsupportedMediaType, "Unsupported Media Type", "Content-Type is not supported", nil)
			}
		}

		if origin := r.Header.Get("Origin"); origin != "" && len(p.AllowedOrigins) > 0 && !slices.Contains(p.AllowedOrigins, origin) {
			return errorBlock(r, http.StatusForbidden, "Forbidden", "Origin not allowed", nil)
		}

		if p.RequireUserAgent && strings.TrimSpace(r.UserAgent()) == "" {
			return errorBlock(r, http.StatusBadRequest, "Bad Request", "User-Agent header is required", nil)
		}
		return nil
	}
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func errorBlock(r *http.Request, status int, errorType, message string, header http.Header) *Block {
	return &Block{Status: status, Header: header, Body: newErrorResponse(r, errorType, message)}
}
