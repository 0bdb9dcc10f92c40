package request

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

const (
	// UserIDHeader carries the anonymous client identifier generated by the frontend
	UserIDHeader = "X-User-ID"
	// MaxUserIDLength bounds the accepted client identifier
	MaxUserIDLength = 128
	// UnknownIP is used when no client address can be determined
	UnknownIP = "unknown"
)

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
// Falls back to the host part of RemoteAddr, then to UnknownIP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return UnknownIP
}

// UserID returns the anonymous client identifier, or "" if missing or malformed.
func UserID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if id == "" || len(id) > MaxUserIDLength {
		return ""
	}
	for _, c := range id {
		if !(c == '-' || c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return ""
		}
	}
	return id
}

// HashIP returns a short, non-reversible fingerprint of ip for storage.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
