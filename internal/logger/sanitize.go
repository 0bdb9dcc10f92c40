package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxUserIDLength is the maximum length for anonymous client IDs in logs
	MaxUserIDLength = 128
	// MaxUserAgentLength is the maximum length for user agents in logs
	MaxUserAgentLength = 256
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength is the maximum length for debug content (prompts/responses)
	MaxDebugContentLength = 10000
)

// SanitizePath sanitizes a URL path for safe logging
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeString sanitizes a general string for safe logging
// Removes control characters, truncates to maxLength, and validates UTF-8
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = sanitizeFilterRunes(s)
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

// sanitizeFilterRunes validates UTF-8 and drops control characters other than tab.
// Newlines are dropped so a single value cannot forge extra log lines.
func sanitizeFilterRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == '\t' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// SanitizeError sanitizes an error message for safe logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()
	return SanitizeString(errStr, MaxErrorMessageLength)
}

// SanitizeUserID sanitizes a user ID for safe logging
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeUserAgent sanitizes a User-Agent header for safe logging
func SanitizeUserAgent(ua string) string {
	return SanitizeString(ua, MaxUserAgentLength)
}

// SanitizeDebugContent sanitizes debug content (prompts/model output) for safe logging
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}
