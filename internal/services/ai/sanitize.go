package ai

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPreviewLength is the maximum length for preview strings in logs
	MaxPreviewLength = 200
	// MaxFullLogLength bounds prompts and responses logged in debug mode
	MaxFullLogLength = 10000
	// RedactedValue is the value used to replace sensitive data
	RedactedValue = "[REDACTED]"
)

// SanitizeAPIKey shows only the first and last four characters of an API key
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizeForLog returns a log-safe preview of model input or output.
// Debug mode keeps more of the text but it is still cleaned and bounded.
func SanitizeForLog(s string, fullLog bool) string {
	if s == "" {
		return ""
	}
	maxLen := MaxPreviewLength
	if fullLog {
		maxLen = MaxFullLogLength
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' {
			builder.WriteRune(r)
		} else if r == '\n' || r == '\r' {
			builder.WriteRune(' ')
		}
	}
	s = builder.String()

	if len(s) > maxLen {
		s = truncateRunes(s, maxLen) + "..."
	}
	return s
}

// truncateRunes cuts s to at most maxBytes without splitting a rune
func truncateRunes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
