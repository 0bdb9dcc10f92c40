package ai

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

var (
	// ErrEmptyResponse indicates the model returned no text
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrInvalidResult indicates the model output did not match the result schema
	ErrInvalidResult = errors.New("invalid analysis result")
)

func apiError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := apiError(err); ok {
		return apiErr.Code == http.StatusTooManyRequests && !strings.Contains(strings.ToLower(apiErr.Message), "quota")
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsQuotaError checks if an error is a quota exhaustion error
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := apiError(err); ok {
		return apiErr.Status == "RESOURCE_EXHAUSTED" && strings.Contains(strings.ToLower(apiErr.Message), "quota")
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "quota") || strings.Contains(errStr, "billing")
}
