package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// StorageFallbackHeader is set on responses whose records were written to the in-memory fallback
const StorageFallbackHeader = "X-Storage-Fallback"

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage bounds client-facing error messages
func sanitizeErrorMessage(message string) string {
	if len(message) > 200 {
		return message[:200] + "..."
	}
	return message
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// decodeJSON decodes a request body, rejecting unknown fields and trailing data
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}
