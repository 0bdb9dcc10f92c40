package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, env.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not valid RFC3339: %v", env.Timestamp, err)
	}
	return env
}

// newTestRequest builds a request from an anonymous client with a JSON body
func newTestRequest(method, path, userID string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "scam-hunter-test/1.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return req
}

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		data     any
		wantData string
	}{
		{name: "object", status: http.StatusOK, data: map[string]string{"message": "hello"}, wantData: `{"message":"hello"}`},
		{name: "nil data", status: http.StatusCreated, data: nil, wantData: `null`},
		{name: "array", status: http.StatusOK, data: []string{"a", "b"}, wantData: `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}
			env := decodeEnvelope(t, w)
			if !env.Success {
				t.Error("Expected success to be true")
			}
			if string(env.Data) != tt.wantData {
				t.Errorf("data = %s, want %s", env.Data, tt.wantData)
			}
		})
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	tests := []struct {
		name        string
		status      int
		message     string
		wantMessage string
	}{
		{name: "short message", status: http.StatusBadRequest, message: "Invalid input", wantMessage: "Invalid input"},
		{name: "long message truncated", status: http.StatusNotFound, message: long, wantMessage: long[:200] + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSONError(w, tt.status, "Some Error", tt.message)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			env := decodeEnvelope(t, w)
			if env.Success {
				t.Error("Expected success to be false")
			}
			if env.Error != "Some Error" || env.Message != tt.wantMessage {
				t.Errorf("error/message = %q/%q", env.Error, env.Message)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type body struct {
		Feedback string `json:"feedback"`
	}
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid", raw: `{"feedback":"positive"}`},
		{name: "unknown field", raw: `{"feedback":"positive","admin":true}`, wantErr: true},
		{name: "trailing object", raw: `{"feedback":"positive"}{"feedback":"negative"}`, wantErr: true},
		{name: "malformed", raw: `{"feedback":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var b body
			err := decodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(tt.raw)), &b)
			if (err != nil) != tt.wantErr {
				t.Errorf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
