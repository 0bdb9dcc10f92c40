package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	mimemultipart "mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/benvon/scam-hunter/internal/blob"
	"github.com/benvon/scam-hunter/internal/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeBlobStore struct {
	mu   sync.Mutex
	puts map[string]string
	err  error
}

func (f *fakeBlobStore) Put(_ context.Context, key, contentType string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == nil {
		f.puts = make(map[string]string)
	}
	f.puts[key] = contentType
	return "https://cdn.example/" + key, nil
}

func newUploadRouter(store blob.Store) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	NewUploadHandler(store, zap.NewNop()).RegisterRoutes(api, RouteConfig{
		Security: middleware.SecurityPolicy{RequireUserAgent: true},
	})
	return r
}

func newUploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := mimemultipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "screenshot.bin")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", "scam-hunter-test/1.0")
	req.Header.Set("X-User-ID", "user-1")
	return req
}

func TestUpload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		field      string
		data       []byte
		storeErr   error
		wantStatus int
	}{
		{name: "png", field: "image", data: pngHeader, wantStatus: http.StatusCreated},
		{name: "plain text", field: "image", data: []byte("definitely not an image"), wantStatus: http.StatusUnsupportedMediaType},
		{name: "empty file", field: "image", data: nil, wantStatus: http.StatusUnsupportedMediaType},
		{name: "wrong field", field: "file", data: pngHeader, wantStatus: http.StatusBadRequest},
		{name: "store failure", field: "image", data: pngHeader, storeErr: errors.New("bucket gone"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &fakeBlobStore{err: tt.storeErr}
			w := httptest.NewRecorder()
			newUploadRouter(store).ServeHTTP(w, newUploadRequest(t, tt.field, tt.data))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				if len(store.puts) != 0 {
					t.Error("rejected upload should not be stored")
				}
				return
			}

			var resp UploadResponse
			if err := json.Unmarshal(decodeEnvelope(t, w).Data, &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.ContentType != "image/png" || resp.Size != len(tt.data) {
				t.Errorf("response = %+v", resp)
			}
			if !strings.HasPrefix(resp.URL, "https://cdn.example/uploads/user-1/") || !strings.HasSuffix(resp.URL, ".png") {
				t.Errorf("url = %s", resp.URL)
			}
		})
	}
}

func TestUpload_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		newUploadRouter(nil).ServeHTTP(w, newUploadRequest(t, "image", pngHeader))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("json body", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		newUploadRouter(&fakeBlobStore{}).ServeHTTP(w, newTestRequest(http.MethodPost, "/api/v1/upload", "user-1", map[string]string{"image": "x"}))
		if w.Code != http.StatusUnsupportedMediaType {
			t.Errorf("status = %d, want 415", w.Code)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		t.Parallel()
		req := newUploadRequest(t, "image", pngHeader)
		req.Header.Del("X-User-ID")
		w := httptest.NewRecorder()
		newUploadRouter(&fakeBlobStore{}).ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}
