package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/benvon/scam-hunter/internal/blob"
	"github.com/benvon/scam-hunter/internal/logger"
	"github.com/benvon/scam-hunter/internal/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// uploadFormField is the multipart field carrying the image
const uploadFormField = "image"

// UploadHandler stores screenshots that users attach to an analysis
type UploadHandler struct {
	store blob.Store
	log   *zap.Logger
}

// NewUploadHandler creates a new upload handler. store may be nil when uploads are not configured.
func NewUploadHandler(store blob.Store, log *zap.Logger) *UploadHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UploadHandler{store: store, log: log}
}

// RegisterRoutes registers upload routes on the given router
func (h *UploadHandler) RegisterRoutes(r *mux.Router, cfg RouteConfig) {
	guards := cfg.guards(methodsPost, middleware.MaxUploadRequestSize, multipart, cfg.UploadLimiter)
	r.Handle("/upload", middleware.Compose(h.log, h.Upload, guards...))
}

// UploadResponse is the body of a successful upload
type UploadResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// Upload validates and stores an image, returning its URL
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) error {
	userID, ok := requireUser(w, r)
	if !ok {
		return nil
	}
	if h.store == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Image uploads are not configured")
		return nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, middleware.MaxUploadRequestSize)
	if err := r.ParseMultipartForm(blob.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Image must be 5MB or smaller")
			return nil
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid multipart form")
		return nil
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, _, err := r.FormFile(uploadFormField)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Missing image field")
		return nil
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(file, blob.MaxImageSize+1))
	if err != nil {
		return err
	}

	contentType, err := blob.DetectImageType(data)
	switch {
	case errors.Is(err, blob.ErrTooLarge):
		respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Image must be 5MB or smaller")
		return nil
	case errors.Is(err, blob.ErrUnsupportedType), errors.Is(err, blob.ErrEmpty):
		respondJSONError(w, http.StatusUnsupportedMediaType, "Unsupported Media Type", "Only JPEG, PNG, WebP and GIF images are accepted")
		return nil
	case err != nil:
		return err
	}

	url, err := h.store.Put(r.Context(), blob.ObjectKey(userID, contentType), contentType, data)
	if err != nil {
		return err
	}

	h.log.Info("image_uploaded",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)),
	)
	respondJSON(w, http.StatusCreated, UploadResponse{URL: url, ContentType: contentType, Size: len(data)})
	return nil
}
