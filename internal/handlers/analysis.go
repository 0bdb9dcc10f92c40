package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/scam-hunter/internal/logger"
	"github.com/benvon/scam-hunter/internal/middleware"
	"github.com/benvon/scam-hunter/internal/models"
	"github.com/benvon/scam-hunter/internal/request"
	"github.com/benvon/scam-hunter/internal/services/ai"
	"github.com/benvon/scam-hunter/internal/storage"
	"github.com/benvon/scam-hunter/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// MaxMessageLength is the maximum length of a message submitted for analysis
	MaxMessageLength = 10000
	// DefaultHistoryLimit is the number of records returned when no limit is given
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps the limit query parameter
	MaxHistoryLimit = 100
)

// AnalysisHandler serves analysis, history, feedback and session requests
type AnalysisHandler struct {
	analyzer ai.Analyzer
	storage  *storage.Service
	log      *zap.Logger
	now      func() time.Time
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analyzer ai.Analyzer, store *storage.Service, log *zap.Logger) *AnalysisHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalysisHandler{analyzer: analyzer, storage: store, log: log, now: time.Now}
}

// RegisterRoutes registers analysis routes on the given router.
// The router should already carry the /api/v1 prefix.
func (h *AnalysisHandler) RegisterRoutes(r *mux.Router, cfg RouteConfig) {
	post := cfg.guards(methodsPost, middleware.DefaultMaxRequestSize, jsonOnly, cfg.AnalysisLimiter)
	feedback := cfg.guards(methodsPost, middleware.DefaultMaxRequestSize, jsonOnly, cfg.FeedbackLimiter)
	get := cfg.guards(methodsGet, 0, nil, nil)

	r.Handle("/analyze", middleware.Compose(h.log, h.Analyze, post...))
	r.Handle("/history", middleware.Compose(h.log, h.History, get...))
	r.Handle("/analyses/{id}", middleware.Compose(h.log, h.GetAnalysis, get...))
	r.Handle("/analyses/{id}/feedback", middleware.Compose(h.log, h.Feedback, feedback...))
	r.Handle("/session", middleware.Compose(h.log, h.Session, get...))
}

// AnalyzeRequest is the body of POST /analyze
type AnalyzeRequest struct {
	Message      string               `json:"message" validate:"required,max=10000"`
	ImageURL     string               `json:"imageUrl,omitempty" validate:"omitempty,url,max=2048"`
	Conversation []models.ChatMessage `json:"conversation,omitempty" validate:"max=50,dive"`
}

// FeedbackRequest is the body of POST /analyses/{id}/feedback
type FeedbackRequest struct {
	Feedback string `json:"feedback" validate:"required,feedback"`
}

// HistoryResponse is the body of GET /history
type HistoryResponse struct {
	Analyses []*models.StoredAnalysis `json:"analyses"`
	Count    int                      `json:"count"`
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := request.UserID(r)
	if userID == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "A valid "+request.UserIDHeader+" header is required")
		return "", false
	}
	return userID, true
}

// Analyze runs a scam analysis on the submitted message and stores the result
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) error {
	userID, ok := requireUser(w, r)
	if !ok {
		return nil
	}

	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return nil
	}
	req.Message = validation.SanitizeText(req.Message)
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.FormatErrors(err))
		return nil
	}

	ctx, tracker := storage.TrackFallback(r.Context())
	start := h.now()
	result, err := h.analyzer.Analyze(ctx, ai.AnalysisRequest{
		Message:  req.Message,
		ImageURL: req.ImageURL,
		History:  req.Conversation,
	})
	if err != nil {
		return h.analysisFailed(w, userID, err)
	}
	finished := h.now()

	conversation := append(req.Conversation,
		models.ChatMessage{ID: uuid.NewString(), Role: "user", Content: req.Message, Timestamp: start.UTC()},
		models.ChatMessage{ID: uuid.NewString(), Role: "assistant", Content: result.Reasoning, Timestamp: finished.UTC()},
	)
	record := &models.StoredAnalysis{
		ID:           uuid.NewString(),
		UserID:       userID,
		Timestamp:    finished.UTC(),
		Input:        models.AnalysisInput{Message: req.Message, ImageURL: req.ImageURL},
		Result:       *result,
		Conversation: conversation,
		Metadata: models.AnalysisMetadata{
			UserAgent:      logger.SanitizeUserAgent(r.UserAgent()),
			IPHash:         request.HashIP(request.ClientIP(r)),
			ProcessingTime: finished.Sub(start).Milliseconds(),
		},
	}

	id, err := h.storage.SaveAnalysis(ctx, record)
	if err != nil {
		return err
	}
	record.ID = id

	h.touchSession(ctx, userID, func(s *models.UserSession) models.SessionUpdate {
		n := s.AnalysisCount + 1
		return models.SessionUpdate{AnalysisCount: &n}
	})
	degraded := tracker.Used()

	h.log.Info("analysis_completed",
		zap.String("analysis_id", id),
		zap.String("classification", string(result.Classification)),
		zap.Int("risk_score", result.RiskScore),
		zap.Int64("processing_ms", record.Metadata.ProcessingTime),
		zap.Bool("storage_fallback", degraded),
	)

	if degraded {
		w.Header().Set(StorageFallbackHeader, "true")
	}
	respondJSON(w, http.StatusCreated, record)
	return nil
}

func (h *AnalysisHandler) analysisFailed(w http.ResponseWriter, userID string, err error) error {
	switch {
	case ai.IsQuotaError(err), ai.IsRateLimitError(err):
		h.log.Warn("analysis_provider_throttled",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)))
		w.Header().Set("Retry-After", "60")
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "The analysis service is busy. Please try again shortly.")
		return nil
	case errors.Is(err, ai.ErrInvalidResult), errors.Is(err, ai.ErrEmptyResponse):
		h.log.Warn("analysis_invalid_model_output",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "The analysis service returned an unusable response")
		return nil
	default:
		return err
	}
}

// touchSession creates the user's session if needed and applies the update built by next.
// Session bookkeeping never fails a request.
func (h *AnalysisHandler) touchSession(ctx context.Context, userID string, next func(*models.UserSession) models.SessionUpdate) {
	sess, err := h.storage.GetSession(ctx, userID)
	if err == nil && sess == nil {
		sess, err = h.storage.CreateSession(ctx, userID)
	}
	if err == nil && sess != nil {
		err = h.storage.UpdateSession(ctx, userID, next(sess))
	}
	if err != nil {
		h.log.Warn("session_update_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)))
	}
}

// History lists the caller's analyses, most recent first
func (h *AnalysisHandler) History(w http.ResponseWriter, r *http.Request) error {
	userID, ok := requireUser(w, r)
	if !ok {
		return nil
	}

	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > MaxHistoryLimit {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be between 1 and "+strconv.Itoa(MaxHistoryLimit))
			return nil
		}
		limit = parsed
	}

	ctx, tracker := storage.TrackFallback(r.Context())
	analyses, err := h.storage.GetUserHistory(ctx, userID, limit)
	if err != nil {
		return err
	}
	if analyses == nil {
		analyses = []*models.StoredAnalysis{}
	}
	if tracker.Used() {
		w.Header().Set(StorageFallbackHeader, "true")
	}
	respondJSON(w, http.StatusOK, HistoryResponse{Analyses: analyses, Count: len(analyses)})
	return nil
}

// ownedAnalysis loads the analysis named in the path if it belongs to userID.
// Records owned by other users are reported as missing.
func (h *AnalysisHandler) ownedAnalysis(ctx context.Context, r *http.Request, userID string) (*models.StoredAnalysis, error) {
	rec, err := h.storage.GetAnalysis(ctx, mux.Vars(r)["id"])
	if err != nil || rec == nil || rec.UserID != userID {
		return nil, err
	}
	return rec, nil
}

// GetAnalysis returns a single analysis owned by the caller
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) error {
	userID, ok := requireUser(w, r)
	if !ok {
		return nil
	}
	ctx, tracker := storage.TrackFallback(r.Context())
	rec, err := h.ownedAnalysis(ctx, r, userID)
	if err != nil {
		return err
	}
	if tracker.Used() {
		w.Header().Set(StorageFallbackHeader, "true")
	}
	if rec == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Analysis not found")
		return nil
	}
	respondJSON(w, http.StatusOK, rec)
	return nil
}

// Feedback records the caller's verdict on one of their analyses
func (h *AnalysisHandler) Feedback(w http.ResponseWriter, r *http.Request) error {
	userID, ok := requireUser(w, r)
	if !ok {
		return nil
	}

	var req FeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return nil
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.FormatErrors(err))
		return nil
	}

	ctx, tracker := storage.TrackFallback(r.Context())
	rec, err := h.ownedAnalysis(ctx, r, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Analysis not found")
		return nil
	}

	feedback := models.Feedback(req.Feedback)
	if err := h.storage.UpdateAnalysisFeedback(ctx, rec.ID, feedback); err != nil {
		return err
	}

	// changing an earlier verdict does not count as new feedback
	if rec.Feedback == nil {
		h.touchSession(ctx, userID, func(s *models.UserSession) models.SessionUpdate {
			n := s.FeedbackGiven + 1
			return models.SessionUpdate{FeedbackGiven: &n}
		})
	}

	if tracker.Used() {
		w.Header().Set(StorageFallbackHeader, "true")
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": rec.ID, "feedback": string(feedback)})
	return nil
}

// Session returns the caller's session
func (h *AnalysisHandler) Session(w http.ResponseWriter, r *http.Request) error {
	userID, ok := requireUser(w, r)
	if !ok {
		return nil
	}
	ctx, tracker := storage.TrackFallback(r.Context())
	sess, err := h.storage.GetSession(ctx, userID)
	if err != nil {
		return err
	}
	if tracker.Used() {
		w.Header().Set(StorageFallbackHeader, "true")
	}
	if sess == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Session not found")
		return nil
	}
	respondJSON(w, http.StatusOK, sess)
	return nil
}
