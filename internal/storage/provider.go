package storage

import (
	"context"
	"errors"

	"github.com/benvon/scam-hunter/internal/models"
)

// DefaultHistoryLimit is used when GetUserHistory is called with a non-positive limit
const DefaultHistoryLimit = 50

const (
	// ProviderPostgres identifies the durable provider
	ProviderPostgres = "postgres"
	// ProviderMemory identifies the in-process provider
	ProviderMemory = "memory"
)

// ErrInvalidRecord is returned for nil records or records without a user
var ErrInvalidRecord = errors.New("invalid analysis record")

// Provider persists analysis and session records.
// Lookups of unknown ids return nil without an error, and updates of unknown ids are no-ops.
type Provider interface {
	SaveAnalysis(ctx context.Context, analysis *models.StoredAnalysis) (string, error)
	GetAnalysis(ctx context.Context, id string) (*models.StoredAnalysis, error)
	// GetUserHistory returns at most limit records, most recent first
	GetUserHistory(ctx context.Context, userID string, limit int) ([]*models.StoredAnalysis, error)
	UpdateAnalysisFeedback(ctx context.Context, id string, feedback models.Feedback) error
	CreateSession(ctx context.Context, userID string) (*models.UserSession, error)
	// UpdateSession merges update into the session and refreshes LastActive
	UpdateSession(ctx context.Context, userID string, update models.SessionUpdate) error
	GetSession(ctx context.Context, userID string) (*models.UserSession, error)
}

func validateRecord(a *models.StoredAnalysis) error {
	if a == nil || a.UserID == "" {
		return ErrInvalidRecord
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
