package ai

import (
	"context"

	"github.com/benvon/scam-hunter/internal/models"
)

// Analyzer assesses a message for scam indicators
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*models.AnalysisResult, error)
}

// AnalysisRequest is the input to an analysis
type AnalysisRequest struct {
	Message  string
	ImageURL string
	// History holds earlier turns of the conversation, oldest first
	History []models.ChatMessage
}
