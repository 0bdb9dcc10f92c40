package models

import (
	"slices"
	"time"
)

// Classification is the overall verdict of an analysis
type Classification string

const (
	ClassificationSafe       Classification = "SAFE"
	ClassificationSuspicious Classification = "SUSPICIOUS"
	ClassificationHighRisk   Classification = "HIGH_RISK"
)

// Valid reports whether c is one of the known classifications
func (c Classification) Valid() bool {
	switch c {
	case ClassificationSafe, ClassificationSuspicious, ClassificationHighRisk:
		return true
	default:
		return false
	}
}

// Feedback is the user's verdict on an analysis
type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// Valid reports whether f is positive or negative
func (f Feedback) Valid() bool {
	return f == FeedbackPositive || f == FeedbackNegative
}

// AnalysisInput is what the user submitted
type AnalysisInput struct {
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// DetectedRule is a scam indicator matched by the analysis
type DetectedRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// DebiasingFlags records which cognitive-bias checks the analysis applied
type DebiasingFlags struct {
	AnchoringAvoided              bool `json:"anchoringAvoided"`
	ConfirmationBiasChecked       bool `json:"confirmationBiasChecked"`
	EmotionalManipulationDetected bool `json:"emotionalManipulationDetected"`
	UrgencyPressureDetected       bool `json:"urgencyPressureDetected"`
}

// AnalysisResult is the structured risk assessment
type AnalysisResult struct {
	RiskScore        int            `json:"riskScore" validate:"min=0,max=100"`
	CredibilityScore int            `json:"credibilityScore" validate:"min=0,max=100"`
	Classification   Classification `json:"classification" validate:"required,classification"`
	DetectedRules    []DetectedRule `json:"detectedRules"`
	Recommendations  []string       `json:"recommendations"`
	Reasoning        string         `json:"reasoning"`
	DebiasingFlags   DebiasingFlags `json:"debiasingFlags"`
}

// ChatMessage is one turn of the conversation attached to an analysis
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role" validate:"required,chat_role"` // "user" or "assistant"
	Content   string    `json:"content" validate:"max=10000"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalysisMetadata carries request details captured at analysis time
type AnalysisMetadata struct {
	UserAgent      string `json:"userAgent"`
	IPHash         string `json:"ipHash"`
	ProcessingTime int64  `json:"processingTime"` // milliseconds
}

// StoredAnalysis is a persisted analysis record
type StoredAnalysis struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	Timestamp    time.Time        `json:"timestamp"`
	Input        AnalysisInput    `json:"input"`
	Result       AnalysisResult   `json:"result"`
	Conversation []ChatMessage    `json:"conversation"`
	Feedback     *Feedback        `json:"feedback,omitempty"`
	Metadata     AnalysisMetadata `json:"metadata"`
}

// Clone returns a copy of a that shares no mutable state with it
func (a *StoredAnalysis) Clone() *StoredAnalysis {
	if a == nil {
		return nil
	}
	c := *a
	c.Result.DetectedRules = slices.Clone(a.Result.DetectedRules)
	c.Result.Recommendations = slices.Clone(a.Result.Recommendations)
	c.Conversation = slices.Clone(a.Conversation)
	if a.Feedback != nil {
		f := *a.Feedback
		c.Feedback = &f
	}
	return &c
}
