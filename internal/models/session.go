package models

import "time"

// UserSession tracks an anonymous client's activity
type UserSession struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	LastActive    time.Time `json:"lastActive"`
	AnalysisCount int       `json:"analysisCount"`
	FeedbackGiven int       `json:"feedbackGiven"`
}

// SessionUpdate is a partial update; nil fields are left unchanged
type SessionUpdate struct {
	AnalysisCount *int `json:"analysisCount,omitempty"`
	FeedbackGiven *int `json:"feedbackGiven,omitempty"`
}

// Apply merges u into s and refreshes LastActive
func (u SessionUpdate) Apply(s *UserSession, now time.Time) {
	if u.AnalysisCount != nil {
		s.AnalysisCount = *u.AnalysisCount
	}
	if u.FeedbackGiven != nil {
		s.FeedbackGiven = *u.FeedbackGiven
	}
	s.LastActive = now
}
