package models

import (
	"testing"
	"time"
)

func TestClassification_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value Classification
		valid bool
	}{
		{"safe", ClassificationSafe, true},
		{"suspicious", ClassificationSuspicious, true},
		{"high risk", ClassificationHighRisk, true},
		{"lowercase", Classification("safe"), false},
		{"empty", Classification(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.value.Valid(); got != tt.valid {
				t.Errorf("Classification(%q).Valid() = %v, want %v", tt.value, got, tt.valid)
			}
		})
	}
}

func TestFeedback_Valid(t *testing.T) {
	t.Parallel()

	if !FeedbackPositive.Valid() || !FeedbackNegative.Valid() {
		t.Error("Expected positive and negative feedback to be valid")
	}
	if Feedback("meh").Valid() {
		t.Error("Expected unknown feedback to be invalid")
	}
}

func TestStoredAnalysis_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	fb := FeedbackPositive
	orig := &StoredAnalysis{
		ID:     "a1",
		UserID: "u1",
		Result: AnalysisResult{
			Recommendations: []string{"verify the charity"},
			DetectedRules:   []DetectedRule{{ID: "r1"}},
		},
		Conversation: []ChatMessage{{ID: "m1", Role: "user", Content: "hi"}},
		Feedback:     &fb,
	}

	c := orig.Clone()
	c.Result.Recommendations[0] = "changed"
	c.Conversation[0].Content = "changed"
	*c.Feedback = FeedbackNegative

	if orig.Result.Recommendations[0] != "verify the charity" {
		t.Error("Clone shares Recommendations with original")
	}
	if orig.Conversation[0].Content != "hi" {
		t.Error("Clone shares Conversation with original")
	}
	if *orig.Feedback != FeedbackPositive {
		t.Error("Clone shares Feedback with original")
	}

	var nilAnalysis *StoredAnalysis
	if nilAnalysis.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestSessionUpdate_Apply(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	s := &UserSession{ID: "u1", CreatedAt: created, LastActive: created, AnalysisCount: 2, FeedbackGiven: 1}

	count := 3
	SessionUpdate{AnalysisCount: &count}.Apply(s, now)

	if s.AnalysisCount != 3 {
		t.Errorf("AnalysisCount = %d, want 3", s.AnalysisCount)
	}
	if s.FeedbackGiven != 1 {
		t.Errorf("FeedbackGiven = %d, want 1 (unchanged)", s.FeedbackGiven)
	}
	if !s.LastActive.Equal(now) {
		t.Errorf("LastActive = %v, want %v", s.LastActive, now)
	}
	if !s.CreatedAt.Equal(created) {
		t.Error("CreatedAt must not change")
	}
}

func TestRateLimitEntry_Expired(t *testing.T) {
	t.Parallel()

	reset := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	e := &RateLimitEntry{Count: 1, ResetTime: reset}

	if e.Expired(reset) {
		t.Error("entry should not be expired exactly at reset time")
	}
	if !e.Expired(reset.Add(time.Millisecond)) {
		t.Error("entry should be expired after reset time")
	}
}
