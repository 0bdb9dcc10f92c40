package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/benvon/scam-hunter/internal/models"
	"github.com/benvon/scam-hunter/internal/validation"
)

// rawResult mirrors the response schema; scores arrive as JSON numbers of any precision
type rawResult struct {
	RiskScore        *float64              `json:"riskScore"`
	CredibilityScore *float64              `json:"credibilityScore"`
	Classification   string                `json:"classification"`
	DetectedRules    []models.DetectedRule `json:"detectedRules"`
	Recommendations  []string              `json:"recommendations"`
	Reasoning        string                `json:"reasoning"`
	DebiasingFlags   models.DebiasingFlags `json:"debiasingFlags"`
}

// ParseResult decodes model output into an AnalysisResult. Scores are rounded and
// clamped to 0-100; a missing score or unknown classification is an error.
func ParseResult(text string) (*models.AnalysisResult, error) {
	text = stripCodeFence(strings.TrimSpace(text))
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if raw.RiskScore == nil || raw.CredibilityScore == nil {
		return nil, fmt.Errorf("%w: missing score", ErrInvalidResult)
	}

	result := &models.AnalysisResult{
		RiskScore:        clampScore(*raw.RiskScore),
		CredibilityScore: clampScore(*raw.CredibilityScore),
		Classification:   models.Classification(strings.ToUpper(strings.TrimSpace(raw.Classification))),
		DetectedRules:    raw.DetectedRules,
		Recommendations:  raw.Recommendations,
		Reasoning:        strings.TrimSpace(raw.Reasoning),
		DebiasingFlags:   raw.DebiasingFlags,
	}
	if result.DetectedRules == nil {
		result.DetectedRules = []models.DetectedRule{}
	}
	if result.Recommendations == nil {
		result.Recommendations = []string{}
	}

	if err := validation.Validate.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResult, validation.FormatErrors(err))
	}
	return result, nil
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

// stripCodeFence removes a surrounding ``` or ```json fence
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
