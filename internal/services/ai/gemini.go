package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/scam-hunter/internal/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// DefaultGeminiModel is used when no model is configured
	DefaultGeminiModel = "gemini-2.5-flash"

	analysisTemperature = 0.2
	maxHistoryTurns     = 10
)

const systemPrompt = `You are Scam Hunter, an analyst who protects supporters of Israel and the IDF from online fraud.
Assess the message the user shares for signs of impersonation scams (fake soldiers, fake officials,
fake charities), donation fraud, romance scams, phishing links and requests for money, gift cards or crypto.

Work in this order to avoid bias:
1. Describe what the message literally asks for before judging it.
2. List evidence for AND against the message being legitimate.
3. Note emotional manipulation and urgency pressure separately from factual claims.
4. Only then score it.

Return JSON only, matching the schema:
- riskScore: 0-100, likelihood the message is a scam
- credibilityScore: 0-100, how verifiable the sender and claims are
- classification: SAFE (riskScore < 30), SUSPICIOUS (30-69) or HIGH_RISK (70+)
- detectedRules: indicators found, each with id, name, severity (low|medium|high) and description
- recommendations: concrete next steps for the user
- reasoning: a short plain-language explanation
- debiasingFlags: which of the checks above you applied or detected`

// generator is the subset of the genai client used for analysis
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini analyzer
type GeminiConfig struct {
	APIKey string
	Model  string
	// FullLog logs prompts and responses at debug level
	FullLog bool
}

// GeminiAnalyzer analyzes messages with a Gemini model using structured JSON output
type GeminiAnalyzer struct {
	models  generator
	model   string
	fullLog bool
	log     *zap.Logger
}

// NewGeminiAnalyzer creates a Gemini client for the Gemini API backend
func NewGeminiAnalyzer(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*GeminiAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("gemini_analyzer_initialized",
		zap.String("model", modelOrDefault(cfg.Model)),
		zap.String("api_key", SanitizeAPIKey(cfg.APIKey)),
	)
	return newGeminiAnalyzer(client.Models, cfg, log), nil
}

func newGeminiAnalyzer(g generator, cfg GeminiConfig, log *zap.Logger) *GeminiAnalyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &GeminiAnalyzer{models: g, model: modelOrDefault(cfg.Model), fullLog: cfg.FullLog, log: log}
}

func modelOrDefault(model string) string {
	if model == "" {
		return DefaultGeminiModel
	}
	return model
}

// Analyze sends the message and recent history to the model and parses the structured result
func (a *GeminiAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*models.AnalysisResult, error) {
	contents := buildContents(req)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(analysisTemperature)),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    resultSchema(),
	}

	a.log.Debug("gemini_request",
		zap.String("model", a.model),
		zap.Int("history_turns", len(contents)-1),
		zap.String("message_preview", SanitizeForLog(req.Message, a.fullLog)),
	)

	resp, err := a.models.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	text := resp.Text()
	a.log.Debug("gemini_response", zap.String("response_preview", SanitizeForLog(text, a.fullLog)))
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	return ParseResult(text)
}

func buildContents(req AnalysisRequest) []*genai.Content {
	history := req.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	msg := "Message to analyze:\n" + req.Message
	if req.ImageURL != "" {
		msg += "\n\nThe user also attached a screenshot at: " + req.ImageURL
	}
	return append(contents, genai.NewContentFromText(msg, genai.RoleUser))
}

func resultSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	boolean := &genai.Schema{Type: genai.TypeBoolean}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"riskScore":        {Type: genai.TypeInteger, Minimum: genai.Ptr(0.0), Maximum: genai.Ptr(100.0)},
			"credibilityScore": {Type: genai.TypeInteger, Minimum: genai.Ptr(0.0), Maximum: genai.Ptr(100.0)},
			"classification": {
				Type: genai.TypeString,
				Enum: []string{
					string(models.ClassificationSafe),
					string(models.ClassificationSuspicious),
					string(models.ClassificationHighRisk),
				},
			},
			"detectedRules": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":          str,
						"name":        str,
						"severity":    {Type: genai.TypeString, Enum: []string{"low", "medium", "high"}},
						"description": str,
					},
					Required: []string{"id", "name", "severity", "description"},
				},
			},
			"recommendations": {Type: genai.TypeArray, Items: str},
			"reasoning":       str,
			"debiasingFlags": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"anchoringAvoided":              boolean,
					"confirmationBiasChecked":       boolean,
					"emotionalManipulationDetected": boolean,
					"urgencyPressureDetected":       boolean,
				},
			},
		},
		Required: []string{"riskScore", "credibilityScore", "classification", "detectedRules", "recommendations", "reasoning", "debiasingFlags"},
	}
}
