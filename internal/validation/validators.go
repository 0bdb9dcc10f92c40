package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/scam-hunter/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("classification", validateClassification); err != nil {
		panic(fmt.Sprintf("failed to register classification validator: %v", err))
	}
	if err := Validate.RegisterValidation("feedback", validateFeedback); err != nil {
		panic(fmt.Sprintf("failed to register feedback validator: %v", err))
	}
	if err := Validate.RegisterValidation("chat_role", validateChatRole); err != nil {
		panic(fmt.Sprintf("failed to register chat_role validator: %v", err))
	}
}

func validateClassification(fl validator.FieldLevel) bool {
	return models.Classification(fl.Field().String()).Valid()
}

func validateFeedback(fl validator.FieldLevel) bool {
	return models.Feedback(fl.Field().String()).Valid()
}

func validateChatRole(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	return role == "user" || role == "assistant"
}

// SanitizeText trims whitespace and removes control characters except newline and tab
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateFeedback validates a feedback string value
func ValidateFeedback(value string) error {
	if !models.Feedback(value).Valid() {
		return fmt.Errorf("invalid feedback: %s (must be 'positive' or 'negative')", value)
	}
	return nil
}

// FormatErrors flattens validator errors into one readable message
func FormatErrors(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
