package handlers

import (
	"errors"
	"net/http"

	"github.com/benvon/scam-hunter/internal/middleware"
	"github.com/benvon/scam-hunter/internal/ratelimit"
)

var errTrailingData = errors.New("request body must contain a single JSON object")

// RouteConfig supplies the guards placed ahead of each handler
type RouteConfig struct {
	// Security is the base policy; methods, body limits and content types are set per route
	Security middleware.SecurityPolicy
	// AnalysisLimiter guards analysis submission
	AnalysisLimiter *ratelimit.Limiter
	// FeedbackLimiter guards feedback submission
	FeedbackLimiter *ratelimit.Limiter
	// UploadLimiter guards image uploads
	UploadLimiter *ratelimit.Limiter
}

func (c RouteConfig) guards(methods []string, maxBody int64, contentTypes []string, l *ratelimit.Limiter) []middleware.Guard {
	policy := c.Security
	policy.AllowedMethods = methods
	policy.MaxBodyBytes = maxBody
	policy.AllowedContentTypes = contentTypes
	guards := []middleware.Guard{middleware.SecurityGuard(policy)}
	if l != nil {
		guards = append(guards, middleware.RateLimitGuard(l))
	}
	return guards
}

var (
	methodsPost = []string{http.MethodPost}
	methodsGet  = []string{http.MethodGet}
	jsonOnly    = []string{"application/json"}
	multipart   = []string{"multipart/form-data"}
)
