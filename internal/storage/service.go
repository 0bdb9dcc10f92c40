package storage

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/benvon/scam-hunter/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/benvon/scam-hunter/internal/storage"

// ProviderFactory builds the durable provider from a connection string
type ProviderFactory func(ctx context.Context, dsn string) (Provider, error)

// Config selects the primary provider
type Config struct {
	// DatabaseURL enables the durable provider when set
	DatabaseURL string
}

// Option configures a Service
type Option func(*serviceOptions)

type serviceOptions struct {
	primary     Provider
	primaryType string
	factory     ProviderFactory
	tp          trace.TracerProvider
}

// WithPrimary uses p as the primary provider instead of building one from Config
func WithPrimary(p Provider, providerType string) Option {
	return func(o *serviceOptions) {
		o.primary = p
		o.primaryType = providerType
	}
}

// WithProviderFactory replaces the durable provider constructor
func WithProviderFactory(f ProviderFactory) Option {
	return func(o *serviceOptions) {
		o.factory = f
	}
}

// WithTracerProvider sets the tracer provider used for storage spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *serviceOptions) {
		o.tp = tp
	}
}

func postgresFactory(ctx context.Context, dsn string) (Provider, error) {
	return NewPostgresProvider(ctx, dsn)
}

// Service runs every operation against the primary provider and reruns it against an
// in-memory fallback when the primary fails. Writes that land in the fallback are not
// copied back to the primary.
type Service struct {
	primary     Provider
	primaryType string
	fallback    *MemoryProvider
	substituted bool
	degraded    atomic.Bool
	log         *zap.Logger
	tracer      trace.Tracer
}

// NewService builds a Service. A durable provider that cannot be constructed is replaced by
// memory for the lifetime of the Service.
func NewService(ctx context.Context, cfg Config, log *zap.Logger, opts ...Option) *Service {
	o := serviceOptions{factory: postgresFactory}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if o.tp == nil {
		o.tp = otel.GetTracerProvider()
	}

	s := &Service{
		fallback: NewMemoryProvider(),
		log:      log,
		tracer:   o.tp.Tracer(tracerName),
	}

	switch {
	case o.primary != nil:
		s.primary = o.primary
		s.primaryType = o.primaryType
	case cfg.DatabaseURL != "":
		p, err := o.factory(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn("storage_durable_unavailable_using_memory", zap.Error(err))
			s.primary = NewMemoryProvider()
			s.primaryType = ProviderMemory
			s.substituted = true
			break
		}
		s.primary = p
		s.primaryType = ProviderPostgres
		log.Info("storage_provider_initialized", zap.String("provider", ProviderPostgres))
	default:
		s.primary = NewMemoryProvider()
		s.primaryType = ProviderMemory
	}
	return s
}

// ProviderType returns the type of the primary provider
func (s *Service) ProviderType() string {
	return s.primaryType
}

// UsingFallback reports whether the durable provider was substituted or the most recent
// call made by any caller was served by the fallback. It is process-wide and meant for
// health reporting; use TrackFallback to learn how a particular request was served.
func (s *Service) UsingFallback() bool {
	return s.substituted || s.degraded.Load()
}

// Close closes the primary provider when it holds resources
func (s *Service) Close() error {
	if c, ok := s.primary.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Ping checks the primary provider when it supports health checks
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.primary.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Reset clears in-memory state and the degraded flag
func (s *Service) Reset() {
	s.fallback.Reset()
	if m, ok := s.primary.(*MemoryProvider); ok {
		m.Reset()
	}
	s.degraded.Store(false)
}

type trackerKey struct{}

// FallbackTracker records whether storage calls made with its context were served by
// the fallback provider
type FallbackTracker struct {
	used atomic.Bool
}

// Used reports whether any tracked call was served by the fallback
func (t *FallbackTracker) Used() bool {
	return t != nil && t.used.Load()
}

// TrackFallback returns a context whose storage calls report into the returned tracker.
// A Service whose durable provider was substituted at construction marks every tracked call.
func TrackFallback(ctx context.Context) (context.Context, *FallbackTracker) {
	t := &FallbackTracker{}
	return context.WithValue(ctx, trackerKey{}, t), t
}

func markFallback(ctx context.Context) {
	if t, ok := ctx.Value(trackerKey{}).(*FallbackTracker); ok {
		t.used.Store(true)
	}
}

func withFallback[T any](ctx context.Context, s *Service, op string, fn func(context.Context, Provider) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "storage."+op,
		trace.WithAttributes(attribute.String("storage.provider", s.primaryType)))
	defer span.End()

	if s.substituted {
		markFallback(ctx)
	}

	v, err := fn(ctx, s.primary)
	if err == nil {
		s.degraded.Store(false)
		span.SetAttributes(attribute.Bool("storage.degraded", false))
		return v, nil
	}

	s.log.Warn("storage_primary_failed_using_fallback",
		zap.String("operation", op),
		zap.String("provider", s.primaryType),
		zap.Error(err))
	span.RecordError(err)
	s.degraded.Store(true)
	markFallback(ctx)
	span.SetAttributes(attribute.Bool("storage.degraded", true))

	v, err = fn(ctx, s.fallback)
	if err != nil {
		span.SetStatus(codes.Error, "fallback failed")
		return v, fmt.Errorf("storage %s failed on fallback: %w", op, err)
	}
	return v, nil
}

// SaveAnalysis stores the record and returns its id
func (s *Service) SaveAnalysis(ctx context.Context, analysis *models.StoredAnalysis) (string, error) {
	if err := validateRecord(analysis); err != nil {
		return "", err
	}
	return withFallback(ctx, s, "save_analysis", func(ctx context.Context, p Provider) (string, error) {
		return p.SaveAnalysis(ctx, analysis)
	})
}

// GetAnalysis returns the record for id, or nil if unknown
func (s *Service) GetAnalysis(ctx context.Context, id string) (*models.StoredAnalysis, error) {
	return withFallback(ctx, s, "get_analysis", func(ctx context.Context, p Provider) (*models.StoredAnalysis, error) {
		return p.GetAnalysis(ctx, id)
	})
}

// GetUserHistory returns the user's records, most recent first
func (s *Service) GetUserHistory(ctx context.Context, userID string, limit int) ([]*models.StoredAnalysis, error) {
	return withFallback(ctx, s, "get_user_history", func(ctx context.Context, p Provider) ([]*models.StoredAnalysis, error) {
		return p.GetUserHistory(ctx, userID, limit)
	})
}

// UpdateAnalysisFeedback records the user's feedback on an analysis
func (s *Service) UpdateAnalysisFeedback(ctx context.Context, id string, feedback models.Feedback) error {
	_, err := withFallback(ctx, s, "update_analysis_feedback", func(ctx context.Context, p Provider) (struct{}, error) {
		return struct{}{}, p.UpdateAnalysisFeedback(ctx, id, feedback)
	})
	return err
}

// CreateSession starts a session for userID
func (s *Service) CreateSession(ctx context.Context, userID string) (*models.UserSession, error) {
	return withFallback(ctx, s, "create_session", func(ctx context.Context, p Provider) (*models.UserSession, error) {
		return p.CreateSession(ctx, userID)
	})
}

// UpdateSession merges update into the user's session
func (s *Service) UpdateSession(ctx context.Context, userID string, update models.SessionUpdate) error {
	_, err := withFallback(ctx, s, "update_session", func(ctx context.Context, p Provider) (struct{}, error) {
		return struct{}{}, p.UpdateSession(ctx, userID, update)
	})
	return err
}

// GetSession returns the user's session, or nil if none exists
func (s *Service) GetSession(ctx context.Context, userID string) (*models.UserSession, error) {
	return withFallback(ctx, s, "get_session", func(ctx context.Context, p Provider) (*models.UserSession, error) {
		return p.GetSession(ctx, userID)
	})
}

var _ Provider = (*Service)(nil)
var _ Provider = (*MemoryProvider)(nil)
var _ Provider = (*PostgresProvider)(nil)
