package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/scam-hunter/internal/logger"
	"github.com/benvon/scam-hunter/internal/request"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const (
	// DefaultWindow is used when Config.Window is not positive
	DefaultWindow = time.Minute
	// DefaultMaxRequests is used when Config.MaxRequests is not positive
	DefaultMaxRequests = 10
	// DefaultCleanupInterval is how often expired in-memory entries are swept
	DefaultCleanupInterval = 5 * time.Minute

	uaHashLength = 8
)

// Config describes one rate-limited namespace
type Config struct {
	Namespace   string
	Window      time.Duration
	MaxRequests int
}

// Result is the outcome of a single check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter int // seconds; set only when denied
	Fallback   bool
}

// Limiter decides per request whether a client may proceed within a fixed window.
// Counters live in an optional durable store; when that store fails the check is
// served by a process-local store instead and the result is marked Fallback.
type Limiter struct {
	cfg             Config
	durable         CounterStore
	fallback        CounterStore
	memory          *MemoryStore // fallback when it is process-local; swept and reset
	log             *zap.Logger
	now             func() time.Time
	cleanupInterval time.Duration
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithCleanupInterval sets how often Start sweeps expired in-memory entries
func WithCleanupInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.cleanupInterval = d
		}
	}
}

// WithFallbackStore replaces the in-process fallback store. Start and Reset only act on
// it when it is a *MemoryStore.
func WithFallbackStore(s CounterStore) Option {
	return func(l *Limiter) { l.fallback = s }
}

// New creates a limiter. durable may be nil, in which case the in-memory store is primary.
func New(cfg Config, durable CounterStore, log *zap.Logger, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Limiter{
		cfg:             cfg,
		durable:         durable,
		fallback:        NewMemoryStore(),
		log:             log,
		now:             time.Now,
		cleanupInterval: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.memory, _ = l.fallback.(*MemoryStore)
	return l
}

// Config returns the effective configuration
func (l *Limiter) Config() Config {
	return l.cfg
}

// Key derives the counter key for r: namespace, client IP and a short user-agent hash.
// Two browsers behind one address are counted separately.
func (l *Limiter) Key(r *http.Request) string {
	return l.cfg.Namespace + ":" + request.ClientIP(r) + ":" + userAgentHash(r.UserAgent())
}

func userAgentHash(ua string) string {
	h := strconv.FormatUint(xxhash.Sum64String(ua), 36)
	if len(h) > uaHashLength {
		h = h[:uaHashLength]
	}
	return h
}

// Check counts r against its key. It never fails: if no store can serve the check the
// request is allowed.
func (l *Limiter) Check(ctx context.Context, r *http.Request) Result {
	key := l.Key(r)
	now := l.now()

	if l.durable != nil {
		entry, allowed, err := l.durable.Hit(ctx, key, now, l.cfg.Window, l.cfg.MaxRequests)
		if err == nil {
			return l.result(entry.Count, entry.ResetTime, allowed, now, false)
		}
		l.log.Warn("rate_limit_store_failed_using_fallback",
			zap.String("namespace", l.cfg.Namespace),
			zap.String("error", logger.SanitizeError(err)),
		)
	}

	entry, allowed, err := l.fallback.Hit(ctx, key, now, l.cfg.Window, l.cfg.MaxRequests)
	if err != nil {
		l.log.Error("rate_limit_unavailable_failing_open",
			zap.String("namespace", l.cfg.Namespace),
			zap.String("error", logger.SanitizeError(err)),
		)
		return Result{
			Allowed:   true,
			Limit:     l.cfg.MaxRequests,
			Remaining: l.cfg.MaxRequests,
			ResetTime: now.Add(l.cfg.Window),
			Fallback:  true,
		}
	}
	return l.result(entry.Count, entry.ResetTime, allowed, now, l.durable != nil)
}

func (l *Limiter) result(count int, reset time.Time, allowed bool, now time.Time, fallback bool) Result {
	res := Result{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: max(0, l.cfg.MaxRequests-count),
		ResetTime: reset,
		Fallback:  fallback,
	}
	if !allowed {
		res.RetryAfter = max(1, int(math.Ceil(reset.Sub(now).Seconds())))
	}
	return res
}

// Start sweeps expired in-memory entries every cleanup interval until ctx is cancelled
func (l *Limiter) Start(ctx context.Context) {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() int {
	if l.memory == nil {
		return 0
	}
	n := l.memory.Sweep(l.now())
	if n > 0 {
		l.log.Debug("rate_limit_entries_swept",
			zap.String("namespace", l.cfg.Namespace),
			zap.Int("removed", n),
		)
	}
	return n
}

// Reset clears in-process counters. Durable counters are left alone.
func (l *Limiter) Reset() {
	if l.memory != nil {
		l.memory.Reset()
	}
}
