package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/benvon/scam-hunter/internal/logger"
	"github.com/benvon/scam-hunter/internal/ratelimit"
	"github.com/benvon/scam-hunter/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const defaultBurstRate = "20-S"

// BurstLimit throttles each client IP across the whole API at a formatted rate such as "20-S".
// Counters live in Redis when redisClient is set and in process memory otherwise.
// Responses carry the same X-RateLimit-* headers and 429 body as the per-route limiters.
func BurstLimit(rate string, redisClient *redis.Client, log *zap.Logger) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = defaultBurstRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid burst rate %q: %w", rate, err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "burst"})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store for burst limiter: %w", err)
		}
	} else {
		store = memorystore.NewStore()
	}
	instance := limiter.New(store, parsed)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lc, err := instance.Get(r.Context(), request.ClientIP(r))
			if err != nil {
				log.Warn("burst_limit_unavailable_failing_open", zap.String("error", logger.SanitizeError(err)))
				next.ServeHTTP(w, r)
				return
			}

			res := burstResult(lc, time.Now())
			ratelimit.SetHeaders(w.Header(), res)
			if !res.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(ratelimit.Denied(res))
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

// burstResult converts a limiter context, whose reset is in epoch seconds, into a Result
func burstResult(lc limiter.Context, now time.Time) ratelimit.Result {
	reset := time.Unix(lc.Reset, 0)
	res := ratelimit.Result{
		Allowed:   !lc.Reached,
		Limit:     int(lc.Limit),
		Remaining: int(lc.Remaining),
		ResetTime: reset,
	}
	if lc.Reached {
		res.RetryAfter = max(1, int(math.Ceil(reset.Sub(now).Seconds())))
	}
	return res
}
