package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/scam-hunter/internal/blob"
	"github.com/benvon/scam-hunter/internal/config"
	"github.com/benvon/scam-hunter/internal/handlers"
	"github.com/benvon/scam-hunter/internal/logger"
	"github.com/benvon/scam-hunter/internal/middleware"
	"github.com/benvon/scam-hunter/internal/ratelimit"
	"github.com/benvon/scam-hunter/internal/services/ai"
	"github.com/benvon/scam-hunter/internal/storage"
	"github.com/benvon/scam-hunter/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including full model prompts and responses")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(debugMode, cfg.LogFormat == "console")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("gemini_model", cfg.GeminiModel),
		zap.Bool("durable_storage", cfg.DatabaseURL != ""),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing := false
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.Config{
			ServiceName: telemetry.DefaultServiceName,
			Version:     version,
			Endpoint:    cfg.OTELEndpoint,
			Insecure:    true,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracing = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	// Redis is optional; without it counters live in process memory
	var redisClient *redis.Client
	var counterStore ratelimit.CounterStore
	if cfg.RedisURL != "" {
		redisClient, err = ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Warn("redis_unavailable_using_memory_counters", zap.Error(err))
		} else {
			counterStore = ratelimit.NewRedisStore(redisClient)
			zapLogger.Info("connected_to_redis")
			defer func() {
				if err := redisClient.Close(); err != nil {
					zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
				}
			}()
		}
	}

	limiters := make(map[string]*ratelimit.Limiter, len(cfg.RateLimits))
	for ns, rl := range cfg.RateLimits {
		l := ratelimit.New(ratelimit.Config{Namespace: ns, Window: rl.Window, MaxRequests: rl.MaxRequests},
			counterStore, zapLogger, ratelimit.WithCleanupInterval(cfg.CleanupInterval))
		go l.Start(ctx)
		limiters[ns] = l
	}

	store := storage.NewService(ctx, storage.Config{DatabaseURL: cfg.DatabaseURL}, zapLogger)
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("failed_to_close_storage", zap.Error(err))
		}
	}()
	zapLogger.Info("storage_ready",
		zap.String("provider", store.ProviderType()),
		zap.Bool("using_fallback", store.UsingFallback()),
	)

	analyzer, err := ai.NewGeminiAnalyzer(ctx, ai.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		FullLog: debugMode,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_analyzer", zap.Error(err))
	}

	var images blob.Store
	var imagesPinger handlers.Pinger
	if cfg.MinioEndpoint != "" {
		ms, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			zapLogger.Warn("image_store_unavailable_uploads_disabled", zap.Error(err))
		} else {
			images, imagesPinger = ms, ms
			zapLogger.Info("image_store_ready", zap.String("bucket", cfg.MinioBucket))
		}
	}

	deps := map[string]handlers.Pinger{"images": imagesPinger}
	if redisClient != nil {
		deps["redis"] = redisPinger{redisClient}
	}

	burst, err := middleware.BurstLimit(cfg.BurstRate, redisClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid_burst_rate", zap.String("rate", cfg.BurstRate), zap.Error(err))
	}

	r := mux.NewRouter()
	// mux runs middleware in registration order, outermost first
	if tracing {
		r.Use(otelmux.Middleware(telemetry.DefaultServiceName))
	}
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(burst)
	r.Use(middleware.MaxRequestSize(middleware.MaxUploadRequestSize))
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	handlers.NewHealthChecker(store, version, deps).RegisterRoutes(r)

	routes := handlers.RouteConfig{
		Security: middleware.SecurityPolicy{
			AllowedOrigins:   cfg.AllowedOrigins,
			RequireUserAgent: true,
		},
		AnalysisLimiter: limiters[config.NamespaceAnalysis],
		UploadLimiter:   limiters[config.NamespaceUpload],
		FeedbackLimiter: limiters[config.NamespaceFeedback],
	}
	api := r.PathPrefix("/api/v1").Subrouter()
	handlers.NewAnalysisHandler(analyzer, store, zapLogger).RegisterRoutes(api, routes)
	handlers.NewUploadHandler(images, zapLogger).RegisterRoutes(api, routes)

	// preflight for routes restricted to other methods; CORS answers before this runs
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("server_failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
		os.Exit(1)
	}
	zapLogger.Info("server_exited")
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
