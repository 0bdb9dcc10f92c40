package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// NamespaceAnalysis is the rate limit namespace for analysis requests
	NamespaceAnalysis = "analysis"
	// NamespaceUpload is the rate limit namespace for image uploads
	NamespaceUpload = "upload"
	// NamespaceFeedback is the rate limit namespace for feedback on analyses
	NamespaceFeedback = "feedback"
)

// RateLimit is the limit applied to one namespace
type RateLimit struct {
	MaxRequests int
	Window      time.Duration
}

// Config holds application configuration
type Config struct {
	ServerPort      string
	DatabaseURL     string
	RedisURL        string
	GeminiAPIKey    string
	GeminiModel     string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	RateLimits      map[string]RateLimit
	CleanupInterval time.Duration
	BurstRate       string
	AllowedOrigins  []string
	EnableHSTS      bool
	ServerDebugMode bool
	// LogFormat is "json" (default) or "console"
	LogFormat    string
	OTELEnabled  bool
	OTELEndpoint string
	ConfigFile   string
}

// Load loads configuration from an optional .env file, the environment and an optional YAML file
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := envSource(getenv)
	window := env.duration("RATE_LIMIT_WINDOW", time.Minute)

	cfg := &Config{
		ServerPort:     env.str("SERVER_PORT", "8080"),
		DatabaseURL:    env.str("DATABASE_URL", ""),
		RedisURL:       env.str("REDIS_URL", ""),
		GeminiAPIKey:   env.str("GEMINI_API_KEY", ""),
		GeminiModel:    env.str("GEMINI_MODEL", "gemini-2.5-flash"),
		MinioEndpoint:  env.str("MINIO_ENDPOINT", ""),
		MinioAccessKey: env.str("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: env.str("MINIO_SECRET_KEY", ""),
		MinioBucket:    env.str("MINIO_BUCKET", "scam-hunter-uploads"),
		MinioUseSSL:    env.bool("MINIO_USE_SSL", false),
		RateLimits: map[string]RateLimit{
			NamespaceAnalysis: {MaxRequests: env.int("RATE_LIMIT_ANALYSIS_MAX", 10), Window: window},
			NamespaceUpload:   {MaxRequests: env.int("RATE_LIMIT_UPLOAD_MAX", 5), Window: window},
			NamespaceFeedback: {MaxRequests: env.int("RATE_LIMIT_FEEDBACK_MAX", 30), Window: window},
		},
		CleanupInterval: env.duration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		BurstRate:       env.str("BURST_RATE", "20-S"),
		AllowedOrigins:  splitList(env.str("ALLOWED_ORIGINS", "http://localhost:3000")),
		EnableHSTS:      env.bool("ENABLE_HSTS", false),
		ServerDebugMode: env.bool("SERVER_DEBUG_MODE", false),
		LogFormat:       env.str("LOG_FORMAT", "json"),
		OTELEnabled:     env.bool("OTEL_ENABLED", false),
		OTELEndpoint:    env.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ConfigFile:      env.str("CONFIG_FILE", ""),
	}

	if cfg.ConfigFile != "" {
		data, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig is the shape of the optional YAML overlay
type fileConfig struct {
	RateLimits map[string]struct {
		MaxRequests int    `yaml:"max_requests"`
		Window      string `yaml:"window"`
	} `yaml:"rate_limits"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// applyYAML overlays rate limits and origins from a YAML document
func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	for ns, rl := range fc.RateLimits {
		cur := c.RateLimits[ns]
		if rl.MaxRequests != 0 {
			cur.MaxRequests = rl.MaxRequests
		}
		if rl.Window != "" {
			d, err := time.ParseDuration(rl.Window)
			if err != nil {
				return fmt.Errorf("rate_limits.%s.window: %w", ns, err)
			}
			cur.Window = d
		}
		if cur.Window == 0 {
			cur.Window = time.Minute
		}
		c.RateLimits[ns] = cur
	}
	if len(fc.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	return nil
}

// Validate checks that limits and intervals are usable
func (c *Config) Validate() error {
	var errs []error
	for ns, rl := range c.RateLimits {
		if rl.MaxRequests <= 0 {
			errs = append(errs, fmt.Errorf("rate limit %q: max requests must be positive", ns))
		}
		if rl.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit %q: window must be positive", ns))
		}
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_CLEANUP_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

type envSource func(string) string

func (e envSource) str(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e envSource) bool(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e envSource) int(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e envSource) duration(key string, defaultValue time.Duration) time.Duration {
	if value := e(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
