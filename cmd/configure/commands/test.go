package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/scam-hunter/internal/blob"
	"github.com/benvon/scam-hunter/internal/config"
	"github.com/benvon/scam-hunter/internal/ratelimit"
	"github.com/benvon/scam-hunter/internal/storage"
	"github.com/spf13/cobra"
)

type check struct {
	name       string
	configured bool
	run        func(ctx context.Context) error
}

func backendChecks(cfg *config.Config) []check {
	return []check{
		{
			name:       "postgres",
			configured: cfg.DatabaseURL != "",
			run: func(ctx context.Context) error {
				p, err := storage.NewPostgresProvider(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				return p.Close()
			},
		},
		{
			name:       "redis",
			configured: cfg.RedisURL != "",
			run: func(ctx context.Context) error {
				client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
				if err != nil {
					return err
				}
				return client.Close()
			},
		},
		{
			name:       "minio",
			configured: cfg.MinioEndpoint != "",
			run: func(ctx context.Context) error {
				s, err := blob.NewMinioStore(ctx, blob.MinioConfig{
					Endpoint:  cfg.MinioEndpoint,
					AccessKey: cfg.MinioAccessKey,
					SecretKey: cfg.MinioSecretKey,
					Bucket:    cfg.MinioBucket,
					UseSSL:    cfg.MinioUseSSL,
				})
				if err != nil {
					return err
				}
				return s.Ping(ctx)
			},
		},
	}
}

// NewTestCmd creates the test command
func NewTestCmd(env Env) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test backend connectivity",
		Long:  "Connect to each configured backend (Postgres, Redis, MinIO). Unconfigured backends are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runChecks(cmd, backendChecks(cfg), timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for each check")
	return cmd
}

func runChecks(cmd *cobra.Command, checks []check, timeout time.Duration) error {
	out := cmd.OutOrStdout()
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	var errs []error
	for _, c := range checks {
		if !c.configured {
			fmt.Fprintf(out, "- %s: not configured, skipped\n", c.name)
			continue
		}
		ctx, cancel := context.WithTimeout(base, timeout)
		err := c.run(ctx)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", c.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		fmt.Fprintf(out, "✓ %s is reachable\n", c.name)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	fmt.Fprintln(out, "\n✓ Connectivity test passed")
	return nil
}
