package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/benvon/scam-hunter/internal/config"
	"github.com/benvon/scam-hunter/internal/storage"
)

// Env supplies configuration and backends to commands
type Env struct {
	Load      func() (*config.Config, error)
	OpenStore func(ctx context.Context, cfg *config.Config) (storage.Provider, io.Closer, error)
}

// DefaultEnv reads configuration from the environment and opens the Postgres store
func DefaultEnv() Env {
	return Env{Load: config.Load, OpenStore: openPostgres}
}

func openPostgres(ctx context.Context, cfg *config.Config) (storage.Provider, io.Closer, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set; records are only kept in the server's memory")
	}
	p, err := storage.NewPostgresProvider(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return p, p, nil
}

func (e Env) store(ctx context.Context) (storage.Provider, func(), error) {
	cfg, err := e.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	p, closer, err := e.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return p, func() {
		if closer != nil {
			_ = closer.Close()
		}
	}, nil
}
