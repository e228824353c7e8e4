package main

import (
	"context"
	"fmt"
	"io"

	"github.com/abricot-app/abricot/db"
	"github.com/abricot-app/abricot/internal/ai"
	"github.com/abricot-app/abricot/internal/assignment"
	"github.com/abricot-app/abricot/internal/config"
	"github.com/abricot-app/abricot/internal/logger"
	"gorm.io/gorm"
)

// bootstrap loads configuration, installs the logger and opens the database.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Init(cfg.Log); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	conn, err := db.ConnectDatabase(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	return cfg, conn, nil
}

// newLocker picks the per-task lock backend. Redis is needed once more than
// one API process serves the same database.
func newLocker(cfg config.AssignmentConfig) (assignment.Locker, io.Closer, error) {
	switch cfg.Lock {
	case "redis":
		locker, err := assignment.NewRedisLocker(cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return locker, locker, nil
	case "local", "":
		return assignment.NewLocalLocker(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown ASSIGNMENT_LOCK %q", cfg.Lock)
	}
}

// newGenerator returns nil when no API key is configured; generation
// requests then fail with an upstream error.
func newGenerator(ctx context.Context, cfg config.AIConfig) (*ai.Generator, io.Closer, error) {
	if cfg.APIKey == "" {
		logger.GetLogger().Warn("AI_API_KEY not set, task generation disabled")
		return nil, nil, nil
	}

	opts := ai.Options{
		Models:   cfg.Models,
		Attempts: cfg.Attempts,
		Backoff:  cfg.Backoff,
		Timeout:  cfg.Timeout,
	}

	switch cfg.Provider {
	case "gemini":
		client, err := ai.NewGeminiClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("create gemini client: %w", err)
		}
		return ai.NewGenerator(client, opts), client, nil
	case "mistral", "":
		return ai.NewGenerator(ai.NewChatClient(cfg.APIKey, cfg.BaseURL), opts), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.Provider)
	}
}
