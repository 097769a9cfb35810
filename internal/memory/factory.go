package memory

import (
	"context"
	"fmt"
	"strings"
)

// Options selects a history backend.
type Options struct {
	// Backend is auto, memory, postgres, redis or sqlite. Auto picks the
	// first configured of postgres, redis, sqlite and falls back to memory.
	Backend     string
	DatabaseURL string
	RedisURL    string
	SQLitePath  string
}

// NewStore creates the configured store.
func NewStore(ctx context.Context, opts Options) (Store, string, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" || backend == "auto" {
		switch {
		case strings.TrimSpace(opts.DatabaseURL) != "":
			backend = "postgres"
		case strings.TrimSpace(opts.RedisURL) != "":
			backend = "redis"
		case strings.TrimSpace(opts.SQLitePath) != "":
			backend = "sqlite"
		default:
			backend = "memory"
		}
	}

	switch backend {
	case "memory":
		return NewInMemoryStore(), backend, nil
	case "postgres":
		if strings.TrimSpace(opts.DatabaseURL) == "" {
			return nil, "", fmt.Errorf("postgres history store requires DATABASE_URL")
		}
		s, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return s, backend, nil
	case "redis":
		if strings.TrimSpace(opts.RedisURL) == "" {
			return nil, "", fmt.Errorf("redis history store requires REDIS_URL")
		}
		s, err := NewRedisStore(ctx, opts.RedisURL)
		if err != nil {
			return nil, "", err
		}
		return s, backend, nil
	case "sqlite":
		if strings.TrimSpace(opts.SQLitePath) == "" {
			return nil, "", fmt.Errorf("sqlite history store requires SQLITE_PATH")
		}
		s, err := NewSQLiteStore(ctx, opts.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		return s, backend, nil
	default:
		return nil, "", fmt.Errorf("unknown history store %q", opts.Backend)
	}
}
