package store

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Config selects the storage backend.
type Config struct {
	// Mode is one of "auto", "postgres", "sqlite" or "memory".
	Mode        string
	DatabaseURL string
	SQLitePath  string
}

// New resolves a Store from config. In auto mode it prefers Postgres when a
// DATABASE_URL is present, then a SQLite file, and falls back to the seeded
// in-memory store so the gateway always starts.
func New(ctx context.Context, cfg Config) (Store, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("store mode postgres requires DATABASE_URL")
		}
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("store mode sqlite requires SQLITE_PATH")
		}
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "memory":
		return NewMemoryStore(), nil
	case "auto":
		if cfg.DatabaseURL != "" {
			s, err := NewPostgresStore(ctx, cfg.DatabaseURL)
			if err == nil {
				log.Printf("store backend: postgres")
				return s, nil
			}
			log.Printf("postgres unavailable, trying next backend: %v", err)
		}
		if cfg.SQLitePath != "" {
			s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
			if err == nil {
				log.Printf("store backend: sqlite (%s)", cfg.SQLitePath)
				return s, nil
			}
			log.Printf("sqlite unavailable, falling back to memory: %v", err)
		}
		log.Printf("store backend: memory")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store mode %q", cfg.Mode)
	}
}
