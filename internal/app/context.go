package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"whsper/internal/config"
	"whsper/internal/db"
	"whsper/internal/store"
	"whsper/internal/store/badger"
	"whsper/internal/store/sqlite"
)

// NewLogger builds the process logger from the log section of cfg.
func NewLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// OpenStore opens the backend named in cfg inside workspace.
func OpenStore(ctx context.Context, workspace string, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, db.Config{Workspace: workspace, Path: cfg.StoragePath(workspace)})
		if err != nil {
			return nil, err
		}
		log.Debug("opened store", "backend", cfg.Storage.Backend, "path", s.Path)
		return s, nil
	case config.BackendBadger:
		bcfg := badger.DefaultConfig(cfg.StoragePath(workspace))
		bcfg.SyncWrites = cfg.Storage.SyncWrites
		bcfg.Logger = log.With("component", "badger")
		s, err := badger.Open(bcfg)
		if err != nil {
			return nil, err
		}
		log.Debug("opened store", "backend", cfg.Storage.Backend, "path", bcfg.Path)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// ResolveConfig loads whsper.yml from workspace (defaults when absent) and
// applies a backend override from flags or environment.
func ResolveConfig(workspace, backendOverride, levelOverride string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if backendOverride != "" {
		cfg.Storage.Backend = backendOverride
	}
	if levelOverride != "" {
		cfg.Log.Level = levelOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
