package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"notify_poller/internal/config"
)

func NewStore(cfg *config.Watcher, logger *zap.Logger) (Store, error) {
	switch cfg.Checkpoint.Backend {
	case "memory":
		return NewMemory(), nil
	case "redis":
		store, err := NewRedis(context.Background(), cfg.Checkpoint.RedisAddr, cfg.Checkpoint.RedisPrefix)
		if err != nil {
			logger.Error("redis checkpoint open failed", zap.String("addr", cfg.Checkpoint.RedisAddr), zap.Error(err))
			return nil, err
		}
		return store, nil
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Checkpoint.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create checkpoint dir %s: %w", dir, err)
			}
		}
		store, err := NewSQLite(cfg.Checkpoint.Path)
		if err != nil {
			logger.Error("sqlite checkpoint open failed", zap.String("path", cfg.Checkpoint.Path), zap.Error(err))
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Checkpoint.Backend)
	}
}
