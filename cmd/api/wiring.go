package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/authguard/internal/config"
	"github.com/spec-kit/authguard/internal/persistence"
	"github.com/spec-kit/authguard/internal/throttle"
)

type loginLimiter struct {
	limiter throttle.Limiter
	redis   *persistence.Redis
	close   func()
}

// openLimiter builds the login throttle selected by THROTTLE_BACKEND.
func openLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*loginLimiter, error) {
	switch cfg.Throttle.Backend {
	case config.ThrottleMemory:
		l := throttle.NewMemoryLimiter(cfg.Throttle.Attempts, cfg.Throttle.Window, 0)
		return &loginLimiter{limiter: l, close: func() { _ = l.Close() }}, nil

	case config.ThrottleRedis:
		r, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("throttle backend: %w", err)
		}
		l := throttle.NewRedisLimiter(r.Client, cfg.Throttle.Attempts, cfg.Throttle.Window, logger)
		return &loginLimiter{limiter: l, redis: r, close: r.Close}, nil

	case config.ThrottleOff:
		return &loginLimiter{limiter: throttle.Off{}, close: func() {}}, nil

	default:
		return nil, fmt.Errorf("unknown throttle backend %q", cfg.Throttle.Backend)
	}
}
