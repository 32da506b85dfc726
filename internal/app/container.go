// Package app wires the service dependencies into a single container shared
// by the HTTP layer and the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/verdantlabs/chat-admin/internal/auth"
	"github.com/verdantlabs/chat-admin/internal/config"
	"github.com/verdantlabs/chat-admin/internal/limits"
	"github.com/verdantlabs/chat-admin/internal/observability"
	"github.com/verdantlabs/chat-admin/internal/services/adminlimit"
	"github.com/verdantlabs/chat-admin/internal/services/usage"
	"github.com/verdantlabs/chat-admin/internal/store"
)

// Container holds the constructed services.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	DBPool *pgxpool.Pool
	Redis  *redis.Client
	Store  *store.Store

	Usage         *usage.Service
	AdminLimits   *adminlimit.Service
	AdminAuth     *auth.Service
	LoginLimiter  *limits.LoginLimiter
	Observability *observability.Provider
}

// NewContainer constructs the service graph on top of already-established
// database and Redis connections.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := store.New(pool)

	usageService := usage.NewService(st, cfg.Usage.DefaultDailyTokenCap)
	limitService := adminlimit.NewService(st, cfg.Usage.DefaultDailyTokenCap)

	authService, err := auth.NewService(cfg.Session, st)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	if err := authService.EnsureBootstrapAdmin(ctx, cfg.Bootstrap); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	c := &Container{
		Config:       cfg,
		Logger:       logger,
		DBPool:       pool,
		Redis:        redisClient,
		Store:        st,
		Usage:        usageService,
		AdminLimits:  limitService,
		AdminAuth:    authService,
		LoginLimiter: limits.NewLoginLimiter(redisClient, cfg.Login.AttemptsPerMinute),
	}

	if cfg.Metrics.Enabled {
		c.Observability = observability.New()
		usageService.SetMetrics(c.Observability)
	}

	return c, nil
}

// Close releases the container's connections.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DBPool != nil {
		c.DBPool.Close()
	}
}
