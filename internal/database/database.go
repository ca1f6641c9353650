// Package database owns the PostgreSQL connection pool and schema migrations.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/config"
)

// Service is what handlers depend on.
type Service interface {
	GetPool() *pgxpool.Pool
	Health() map[string]string
	Close()
}

type service struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection with a ping.
func New(ctx context.Context, cfg *config.DBConfig) (Service, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	zap.L().Info("connected to database", zap.String("host", poolCfg.ConnConfig.Host), zap.String("database", poolCfg.ConnConfig.Database))
	return &service{pool: pool}, nil
}

func (s *service) GetPool() *pgxpool.Pool {
	return s.pool
}

// Health reports pool status for /api/health.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		return map[string]string{"status": "down", "error": err.Error()}
	}

	st := s.pool.Stat()
	return map[string]string{
		"status":           "up",
		"total_conns":      fmt.Sprint(st.TotalConns()),
		"idle_conns":       fmt.Sprint(st.IdleConns()),
		"acquired_conns":   fmt.Sprint(st.AcquiredConns()),
		"max_conns":        fmt.Sprint(st.MaxConns()),
		"acquire_count":    fmt.Sprint(st.AcquireCount()),
		"empty_acquire_ct": fmt.Sprint(st.EmptyAcquireCount()),
	}
}

func (s *service) Close() {
	zap.L().Info("closing database pool")
	s.pool.Close()
}
