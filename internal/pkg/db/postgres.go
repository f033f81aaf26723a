// Package db opens the PostgreSQL pool backing the account and session store
// and keeps its schema current.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"telegram-wager-bot/internal/config"
)

// Pool is the store's connection pool.
type Pool struct {
	*pgxpool.Pool
}

// withDefault returns v, or def when v is unset.
func withDefault(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

// poolConfig translates the database section into pgxpool settings.
func poolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Every settlement holds a connection for the whole transaction, so the
	// pool floor stays at a quarter of the ceiling.
	pc.MaxConns = int32(max(cfg.PoolSize, 1))
	pc.MinConns = max(pc.MaxConns/4, 1)
	pc.ConnConfig.ConnectTimeout = withDefault(cfg.ConnectTimeout, 10*time.Second)
	pc.MaxConnLifetime = withDefault(cfg.MaxConnLifetime, time.Hour)
	pc.MaxConnIdleTime = withDefault(cfg.MaxConnIdleTime, 30*time.Minute)
	pc.HealthCheckPeriod = 30 * time.Second
	return pc, nil
}

// NewPool connects to PostgreSQL, verifies the connection and applies the
// schema migrations.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", pc.MaxConns).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Msg("PostgreSQL store ready")
	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("PostgreSQL connection pool closed")
	}
}
