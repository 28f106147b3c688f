// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"consigna/pkg/logger"
)

const applicationName = "consigna"

// PoolSettings sizes the connection pool. Zero fields keep the defaults below.
type PoolSettings struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// A CLI run holds at most a couple of connections; a long-lived process
// sharing the database gets the same ceiling.
const (
	defaultMaxConns        = 8
	defaultMinConns        = 0
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 5 * time.Minute
)

// poolConfig parses the DSN and applies the settings. Sessions run in UTC
// so dates stored by the ledger do not shift with the server locale.
func poolConfig(s PoolSettings) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(s.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = pick(s.MaxConns, defaultMaxConns)
	cfg.MinConns = pick(s.MinConns, defaultMinConns)
	cfg.MaxConnLifetime = pick(s.MaxConnLifetime, defaultMaxConnLifetime)
	cfg.MaxConnIdleTime = pick(s.MaxConnIdleTime, defaultMaxConnIdleTime)
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}

	params := cfg.ConnConfig.RuntimeParams
	if params["application_name"] == "" {
		params["application_name"] = applicationName
	}
	params["timezone"] = "UTC"
	return cfg, nil
}

func pick[T int32 | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// OpenPool connects and pings. The returned close func logs pool usage
// before releasing the connections.
func OpenPool(ctx context.Context, s PoolSettings) (*pgxpool.Pool, func(), error) {
	cfg, err := poolConfig(s)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Debug(ctx, "postgres connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
	)

	closeFn := func() {
		stat := pool.Stat()
		logger.Debug(ctx, "postgres pool closing",
			"acquired_total", stat.AcquireCount(),
			"acquire_wait", stat.AcquireDuration(),
			"canceled_acquires", stat.CanceledAcquireCount(),
			"max_conns", stat.MaxConns(),
		)
		pool.Close()
	}
	return pool, closeFn, nil
}
