// Package postgres stores battle journals in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/alienfall/tactics/internal/config"
)

// Pool is the journal store's connection pool.
type Pool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPool connects to the journal database, pinging up to
// cfg.ConnectAttempts times with cfg.ConnectBackoff between tries so a
// simulation started alongside a fresh database container can wait for it.
//
// Precondition: cfg passes config validation; logger is non-nil.
// Postcondition: Returns a pool that answered a ping, or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	attempts := max(cfg.ConnectAttempts, 1)
	start := time.Now()
	for i := 1; ; i++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if i >= attempts {
			pool.Close()
			return nil, fmt.Errorf("pinging %s:%d after %d attempts: %w", cfg.Host, cfg.Port, i, err)
		}
		logger.Warn("journal database not ready",
			zap.Int("attempt", i),
			zap.Duration("backoff", cfg.ConnectBackoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.ConnectBackoff):
		}
	}

	logger.Info("journal database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Pool{pool: pool, logger: logger}, nil
}

// Health checks that the database answers within timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Journal returns a repository for battle journals backed by this pool.
func (p *Pool) Journal() *JournalRepository {
	return NewJournalRepository(p.pool)
}

// Close logs the pool's final counters and releases its connections.
func (p *Pool) Close() {
	s := p.pool.Stat()
	p.logger.Debug("closing journal pool",
		zap.Int64("acquires", s.AcquireCount()),
		zap.Int32("total_conns", s.TotalConns()),
	)
	p.pool.Close()
}

// DB exposes the raw pool for schema setup in tests.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
