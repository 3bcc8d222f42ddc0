package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connection retry bounds for startup. The database container often
// comes up after the service; startup waits through the window and then
// aborts for good.
const (
	maxConnectAttempts = 30
	connectBackoff     = 1 * time.Second
	pingTimeout        = 5 * time.Second
)

// Connect creates a PostgreSQL connection pool and verifies connectivity,
// retrying up to maxConnectAttempts with fixed backoff. After the
// ceiling the last error is returned and startup must abort.
//
// The returned cleanup closes the pool.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, func(), error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = pool.Ping(pingCtx)
		cancel()

		if lastErr == nil {
			cleanup := func() { pool.Close() }
			return pool, cleanup, nil
		}

		slog.Warn("database connection attempt failed",
			"attempt", attempt,
			"max_attempts", maxConnectAttempts,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, nil, fmt.Errorf("connecting to database: %w", ctx.Err())
		case <-time.After(connectBackoff):
		}
	}

	pool.Close()
	return nil, nil, fmt.Errorf("connecting to database after %d attempts: %w", maxConnectAttempts, lastErr)
}
