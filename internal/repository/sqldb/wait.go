package sqldb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Pinger is satisfied by *DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// WaitReady pings p every interval until it answers or timeout elapses.
// Each failed attempt is logged at warn level. It is used at startup when
// the database container may still be booting.
func WaitReady(ctx context.Context, p Pinger, interval, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempt := 0
	backoff := retry.NewConstant(interval)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := p.PingContext(ctx); err != nil {
			logger.Warn("database unavailable, waiting",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqldb: database not ready after %s (%d attempts): %w", timeout, attempt, err)
	}

	logger.Info("database available", slog.Int("attempts", attempt))
	return nil
}
