package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/five82/climdo/internal/api"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

// Fetcher is a store that can resync itself from the server.
type Fetcher interface {
	Fetch(ctx context.Context) error
}

// StartPoller launches a background goroutine that refetches every store at
// a fixed cadence, backing off while the server keeps failing. It stops when
// ctx is cancelled or the session can no longer be refreshed. It returns
// immediately; the returned channel is closed when the goroutine exits.
func StartPoller(ctx context.Context, logger *slog.Logger, interval time.Duration, stores ...Fetcher) <-chan struct{} {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		failures := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			err := refresh(ctx, stores...)
			switch {
			case err == nil:
				failures = 0
			case errors.Is(err, api.KindUnauthorized):
				logger.Warn("poller stopped: session expired", "error", err)
				return
			case ctx.Err() != nil:
				return
			default:
				failures++
				logger.Warn("poll failed", "failures", failures, "error", err)
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
	return done
}

// refresh fetches every store and joins their errors.
func refresh(ctx context.Context, stores ...Fetcher) error {
	var errs []error
	for _, s := range stores {
		if err := s.Fetch(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for range failures {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
