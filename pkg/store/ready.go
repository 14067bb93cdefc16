package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/imgloader/internal/logger"
)

// WaitReady polls s.Healthcheck with exponential backoff until it succeeds,
// ctx is done or timeout elapses. Network backends (postgres, s3, redis) are
// commonly started alongside the service and may need a few seconds.
func WaitReady(ctx context.Context, s Store, storeType string, timeout time.Duration) error {
	if timeout <= 0 {
		return s.Healthcheck(ctx)
	}

	// NewExponentialBackOff sets Stop, so NextBackOff ends the retry once
	// MaxElapsedTime has passed.
	eb := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(2*time.Second),
		backoff.WithMaxElapsedTime(timeout),
	)
	b := backoff.WithContext(eb, ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := s.Healthcheck(ctx)
		if errors.Is(err, ErrStoreClosed) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Durable store not ready, retrying",
			logger.KeyStoreType, storeType,
			logger.KeyAttempt, attempt,
			"retry_in", wait,
			logger.KeyError, err)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("%s store not ready after %d attempts: %w", storeType, attempt, err)
	}
	return nil
}
