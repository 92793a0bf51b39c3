package services

import (
	"context"
	"time"

	"github.com/agrilink/marketplace-backend/pkg/errors"
	"github.com/agrilink/marketplace-backend/pkg/retry"
)

// readWithRetry retries a read-only storage call on transient faults, bounded
// by retry.StorageConfig, before surfacing Unavailable. Business-rule errors
// pass through on first occurrence; only INTERNAL faults (driver/connection
// failures wrapped by the adapters) are eligible. Writes are never retried
// here: the storage-level uniqueness and conditional-update guards make their
// first outcome the source of truth.
func readWithRetry[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	cfg := retry.StorageConfig()
	delay := cfg.InitialDelay

	var result T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if !errors.IsType(lastErr, errors.ErrorTypeInternal) {
			return result, lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return result, errors.NewUnavailableError(op+" aborted", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return result, errors.NewUnavailableError(op+" unavailable", lastErr)
}
