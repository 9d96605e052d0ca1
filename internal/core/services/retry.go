package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// retryBaseDelay is the wait before the second attempt; it doubles after each failure.
const retryBaseDelay = 200 * time.Millisecond

// retryWithBackoff calls op up to attempts times with exponential backoff.
// It returns the last error, or ctx.Err() if cancelled while waiting.
func retryWithBackoff(ctx context.Context, attempts int, baseDelay time.Duration, op func() error) error {
	if attempts <= 0 {
		return fmt.Errorf("%w: attempts must be positive, got %d", domain.ErrInvalidConfiguration, attempts)
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("Succeeded on attempt %d/%d", attempt, attempts)
			}
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.Debug("Attempt %d/%d failed: %v", attempt, attempts, lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}
