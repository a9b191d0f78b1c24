package loader

import (
	"context"
	"time"

	"github.com/atlas-cloud/ragdex/internal/domain"
)

const (
	retryAttempts = 3
	retryBaseWait = 500 * time.Millisecond
	retryMaxWait  = 5 * time.Second
)

// withRetry runs fn up to retryAttempts times with doubling waits.
// Non-retryable errors stop immediately.
func withRetry(ctx context.Context, fn func() error) error {
	wait := retryBaseWait

	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !domain.Retryable(err) {
			return err
		}
		if attempt == retryAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, retryMaxWait)
	}
	return err
}
