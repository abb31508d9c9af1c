package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for the retrieval and embedding clients.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (not including initial attempt).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which delay increases after each retry.
	Multiplier float64

	// Jitter adds randomness to delay to prevent thundering herd.
	Jitter bool

	// ShouldRetry decides whether an error is worth another attempt.
	// Defaults to IsRetryable.
	ShouldRetry func(error) bool
}

// DefaultRetryConfig returns the default retry policy for backend clients.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NoRetry returns a policy that performs exactly one attempt.
func NoRetry() RetryConfig {
	return RetryConfig{}
}

// Retry executes fn with exponential backoff.
// Non-retryable errors are returned immediately without wrapping.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes fn with exponential backoff and returns its result.
// If the context is cancelled, it returns the context error immediately.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !shouldRetry(err) {
			return zero, err
		}
		lastErr = err

		if attempt >= cfg.MaxRetries {
			break
		}

		waitDelay := delay
		if cfg.Jitter {
			// delay * (0.5 + rand(0, 0.5))
			jitterFactor := 0.5 + rand.Float64()*0.5
			waitDelay = time.Duration(float64(delay) * jitterFactor)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(waitDelay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	if cfg.MaxRetries == 0 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
