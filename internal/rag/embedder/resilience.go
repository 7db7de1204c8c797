package embedder

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"manifold/internal/config"
	"manifold/internal/rag/kind"
)

// retryWithBackoff retries fn with bounded exponential backoff and jitter.
// A dimension-mismatch error is permanent and is never retried.
func retryWithBackoff(ctx context.Context, cfg config.EmbeddingConfig, fn func() ([][]float32, error)) ([][]float32, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(cfg.InitialDelayMs) * time.Millisecond
	b.MaxInterval = time.Duration(cfg.MaxDelayMs) * time.Millisecond
	b.Multiplier = cfg.BackoffMultiplier
	if !cfg.UseJitter {
		b.RandomizationFactor = 0
	}

	return backoff.Retry(ctx, func() ([][]float32, error) {
		out, err := fn()
		if err != nil {
			if kind.Is(err, kind.ErrDimensionMismatch) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return out, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(maxAttempts(cfg))))
}

func maxAttempts(cfg config.EmbeddingConfig) int {
	if cfg.MaxRetryAttempts <= 0 {
		return 1
	}
	return cfg.MaxRetryAttempts
}
