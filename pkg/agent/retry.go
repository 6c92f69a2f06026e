package agent

import (
	"context"
	"math/rand"
	"time"

	"atlas/pkg/agent/llmerrors"
	"atlas/pkg/logx"
)

// retryingClient wraps an LLMClient with classified-error retry behavior.
type retryingClient struct {
	inner  LLMClient
	logger *logx.Logger
}

// WithRetry returns an LLMClient that retries retryable classified errors
// with exponential backoff per the llmerrors retry tables.
func WithRetry(inner LLMClient, logger *logx.Logger) LLMClient {
	return &retryingClient{
		inner:  inner,
		logger: logger,
	}
}

// Complete implements the LLMClient interface.
func (c *retryingClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	var lastErr error

	attempt := 0
	for {
		resp, err := c.inner.Complete(ctx, in)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		classified := llmerrors.Classify(err)
		retryCfg := classified.GetRetryConfig()
		if !classified.IsRetryable() || attempt >= retryCfg.MaxRetries {
			return CompletionResponse{}, lastErr
		}

		delay := backoffDelay(retryCfg, attempt)
		c.logger.Warn("LLM call failed (%s), retry %d/%d in %s: %v",
			classified.Type.String(), attempt+1, retryCfg.MaxRetries, delay, err)

		select {
		case <-ctx.Done():
			return CompletionResponse{}, ctx.Err()
		case <-time.After(delay):
		}
		attempt++
	}
}

// GetModelName returns the model name of the wrapped client.
func (c *retryingClient) GetModelName() string {
	return c.inner.GetModelName()
}

// backoffDelay computes the exponential backoff delay with jitter for an attempt.
func backoffDelay(cfg llmerrors.RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= cfg.BackoffFactor
	}
	if max := float64(cfg.MaxDelay); cfg.MaxDelay > 0 && delay > max {
		delay = max
	}
	// Up to 25% jitter to avoid synchronized retries.
	jitter := delay * 0.25 * rand.Float64() //nolint:gosec // Jitter does not need crypto randomness
	return time.Duration(delay + jitter)
}
