package assistant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/academic-reader/internal/backend"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
)

const (
	// gpt-5-mini allows 2M tokens/min; stay at 1.8M
	tokensPerSecond = 30000
	burstTokens     = 60000

	maxRetries = 5
)

var (
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 32 * time.Second
)

// NewLimiter returns the token bucket shared by every assistant call.
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(tokensPerSecond), burstTokens)
}

// EstimateTokens is a rough count for limiter accounting: about four
// characters per token, never below one.
func EstimateTokens(text string) int {
	n := len(text)/4 + 1
	if n > burstTokens {
		n = burstTokens
	}
	return n
}

// RateLimitedCall waits for limiter approval, then runs fn, retrying 429
// responses with exponential backoff. A nil limiter skips the wait.
func RateLimitedCall[T any](ctx context.Context, limiter *rate.Limiter, estimatedTokens int, log logger.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if limiter != nil {
		if err := limiter.WaitN(ctx, estimatedTokens); err != nil {
			return zero, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(baseRetryDelay) * math.Pow(2, float64(attempt-1)))
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			log.Info("Retry attempt %d/%d after %v delay", attempt, maxRetries, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("Retry succeeded on attempt %d", attempt)
			}
			return result, nil
		}
		lastErr = err

		if !isRateLimitError(err) {
			return zero, err
		}
		log.Warn("Rate limit error (429) on attempt %d/%d: %v", attempt+1, maxRetries+1, err)
	}

	return zero, fmt.Errorf("max retries (%d) exceeded, last error: %w", maxRetries, lastErr)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429
	}
	msg := err.Error()
	for _, s := range []string{"429", "rate limit", "rate_limit_exceeded", "Too Many Requests"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
