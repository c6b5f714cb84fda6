package gcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// retrySchedule is the backoff used at every upstream I/O call:
// base 250ms, factor 2, max 3 attempts total.
var retrySchedule = []time.Duration{250 * time.Millisecond, 500 * time.Millisecond}

// isRetryableError checks whether an error is a transient upstream failure
// worth retrying: rate limits (including any status that isRetryableStatus
// maps onto a "rate limit" message), 503 responses, timeouts, and refused
// connections. Other 5xx messages are not retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection refused")
}

// isRetryableStatus checks whether an HTTP status code warrants a retry.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusBadGateway ||
		code == http.StatusGatewayTimeout
}

// withRetry executes fn up to len(retrySchedule)+1 times, retrying on
// transient errors with exponential backoff. After retries are exhausted
// the last error is returned for the caller to classify as upstream
// unavailable.
func withRetry[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err == nil || !isRetryableError(err) {
		return result, err
	}

	for i, delay := range retrySchedule {
		slog.Warn("upstream call failed, retrying",
			"operation", operation,
			"attempt", i+2,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("%s: context cancelled during retry: %w", operation, ctx.Err())
		case <-time.After(delay):
		}

		result, err = fn()
		if err == nil {
			slog.Info("upstream retry succeeded", "operation", operation, "attempt", i+2)
			return result, nil
		}
		if !isRetryableError(err) {
			return result, err
		}
	}

	slog.Error("upstream retries exhausted", "operation", operation, "attempts", len(retrySchedule)+1)
	return result, err
}
