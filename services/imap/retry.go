package imap

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"

	"github.com/mailhookhq/mailhook/internal/tracing"
)

const (
	defaultMaxAttempts = 4

	// searchMaxAttempts is more generous: UID SEARCH is the most
	// throttling-prone operation at the big providers.
	searchMaxAttempts = 6
)

// retryWithBackoff runs op up to maxAttempts times with jittered exponential
// backoff between attempts. Only retryable errors (throttle, transient
// network) get another attempt; auth and unknown errors fail immediately.
func retryWithBackoff(ctx context.Context, span opentracing.Span, maxAttempts int, op func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			if span != nil {
				tracing.TraceErr(span, lastErr)
				span.SetTag("retry-attempts", attempt)
			}
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}

	if span != nil {
		tracing.TraceErr(span, lastErr)
		span.SetTag("retry-attempts", maxAttempts)
		span.SetTag("retry-exhausted", true)
	}
	return lastErr
}
