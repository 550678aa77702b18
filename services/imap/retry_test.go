package imap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), nil, 4, func() error {
		attempts++
		if attempts < 3 {
			return classify("search", fmt.Errorf("too many simultaneous connections"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_AuthFailsImmediately(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), nil, 4, func() error {
		attempts++
		return classify("login", fmt.Errorf("invalid credentials"))
	})

	assert.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, attempts, "bad credentials get exactly one attempt")
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), nil, 3, func() error {
		attempts++
		return classify("fetch", fmt.Errorf("connection reset by peer"))
	})

	assert.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := retryWithBackoff(ctx, nil, 4, func() error {
		attempts++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestRetryWithBackoff_ContextCancelsBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := retryWithBackoff(ctx, nil, 10, func() error {
		return classify("search", fmt.Errorf("rate limit"))
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must interrupt the backoff sleep")
}
