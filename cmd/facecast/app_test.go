// cmd/facecast/app_test.go
package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"facecast/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_SucceedsAfterRetry(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("connection refused")
		}
		return nil
	}, 3, time.Millisecond, logger.NewTestLogger(t), "Redis connection")

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("connection refused")
	}, 3, time.Millisecond, logger.NewTestLogger(t), "Redis connection")

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "Redis connection failed after 3 attempts")
}

func TestRetryWithBackoff_CancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	start := time.Now()

	err := retryWithBackoff(ctx, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("connection refused")
	}, 3, time.Minute, logger.NewTestLogger(t), "Redis connection")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 10*time.Second)
}
