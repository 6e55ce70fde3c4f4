package controller

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsbench/newsloader/internal/common/loadcontext"
	"github.com/newsbench/newsloader/internal/common/loaderrors"
)

func TestRetryPolicy_RetriesTransientErrors(t *testing.T) {
	var retries []uint
	policy := RetryPolicy{Attempts: 4, OnRetry: func(attempt uint, _ error) { retries = append(retries, attempt) }}
	calls := 0
	err := policy.Do(testContext(), "op", func(*loadcontext.Context) error {
		calls++
		if calls < 3 {
			return &loaderrors.ErrConnectivity{Operation: "insert", Cause: io.EOF}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []uint{1, 2}, retries)
}

func TestRetryPolicy_DoesNotRetryConstraintViolations(t *testing.T) {
	policy := RetryPolicy{Attempts: 5}
	calls := 0
	err := policy.Do(testContext(), "op", func(*loadcontext.Context) error {
		calls++
		return errors.WithStack(&loaderrors.ErrConstraintViolation{Table: "news_tags"})
	})
	var constraintErr *loaderrors.ErrConstraintViolation
	assert.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_GivesUp(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, MaxJitter: time.Millisecond}
	calls := 0
	err := policy.Do(testContext(), "op", func(*loadcontext.Context) error {
		calls++
		return io.EOF
	})
	var maxRetriesErr *loaderrors.ErrMaxRetriesExceeded
	require.ErrorAs(t, err, &maxRetriesErr)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_SingleAttempt(t *testing.T) {
	policy := RetryPolicy{}
	calls := 0
	err := policy.Do(testContext(), "op", func(*loadcontext.Context) error {
		calls++
		return io.EOF
	})
	assert.ErrorIs(t, err, io.EOF)
	var maxRetriesErr *loaderrors.ErrMaxRetriesExceeded
	assert.False(t, errors.As(err, &maxRetriesErr))
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_StopsOnCancellation(t *testing.T) {
	ctx, cancel := loadcontext.WithCancel(testContext())
	policy := RetryPolicy{Attempts: 5}
	calls := 0
	err := policy.Do(ctx, "op", func(*loadcontext.Context) error {
		calls++
		cancel()
		return errors.WithStack(context.Canceled)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
