package controller

import (
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"github.com/newsbench/newsloader/internal/common/loadcontext"
	"github.com/newsbench/newsloader/internal/common/loaderrors"
	"github.com/newsbench/newsloader/internal/common/logging"
)

// RetryPolicy retries transient failures with exponential back-off.  Integrity and constraint violations,
// and cancellation of the caller's context, are never retried.
type RetryPolicy struct {
	Attempts       uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxJitter      time.Duration
	// Called before every retry.
	OnRetry func(attempt uint, err error)
}

// Do runs op until it succeeds, fails with a non-retryable error or the attempts run out, in which case the
// last error is returned inside an ErrMaxRetriesExceeded.
func (p RetryPolicy) Do(ctx *loadcontext.Context, description string, op func(ctx *loadcontext.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delayType := retry.BackOffDelay
	if p.MaxJitter > 0 {
		delayType = retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)
	}
	retryable := func(err error) bool {
		return ctx.Err() == nil && loaderrors.IsRetryable(err)
	}

	err := retry.Do(
		func() error {
			return op(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.InitialBackoff),
		retry.MaxDelay(p.MaxBackoff),
		retry.MaxJitter(p.MaxJitter),
		retry.DelayType(delayType),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			if n+1 >= attempts {
				return
			}
			logging.WithStacktrace(ctx.Log, err).Warnf("Retryable error during %s, attempt %d of %d", description, n+1, attempts)
			if p.OnRetry != nil {
				p.OnRetry(n+1, err)
			}
		}),
	)
	if err == nil {
		return nil
	}
	if attempts > 1 && retryable(err) {
		return errors.WithStack(&loaderrors.ErrMaxRetriesExceeded{
			Message:   fmt.Sprintf("gave up on %s after %d attempts", description, attempts),
			LastError: err,
		})
	}
	return err
}
