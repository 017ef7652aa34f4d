package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storyvox/internal/gateway"
	"storyvox/internal/services"
)

const (
	defaultAttempts  = 5
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 10 * time.Second
)

type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	sleep    func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: defaultAttempts, base: defaultBaseDelay, max: defaultMaxDelay}
}

// next decides whether attempt may be followed by another and how long to
// wait first. Rate limits, 408 and 5xx responses, and empty replies are
// retried; everything else, including a time limit, ends the call.
func (p retryPolicy) next(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= p.attempts || ctx.Err() != nil || isFinal(err) {
		return 0, false
	}
	var empty *emptyReplyError
	if errors.As(err, &empty) {
		return p.backoff(attempt), true
	}
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Kind == gateway.KindUnavailable {
		return 0, false
	}
	switch status := gwErr.StatusCode; {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		if gwErr.RetryAfter > 0 {
			return p.clamp(gwErr.RetryAfter), true
		}
		return p.backoff(attempt), true
	default:
		return 0, false
	}
}

// backoff doubles from base for each attempt already made, capped at max.
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	delay := p.base
	for i := 1; i < attempt && delay < p.max; i++ {
		delay *= 2
	}
	return p.clamp(delay)
}

func (p retryPolicy) clamp(d time.Duration) time.Duration {
	if p.max > 0 && d > p.max {
		return p.max
	}
	return max(d, 0)
}

func (p retryPolicy) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if p.sleep != nil {
		p.sleep(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isFinal reports errors that no retry can fix.
func isFinal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, services.ErrTimeout) ||
		errors.Is(err, services.ErrConfiguration)
}
