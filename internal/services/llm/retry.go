package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryPolicy decides whether and how long to wait between completion
// attempts. Delays double from base and never exceed max.
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	sleep    func(time.Duration)
}

type retryable interface {
	retryAfter() (time.Duration, bool)
}

func (p retryPolicy) maxAttempts() int {
	return max(p.attempts, 1)
}

// delay returns the wait before attempt+1, or false when err is final.
func (p retryPolicy) delay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if err == nil || attempt >= p.maxAttempts() || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var r retryable
	if errors.As(err, &r) {
		after, ok := r.retryAfter()
		if !ok {
			return 0, false
		}
		if after > 0 {
			return p.clamp(after), true
		}
		return p.backoff(attempt), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoff(attempt), true
	}
	return 0, false
}

func (p retryPolicy) ceiling() time.Duration {
	if p.max <= 0 {
		return defaultRetryMaxDelay
	}
	return p.max
}

// backoff yields base, 2*base, 4*base, ... for attempts 1, 2, 3, ...
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	delay := p.base
	for i := 1; i < attempt && delay < p.ceiling(); i++ {
		delay *= 2
	}
	return p.clamp(delay)
}

func (p retryPolicy) clamp(d time.Duration) time.Duration {
	return min(max(d, 0), p.ceiling())
}

func (p retryPolicy) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
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

// parseRetryAfter accepts both forms of the header: delta seconds and an
// HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, seconds >= 0
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d >= 0 {
			return d, true
		}
	}
	return 0, false
}
