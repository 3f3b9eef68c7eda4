package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errCircuitOpen is returned while the breaker rejects calls.
var errCircuitOpen = errors.New("circuit breaker open")

// breakerCooldown is how long an open breaker rejects calls.
const breakerCooldown = 30 * time.Second

// IsTransientError reports whether a gRPC error is worth retrying:
// Unavailable, DeadlineExceeded, Aborted or ResourceExhausted.
func IsTransientError(err error) bool {
	st, ok := status.FromError(err)
	if err == nil || !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	}
	return false
}

// breaker opens after threshold consecutive transient failures and
// closes again once the cooldown has passed or a call succeeds.
type breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	openedAt  time.Time
	now       func() time.Time
}

func newBreaker(threshold int) *breaker {
	return &breaker{threshold: threshold, now: time.Now}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	if b.now().Sub(b.openedAt) > breakerCooldown {
		b.failures = 0
		return true
	}
	return false
}

func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

// retry runs fn until it succeeds, fails permanently or exhausts
// maxRetries. The wait starts at backoff and doubles per attempt.
func retry(ctx context.Context, b *breaker, op string, maxRetries int, backoff time.Duration, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if !b.allow() {
			return fmt.Errorf("%s: %w", op, errCircuitOpen)
		}
		err := fn()
		if err == nil {
			b.record(nil)
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", op, err)
		}
		b.record(err)
		if attempt == maxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", op, maxRetries, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s canceled: %w", op, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
}
