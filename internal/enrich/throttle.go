package enrich

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kulturkalender/kulturkalender/internal/config"
)

// Throttle spaces out consecutive calls to one provider. Each wait sleeps a
// random duration inside the configured [min, max] window on top of a hard
// rate floor, and the session identity rotates after the configured number
// of requests so a provider never sees one long-running session.
type Throttle struct {
	cfg     config.ThrottleConfig
	limiter *rate.Limiter

	mu      sync.Mutex
	calls   int
	session string

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewThrottle creates a throttle from the enrichment configuration.
func NewThrottle(cfg config.ThrottleConfig) *Throttle {
	limit := rate.Inf
	if cfg.MinDelay() > 0 {
		limit = rate.Every(cfg.MinDelay())
	}
	return &Throttle{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		session: uuid.NewString(),
		sleep:   sleepCtx,
	}
}

// Wait blocks until the next call may proceed and returns the session
// identity to use for it.
func (t *Throttle) Wait(ctx context.Context) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	if jitter := t.jitter(); jitter > 0 {
		if err := t.sleep(ctx, jitter); err != nil {
			return "", err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls++
	if t.cfg.SessionMaxRequests > 0 && t.calls > t.cfg.SessionMaxRequests {
		t.session = uuid.NewString()
		t.calls = 1
	}

	return t.session, nil
}

// Session returns the current session identity without consuming a slot.
func (t *Throttle) Session() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// jitter returns a random extra delay up to (max - min); the min itself is
// already enforced by the rate limiter.
func (t *Throttle) jitter() time.Duration {
	span := t.cfg.MaxDelay() - t.cfg.MinDelay()
	if span <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(span)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
