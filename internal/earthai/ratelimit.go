package earthai

import (
	"context"
	"sync"
	"time"

	"terrarisk/internal/config"
)

const (
	defaultAttempts     = 3
	defaultRetryBackoff = 300 * time.Millisecond
)

// pacer schedules planner calls: at most RPS calls per second after an
// initial burst, and after a failed attempt every caller is held back by an
// exponential backoff. Retries therefore count against the same rate.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	burst    int
	backoff  time.Duration
	attempts int

	// next is when the call after the current burst may start; hold is set
	// by failures.
	next time.Time
	hold time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func newPacer(cfg config.EarthAIConfig) *pacer {
	p := &pacer{
		burst:    cfg.Burst,
		backoff:  cfg.RetryBackoff,
		attempts: cfg.MaxAttempts,
		now:      time.Now,
		sleep:    sleepContext,
	}
	if cfg.RPS > 0 {
		p.interval = time.Duration(float64(time.Second) / cfg.RPS)
	}
	if p.burst <= 0 {
		p.burst = 1
	}
	if p.backoff <= 0 {
		p.backoff = defaultRetryBackoff
	}
	if p.attempts <= 0 {
		p.attempts = defaultAttempts
	}
	return p
}

// reserve books the next call slot and returns how long to wait for it.
func (p *pacer) reserve() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	start := now
	if p.hold.After(start) {
		start = p.hold
	}
	if p.interval <= 0 {
		return start.Sub(now)
	}
	next := p.next
	if next.Before(start) {
		next = start
	}
	at := next.Add(-time.Duration(p.burst-1) * p.interval)
	if at.Before(start) {
		at = start
	}
	p.next = next.Add(p.interval)
	return at.Sub(now)
}

// Wait blocks until the caller may issue its call.
func (p *pacer) Wait(ctx context.Context) error {
	if d := p.reserve(); d > 0 {
		return p.sleep(ctx, d)
	}
	return ctx.Err()
}

// Failed records a failed attempt (0-based) and holds back later calls.
func (p *pacer) Failed(attempt int) {
	d := p.backoff << attempt
	p.mu.Lock()
	defer p.mu.Unlock()
	if until := p.now().Add(d); until.After(p.hold) {
		p.hold = until
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
