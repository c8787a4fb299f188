package retry

import (
	"context"
	"time"
)

// Policy describes a bounded exponential backoff: attempt n sleeps
// BaseDelay<<(n-1), capped at MaxDelay. The same policy drives both the
// marketplace HTTP client and the queue poller.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default is the marketplace contract: up to three retries with 1s/2s/4s
// between them, four attempts in total.
var Default = Policy{
	MaxAttempts: 4,
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
}

// Delay returns the sleep before retrying after the given attempt
// (attempts count from 1).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}

	return d
}

// DelayWithHint prefers a server-provided hint (Retry-After) over the
// computed backoff, still capped at MaxDelay.
func (p Policy) DelayWithHint(attempt int, hint time.Duration) time.Duration {
	if hint <= 0 {
		return p.Delay(attempt)
	}

	if p.MaxDelay > 0 && hint > p.MaxDelay {
		return p.MaxDelay
	}

	return hint
}

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
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
