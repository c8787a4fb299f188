package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/retry"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/syncer"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tlmt"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tlmt/gonoop"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tokens"
)

const (
	// DefaultBatchSize bounds how many queue items one invocation claims.
	DefaultBatchSize = 10

	// DefaultDeadline keeps one invocation under the scheduler's own
	// timeout. Checked between items, never inside a running sync.
	DefaultDeadline = 9500 * time.Millisecond
)

// DefaultRetry is the per-item attempt ladder: up to 3 tries, sleeping
// 1s then 2s between them.
var DefaultRetry = retry.Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	MaxDelay:    4 * time.Second,
}

// Syncer runs one integration sync and reports how it went.
type Syncer interface {
	Sync(ctx context.Context, integrationID int64, opts syncer.Options) *syncer.Result
}

// Stats summarizes one Run.
type Stats struct {
	Claimed     int  `json:"claimed"`
	Processed   int  `json:"processed"`
	Succeeded   int  `json:"succeeded"`
	Failed      int  `json:"failed"`
	DeadlineHit bool `json:"deadline_hit"`
}

// Poller drains due sync queue items sequentially within a wall-clock
// budget. Items it claims but cannot reach before the deadline go back to
// pending for the next invocation.
type Poller struct {
	queue        models.SyncQueueRepository
	integrations models.IntegrationRepository
	engine       Syncer
	policy       retry.Policy
	batchSize    int
	deadline     time.Duration
	telemetry    tlmt.Telemetry
	logger       *zap.Logger
}

// Option tunes a Poller.
type Option func(*Poller)

// WithBatchSize overrides how many items one Run may claim.
func WithBatchSize(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithDeadline overrides the per-Run wall-clock budget.
func WithDeadline(d time.Duration) Option {
	return func(p *Poller) {
		p.deadline = d
	}
}

// WithRetryPolicy overrides the per-item attempt ladder.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Poller) {
		p.policy = policy
	}
}

// WithTelemetry sets the sink for per-run usage events.
func WithTelemetry(t tlmt.Telemetry) Option {
	return func(p *Poller) {
		if t != nil {
			p.telemetry = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// New builds a poller over the queue and sync engine.
func New(queue models.SyncQueueRepository, integrations models.IntegrationRepository, engine Syncer, opts ...Option) *Poller {
	p := &Poller{
		queue:        queue,
		integrations: integrations,
		engine:       engine,
		policy:       DefaultRetry,
		batchSize:    DefaultBatchSize,
		deadline:     DefaultDeadline,
		telemetry:    gonoop.New(),
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run claims one batch of due items and syncs them in next_sync_at order.
// It always returns before the deadline plus at most one item's worth of
// work: in-flight syncs are never interrupted, only new items are refused.
func (p *Poller) Run(ctx context.Context) (Stats, error) {
	start := time.Now()

	var stats Stats

	items, err := p.queue.ClaimDue(ctx, start, p.batchSize)
	if err != nil {
		return stats, fmt.Errorf("claim due sync items: %w", err)
	}

	stats.Claimed = len(items)

	for i, item := range items {
		if ctx.Err() != nil {
			p.release(ctx, items[i:])

			break
		}

		if time.Since(start) >= p.deadline {
			stats.DeadlineHit = true

			p.release(ctx, items[i:])
			p.logger.Warn("poll deadline hit, releasing remaining items",
				zap.Int("remaining", len(items)-i))

			break
		}

		if p.processItem(ctx, item) {
			stats.Succeeded++
		} else {
			stats.Failed++
		}

		stats.Processed++
	}

	if stats.Claimed > 0 {
		p.logger.Info("poll finished",
			zap.Int("claimed", stats.Claimed),
			zap.Int("processed", stats.Processed),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed),
			zap.Bool("deadline_hit", stats.DeadlineHit),
			zap.Duration("took", time.Since(start)))
	}

	_ = p.telemetry.Send(ctx, tlmt.NewEvent("sync_poll", map[string]any{
		"claimed":      stats.Claimed,
		"processed":    stats.Processed,
		"succeeded":    stats.Succeeded,
		"failed":       stats.Failed,
		"deadline_hit": stats.DeadlineHit,
	}))

	return stats, nil
}

// processItem syncs one integration with retries and reschedules the item.
// The queue item never gets lost: every path ends in a Reschedule.
func (p *Poller) processItem(ctx context.Context, item models.SyncQueueItem) bool {
	log := p.logger.With(
		zap.Int64("integration_id", item.IntegrationID),
		zap.Int64("queue_item_id", item.ID),
	)

	interval := models.DefaultSyncInterval

	integration, err := p.integrations.Get(ctx, item.IntegrationID)
	if err != nil {
		log.Warn("integration lookup failed, keeping default interval", zap.Error(err))
	} else {
		interval = integration.SyncInterval()
	}

	var lastErr error

	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		result := p.engine.Sync(ctx, item.IntegrationID, syncer.Options{})

		lastErr = result.Err()
		if lastErr == nil {
			p.reschedule(ctx, item.ID, interval)

			return true
		}

		if isFatal(lastErr) {
			log.Warn("sync failed, not retryable this run", zap.Error(lastErr))

			break
		}

		if attempt == p.policy.MaxAttempts {
			break
		}

		log.Info("sync attempt failed, backing off",
			zap.Int("attempt", attempt), zap.Error(lastErr))

		if err := retry.Sleep(ctx, p.policy.Delay(attempt)); err != nil {
			break
		}
	}

	// A failing integration still gets retried, just never faster than the
	// failure floor, so it cannot starve healthy ones.
	backoff := interval
	if backoff < models.MinFailureBackoff {
		backoff = models.MinFailureBackoff
	}

	p.reschedule(ctx, item.ID, backoff)
	log.Warn("sync failed, rescheduled with backoff",
		zap.Duration("backoff", backoff), zap.Error(lastErr))

	return false
}

// isFatal reports errors that more attempts cannot fix: the user has to
// reconnect or fix the integration first.
func isFatal(err error) bool {
	return errors.Is(err, tokens.ErrReauthRequired) ||
		errors.Is(err, models.ErrInvalidAccountID) ||
		errors.Is(err, models.ErrInvalidListingID)
}

func (p *Poller) reschedule(ctx context.Context, itemID int64, delay time.Duration) {
	if err := p.queue.Reschedule(ctx, itemID, time.Now().Add(delay)); err != nil {
		p.logger.Error("reschedule failed",
			zap.Int64("queue_item_id", itemID), zap.Error(err))
	}
}

func (p *Poller) release(ctx context.Context, items []models.SyncQueueItem) {
	if len(items) == 0 {
		return
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	if err := p.queue.Release(ctx, ids); err != nil {
		p.logger.Error("release of unprocessed items failed",
			zap.Int("count", len(ids)), zap.Error(err))
	}
}
