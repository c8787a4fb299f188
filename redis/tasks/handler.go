// Package tasks defines the queue task types and their worker-side handler.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/syncer"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tokens"
)

// Syncer runs one marketplace sync for an integration.
type Syncer interface {
	Sync(ctx context.Context, integrationID int64, opts syncer.Options) *syncer.Result
}

// Handler processes queue tasks.
type Handler struct {
	engine      Syncer
	taskTimeout time.Duration
	logger      *zap.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTaskTimeout bounds a single task execution.
func WithTaskTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		if timeout > 0 {
			h.taskTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler builds the task handler around the sync engine.
func NewHandler(engine Syncer, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:      engine,
		taskTimeout: 30 * time.Second,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ProcessTask dispatches a task by type. Errors wrapping asynq.SkipRetry
// drop the task; anything else is retried by the server's delay policy.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	ctx, cancel := context.WithTimeout(ctx, h.taskTimeout)
	defer cancel()

	switch task.Type() {
	case TypeSyncIntegration:
		return h.processSync(ctx, task)
	case TypeHealthCheck, TypeConnectionTest:
		return nil
	default:
		return fmt.Errorf("unknown task type %q: %w", task.Type(), asynq.SkipRetry)
	}
}

func (h *Handler) processSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSyncPayload(task.Payload())
	if err != nil {
		// A payload that never parses will never parse on retry either.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		zap.Int64("integration_id", payload.IntegrationID),
		zap.String("reason", payload.Reason),
	)

	result := h.engine.Sync(ctx, payload.IntegrationID, syncer.Options{})

	err = result.Err()
	if err == nil {
		log.Info("sync task done",
			zap.Int("created", result.Pull.Created),
			zap.Int("updated", result.Pull.Updated))

		return nil
	}

	if isPermanent(err) {
		log.Warn("sync task dropped, failure is not retryable", zap.Error(err))

		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log.Warn("sync task failed", zap.Error(err))

	return err
}

// isPermanent reports failures no retry can fix: the user has to reconnect
// or repair the integration first.
func isPermanent(err error) bool {
	return errors.Is(err, tokens.ErrReauthRequired) ||
		errors.Is(err, models.ErrInvalidAccountID) ||
		errors.Is(err, models.ErrInvalidListingID)
}
