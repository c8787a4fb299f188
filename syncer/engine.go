package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tokens"
)

const (
	defaultPullLimit = 100
	pushWindowDays   = 365
)

// MarketplaceAPI is the slice of the marketplace client the engine uses.
type MarketplaceAPI interface {
	PushPriceRanges(ctx context.Context, token, accountID, itemID string, ranges []avito.PriceRange) error
	PushBaseParams(ctx context.Context, token, accountID, itemID string, params avito.BaseParams) error
	PushBlockedIntervals(ctx context.Context, token, accountID, itemID string, intervals []avito.Interval) error
	ListBookings(ctx context.Context, token, accountID, itemID string, q avito.BookingsQuery) ([]avito.Booking, error)
	CancelBooking(ctx context.Context, token, accountID, itemID string, bookingID int64) error
}

// TokenSource supplies valid access tokens for integrations.
type TokenSource interface {
	AccessToken(ctx context.Context, integrationID int64) (string, error)
	ForceRefresh(ctx context.Context, integrationID int64) (string, error)
	Invalidate(ctx context.Context, integrationID int64)
}

// Stores bundles the repositories one run reads and writes.
type Stores struct {
	Integrations models.IntegrationRepository
	Properties   models.PropertyRepository
	Rates        models.RateRepository
	Bookings     models.BookingRepository
	SyncLogs     models.SyncLogRepository
}

// Options tune a single run.
type Options struct {
	// ExcludeBookingID omits one local booking from the availability push so
	// its dates reopen on the marketplace.
	ExcludeBookingID int64
	PullLimit        int
	PullOffset       int
}

// Engine runs one full marketplace sync per call: push prices, base
// parameters and availability, then pull bookings back. Sub-steps are
// best-effort; see Result for how outcomes fold.
type Engine struct {
	api    MarketplaceAPI
	tokens TokenSource
	stores Stores
	logger *zap.Logger
}

// New builds a sync engine.
func New(api MarketplaceAPI, tokenSource TokenSource, stores Stores, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{api: api, tokens: tokenSource, stores: stores, logger: logger}
}

// Sync runs push then pull for one integration and never panics the caller:
// every failure lands in the Result.
func (e *Engine) Sync(ctx context.Context, integrationID int64, opts Options) *Result {
	result := newResult(integrationID)
	defer func() { result.FinishedAt = time.Now() }()

	log := e.logger.With(
		zap.Int64("integration_id", integrationID),
		zap.String("run_id", result.RunID),
	)

	integration, err := e.stores.Integrations.Get(ctx, integrationID)
	if err != nil {
		result.fail(OpLoadIntegration, fmt.Errorf("load integration %d: %w", integrationID, err))
		e.persistLogs(ctx, result)

		return result
	}

	if !integration.IsActive || !integration.IsEnabled {
		result.ok(OpLoadIntegration, "integration inactive, nothing to sync")
		log.Debug("sync skipped, integration inactive")

		return result
	}

	if err := integration.ValidateRemoteIDs(); err != nil {
		result.fail(OpValidate, err)
		e.persistLogs(ctx, result)
		log.Warn("sync aborted on identifier validation", zap.Error(err))

		return result
	}

	property, err := e.stores.Properties.Get(ctx, integration.PropertyID)
	if err != nil {
		result.fail(OpLoadProperty, fmt.Errorf("load property %d: %w", integration.PropertyID, err))
		e.persistLogs(ctx, result)

		return result
	}

	token, err := e.tokens.AccessToken(ctx, integrationID)
	if err != nil {
		result.fail(OpAuth, err)
		e.persistLogs(ctx, result)
		log.Warn("sync aborted, no usable token", zap.Error(err))

		return result
	}

	r := &run{
		auth:        &authState{engine: e, integrationID: integrationID, token: token},
		integration: integration,
		property:    property,
		opts:        opts,
		result:      result,
	}

	steps := []func(context.Context, *run) error{
		e.pushPrices,
		e.pushBaseParams,
		e.pushAvailability,
		e.pullBookings,
	}

	for _, step := range steps {
		if err := step(ctx, r); errors.Is(err, tokens.ErrReauthRequired) {
			// Nothing after this can succeed; remaining steps are skipped.
			log.Warn("sync aborted, marketplace rejected token twice")

			break
		}

		if ctx.Err() != nil {
			result.fail(OpAborted, ctx.Err())

			break
		}
	}

	if err := e.stores.Integrations.TouchLastSync(ctx, integrationID, time.Now()); err != nil {
		log.Warn("touch last_sync_at failed", zap.Error(err))
	}

	e.persistLogs(ctx, result)

	log.Info("sync finished",
		zap.Bool("success", result.Success()),
		zap.Int("errors", len(result.Errors())),
		zap.Int("warnings", len(result.Warnings())),
		zap.Int("pull_fetched", result.Pull.Fetched),
		zap.Int("pull_created", result.Pull.Created),
	)

	return result
}

// run is the working state of one Sync call.
type run struct {
	auth        *authState
	integration *models.Integration
	property    *models.Property
	opts        Options
	result      *Result
}

// authState carries the run's token and performs the refresh-once-on-401
// dance: the first rejection triggers one forced refresh, a second rejection
// with the fresh token means the authorization itself is dead.
type authState struct {
	engine        *Engine
	integrationID int64
	token         string
	refreshed     bool
}

func (a *authState) call(ctx context.Context, fn func(token string) error) error {
	err := fn(a.token)
	if err == nil || !avito.IsUnauthorized(err) {
		return err
	}

	if a.refreshed {
		return fmt.Errorf("token rejected after refresh: %w", tokens.ErrReauthRequired)
	}

	a.engine.tokens.Invalidate(ctx, a.integrationID)

	fresh, refreshErr := a.engine.tokens.ForceRefresh(ctx, a.integrationID)
	if refreshErr != nil {
		return refreshErr
	}

	a.token = fresh
	a.refreshed = true

	err = fn(a.token)
	if err != nil && avito.IsUnauthorized(err) {
		return fmt.Errorf("token rejected after refresh: %w", tokens.ErrReauthRequired)
	}

	return err
}

// persistLogs appends warning and error steps plus a summary row to the
// append-only audit log. Audit failures are logged, never fatal.
func (e *Engine) persistLogs(ctx context.Context, result *Result) {
	for _, step := range result.Steps {
		if step.Outcome == OutcomeOK {
			continue
		}

		status := models.LogWarning
		if step.Outcome == OutcomeError {
			status = models.LogError
		}

		e.appendLog(ctx, &models.SyncLog{
			IntegrationID: result.IntegrationID,
			RunID:         result.RunID,
			Action:        step.Op,
			Status:        status,
			Detail:        step.Detail,
		})
	}

	status := models.LogOK
	if !result.Success() {
		status = models.LogError
	}

	e.appendLog(ctx, &models.SyncLog{
		IntegrationID: result.IntegrationID,
		RunID:         result.RunID,
		Action:        "sync",
		Status:        status,
		Detail:        result.Summary(),
	})
}

func (e *Engine) appendLog(ctx context.Context, entry *models.SyncLog) {
	if err := e.stores.SyncLogs.Append(ctx, entry); err != nil {
		e.logger.Warn("sync log append failed",
			zap.Int64("integration_id", entry.IntegrationID), zap.Error(err))
	}
}

// today returns the current date at midnight UTC, the engine's day boundary.
func today() time.Time {
	return midnightUTC(time.Now())
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
