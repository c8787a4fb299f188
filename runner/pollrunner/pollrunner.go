// Package pollrunner runs the queue poller on a schedule, or exactly once
// with -poll-once.
package pollrunner

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/runner"
)

var _ runner.Runner = (*pollRunner)(nil)

type pollRunner struct {
	cfg      *runner.Config
	logger   *zap.Logger
	services *runner.Services
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModePoll {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	logger := runner.NewLogger(cfg.Debug)

	services, err := runner.BuildServices(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	return &pollRunner{cfg: cfg, logger: logger, services: services}, nil
}

func (p *pollRunner) Run(ctx context.Context) error {
	if p.cfg.PollOnce {
		return p.runOnce(ctx)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	spec := fmt.Sprintf("@every %s", p.cfg.PollInterval)

	_, err := c.AddFunc(spec, func() {
		if err := p.runOnce(ctx); err != nil {
			p.logger.Error("poller run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule poller: %w", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	return nil
}

func (p *pollRunner) runOnce(ctx context.Context) error {
	stats, err := p.services.Poller.Run(ctx)
	if err != nil {
		return err
	}

	p.logger.Info("poller run done",
		zap.Int("claimed", stats.Claimed),
		zap.Int("processed", stats.Processed),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Bool("deadline_hit", stats.DeadlineHit))

	return nil
}

func (p *pollRunner) Close(context.Context) error {
	return p.services.Close()
}
