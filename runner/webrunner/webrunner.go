// Package webrunner serves the HTTP surface with an in-process sync
// scheduler, the default single-host deployment.
package webrunner

import (
	"context"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/redis"
	redisconfig "github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/redis/config"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/runner"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/web"
)

var _ runner.Runner = (*webRunner)(nil)

type webRunner struct {
	cfg      *runner.Config
	logger   *zap.Logger
	services *runner.Services
	srv      *web.Server
	taskq    *redis.Client
}

// New wires the web server and scheduler. When Redis is configured the
// manual-sync and webhook paths enqueue work for a separate worker
// process; otherwise they run inline.
func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeWeb {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	logger := runner.NewLogger(cfg.Debug)

	var taskq *redis.Client

	if redisConfigured() {
		redisCfg, err := redisconfig.NewRedisConfig()
		if err != nil {
			return nil, err
		}

		taskq, err = redis.NewClient(redisCfg, logger)
		if err != nil {
			return nil, err
		}
	}

	var opts []runner.ServicesOption
	if taskq != nil {
		opts = append(opts, runner.WithEnqueuer(taskq))
	}

	services, err := runner.BuildServices(context.Background(), cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	webServices := web.Services{
		OAuth:        services.OAuth,
		Webhooks:     services.Webhooks,
		Calendar:     services.Calendar,
		Integrations: services.Stores.Integrations,
		Engine:       services.Engine,
	}
	if taskq != nil {
		webServices.Enqueuer = taskq
	}

	w := webRunner{
		cfg:      cfg,
		logger:   logger,
		services: services,
		srv:      web.New(webServices, cfg.Addr, cfg.APIKey, logger),
		taskq:    taskq,
	}

	return &w, nil
}

func (w *webRunner) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return w.srv.Start(ctx)
	})

	egroup.Go(func() error {
		return w.schedule(ctx)
	})

	return egroup.Wait()
}

func (w *webRunner) Close(context.Context) error {
	if w.taskq != nil {
		_ = w.taskq.Close()
	}

	return w.services.Close()
}

// schedule drives the queue poller until the context ends. Poller runs
// never overlap: cron skips a tick while the previous run is in flight.
func (w *webRunner) schedule(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	spec := fmt.Sprintf("@every %s", w.cfg.PollInterval)

	_, err := c.AddFunc(spec, func() {
		stats, err := w.services.Poller.Run(ctx)
		if err != nil {
			w.logger.Error("poller run failed", zap.Error(err))

			return
		}

		if stats.Processed > 0 {
			w.logger.Info("poller run done",
				zap.Int("processed", stats.Processed),
				zap.Int("succeeded", stats.Succeeded),
				zap.Int("failed", stats.Failed),
				zap.Bool("deadline_hit", stats.DeadlineHit))
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

func redisConfigured() bool {
	return os.Getenv("REDIS_URL") != "" || os.Getenv("REDIS_HOST") != ""
}
