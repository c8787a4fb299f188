// Package workerrunner consumes the Redis task queue: webhook-triggered
// and manually requested syncs land here when a worker is deployed.
package workerrunner

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/encryption"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/redis"
	redisconfig "github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/redis/config"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/redis/tasks"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/runner"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tokens"
)

var _ runner.Runner = (*workerRunner)(nil)

type workerRunner struct {
	logger   *zap.Logger
	services *runner.Services
	server   *redis.Server
	mux      *asynq.ServeMux
	cache    *goredis.Client
}

// New wires the worker. Tokens are cached in Redis here so that worker
// and web processes share refreshes instead of racing the marketplace.
func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeWorker {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	logger := runner.NewLogger(cfg.Debug)

	redisCfg, err := redisconfig.NewRedisConfig()
	if err != nil {
		return nil, err
	}

	cacheClient := goredis.NewClient(&goredis.Options{
		Addr:     redisCfg.GetRedisAddr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	w := workerRunner{
		logger: logger,
		cache:  cacheClient,
	}

	cipher, err := encryption.NewFromEnv()
	if err != nil {
		return nil, err
	}

	tokenCache := tokens.NewRedisCache(cacheClient, cipher, logger)

	w.services, err = runner.BuildServices(context.Background(), cfg, logger,
		runner.WithTokenCache(tokenCache))
	if err != nil {
		return nil, err
	}

	w.server, err = redis.NewServer(redisCfg, logger)
	if err != nil {
		return nil, err
	}

	handler := tasks.NewHandler(w.services.Engine, tasks.WithLogger(logger))

	w.mux = asynq.NewServeMux()
	w.mux.Handle(tasks.TypeSyncIntegration, handler)

	return &w, nil
}

func (w *workerRunner) Run(ctx context.Context) error {
	return w.server.Run(ctx, w.mux)
}

func (w *workerRunner) Close(ctx context.Context) error {
	_ = w.server.Shutdown(ctx)
	_ = w.cache.Close()

	return w.services.Close()
}
