package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/redis/config"
)

// Server consumes queue tasks. Blocks in Run until the context ends.
type Server struct {
	server *asynq.Server
	cfg    *config.RedisConfig
	logger *zap.Logger
}

// NewServer builds an asynq worker server over the configured Redis.
func NewServer(cfg *config.RedisConfig, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			PoolSize:     10,
		},
		asynq.Config{
			Concurrency: cfg.Workers,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := retryDelay(n, cfg)
				if delay < 0 {
					logger.Warn("task exhausted retries",
						zap.String("type", task.Type()),
						zap.Error(err))
				} else {
					logger.Info("task retry scheduled",
						zap.String("type", task.Type()),
						zap.Int("attempt", n),
						zap.Duration("delay", delay),
						zap.Error(err))
				}

				return delay
			},
			Queues:         cfg.QueuePriorities,
			StrictPriority: true,
		},
	)

	return &Server{server: srv, cfg: cfg, logger: logger}, nil
}

// retryDelay doubles per attempt, capped at the configured interval. A
// negative delay tells asynq to archive the task.
func retryDelay(n int, cfg *config.RedisConfig) time.Duration {
	if n >= cfg.MaxRetries {
		return -1 * time.Second
	}

	delay := time.Duration(1<<uint(n)) * time.Second
	if delay > cfg.RetryInterval {
		delay = cfg.RetryInterval
	}

	return delay
}

// Run processes tasks with mux until ctx is cancelled, then drains.
func (s *Server) Run(ctx context.Context, mux *asynq.ServeMux) error {
	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}

	<-ctx.Done()

	s.logger.Info("shutting down task server")
	s.server.Shutdown()

	return nil
}

// Shutdown stops the server, waiting for in-flight tasks.
func (s *Server) Shutdown(context.Context) error {
	s.server.Shutdown()

	return nil
}
