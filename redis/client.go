// Package redis wraps asynq producers and consumers for the sync task queue.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/redis/config"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/redis/tasks"
)

// Client enqueues tasks. Safe for concurrent use.
type Client struct {
	client *asynq.Client
	cfg    *config.RedisConfig
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewClient connects a task producer and verifies Redis is reachable.
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := testConnection(client); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Client{client: client, cfg: cfg, logger: logger}, nil
}

// EnqueueTask schedules a raw task. Callers pass asynq options for queue,
// uniqueness or retry tuning.
func (c *Client) EnqueueTask(ctx context.Context, taskType string, payload []byte, opts ...asynq.Option) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	task := asynq.NewTask(taskType, payload)

	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	c.logger.Debug("task enqueued",
		zap.String("type", taskType),
		zap.String("queue", info.Queue),
		zap.String("task_id", info.ID))

	return nil
}

// EnqueueSync schedules an immediate sync of one integration on the
// critical queue. Deduplicated for a minute so a webhook burst collapses
// into one run; a duplicate is not an error.
func (c *Client) EnqueueSync(ctx context.Context, integrationID int64) error {
	payload, err := tasks.MarshalSyncPayload(integrationID, tasks.ReasonWebhook)
	if err != nil {
		return err
	}

	err = c.EnqueueTask(ctx, tasks.TypeSyncIntegration, payload,
		asynq.Queue(tasks.QueueCritical),
		asynq.Unique(time.Minute),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}

		return err
	}

	return nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}

	return nil
}

// IsHealthy reports whether Redis currently accepts tasks.
func (c *Client) IsHealthy(ctx context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, err := c.client.EnqueueContext(ctx, asynq.NewTask(tasks.TypeHealthCheck, nil))

	return err == nil
}

func testConnection(client *asynq.Client) error {
	task := asynq.NewTask(tasks.TypeConnectionTest, nil)
	if _, err := client.EnqueueContext(context.Background(), task); err != nil {
		return err
	}

	return nil
}
