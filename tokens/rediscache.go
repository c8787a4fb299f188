package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/encryption"
)

// RedisCache shares access tokens between processes. Values are sealed with
// the same cipher as the database columns, so Redis never holds plaintext.
// Every failure degrades to a cache miss.
type RedisCache struct {
	client *redis.Client
	cipher *encryption.Cipher
	logger *zap.Logger
}

type redisEntry struct {
	Token     []byte    `json:"token"` // ciphertext
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRedisCache builds a Redis-backed token cache.
func NewRedisCache(client *redis.Client, cipher *encryption.Cipher, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisCache{client: client, cipher: cipher, logger: logger}
}

func cacheKey(integrationID int64) string {
	return fmt.Sprintf("cmbolt:token:%d", integrationID)
}

func (c *RedisCache) Get(ctx context.Context, integrationID int64) (Entry, bool) {
	raw, err := c.client.Get(ctx, cacheKey(integrationID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("token cache read failed", zap.Int64("integration_id", integrationID), zap.Error(err))
		}

		return Entry{}, false
	}

	var stored redisEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Entry{}, false
	}

	token, err := c.cipher.Decrypt(stored.Token)
	if err != nil {
		c.logger.Debug("token cache entry unreadable", zap.Int64("integration_id", integrationID), zap.Error(err))

		return Entry{}, false
	}

	return Entry{AccessToken: token, ExpiresAt: stored.ExpiresAt}, true
}

func (c *RedisCache) Set(ctx context.Context, integrationID int64, entry Entry) {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return
	}

	sealed, err := c.cipher.Encrypt(entry.AccessToken)
	if err != nil {
		c.logger.Debug("token cache seal failed", zap.Int64("integration_id", integrationID), zap.Error(err))

		return
	}

	raw, err := json.Marshal(redisEntry{Token: sealed, ExpiresAt: entry.ExpiresAt})
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, cacheKey(integrationID), raw, ttl).Err(); err != nil {
		c.logger.Debug("token cache write failed", zap.Int64("integration_id", integrationID), zap.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, integrationID int64) {
	if err := c.client.Del(ctx, cacheKey(integrationID)).Err(); err != nil {
		c.logger.Debug("token cache invalidate failed", zap.Int64("integration_id", integrationID), zap.Error(err))
	}
}
