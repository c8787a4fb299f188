// Package config loads Redis connection settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig holds Redis connection and worker parameters.
type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	Workers         int
	RetryInterval   time.Duration
	MaxRetries      int
	RetentionPeriod time.Duration
	QueuePriorities map[string]int
}

const (
	defaultHost          = "localhost"
	defaultPort          = 6379
	defaultDB            = 0
	defaultWorkers       = 10
	defaultRetryInterval = 60 * time.Second
	defaultMaxRetries    = 5
	defaultRetention     = 7 * 24 * time.Hour
	minPort              = 1
	maxPort              = 65535
	minDB                = 0
	maxDB                = 15
	minWorkers           = 1
	maxWorkers           = 100
)

// DefaultQueuePriorities weights the task queues. Webhook-triggered syncs
// run on critical so a burst of scheduled work cannot starve them.
var DefaultQueuePriorities = map[string]int{
	"critical": 6,
	"default":  3,
	"low":      1,
}

// NewRedisConfig reads REDIS_URL when set, otherwise the individual
// REDIS_* variables.
func NewRedisConfig() (*RedisConfig, error) {
	cfg := &RedisConfig{
		Host:            getEnvOrDefault("REDIS_HOST", defaultHost),
		Password:        os.Getenv("REDIS_PASSWORD"),
		RetentionPeriod: defaultRetention,
		QueuePriorities: make(map[string]int),
	}

	for queue, priority := range DefaultQueuePriorities {
		cfg.QueuePriorities[queue] = priority
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if err := cfg.applyURL(redisURL); err != nil {
			return nil, err
		}
	} else {
		port, err := intInRange(getEnvOrDefault("REDIS_PORT", strconv.Itoa(defaultPort)), minPort, maxPort, "port")
		if err != nil {
			return nil, err
		}

		cfg.Port = port

		db, err := intInRange(getEnvOrDefault("REDIS_DB", strconv.Itoa(defaultDB)), minDB, maxDB, "db")
		if err != nil {
			return nil, err
		}

		cfg.DB = db
	}

	workers, err := intInRange(getEnvOrDefault("REDIS_WORKERS", strconv.Itoa(defaultWorkers)), minWorkers, maxWorkers, "workers")
	if err != nil {
		return nil, err
	}

	cfg.Workers = workers

	if raw := os.Getenv("REDIS_RETRY_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid retry interval: %w", err)
		}

		cfg.RetryInterval = interval
	} else {
		cfg.RetryInterval = defaultRetryInterval
	}

	retries, err := intInRange(getEnvOrDefault("REDIS_MAX_RETRIES", strconv.Itoa(defaultMaxRetries)), 1, 20, "max retries")
	if err != nil {
		return nil, err
	}

	cfg.MaxRetries = retries

	if raw := os.Getenv("REDIS_RETENTION_DAYS"); raw != "" {
		days, err := intInRange(raw, 1, 365, "retention days")
		if err != nil {
			return nil, err
		}

		cfg.RetentionPeriod = time.Duration(days) * 24 * time.Hour
	}

	return cfg, nil
}

// applyURL parses redis://[:password@]host[:port][/db].
func (c *RedisConfig) applyURL(redisURL string) error {
	parsed, err := url.Parse(redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	if host := parsed.Hostname(); host != "" {
		c.Host = host
	}

	c.Port = defaultPort

	if port := parsed.Port(); port != "" {
		p, err := intInRange(port, minPort, maxPort, "port")
		if err != nil {
			return fmt.Errorf("invalid port in redis url: %w", err)
		}

		c.Port = p
	}

	if password, ok := parsed.User.Password(); ok {
		c.Password = password
	}

	if path := strings.TrimPrefix(parsed.Path, "/"); path != "" {
		db, err := intInRange(path, minDB, maxDB, "db")
		if err != nil {
			return fmt.Errorf("invalid database in redis url: %w", err)
		}

		c.DB = db
	}

	return nil
}

// GetRedisAddr returns host:port, bracketing IPv6 hosts.
func (c *RedisConfig) GetRedisAddr() string {
	host := c.Host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}

	return fmt.Sprintf("%s:%d", host, c.Port)
}

func intInRange(raw string, min, max int, name string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}

	if v < min || v > max {
		return 0, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}

	return v, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
