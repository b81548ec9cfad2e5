package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rillcall/pkg/retry"
)

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Address        string
	Password       string
	DB             int
	PoolSize       int
	ConnectRetries int
	RetryDelay     time.Duration
}

// NewRedisClient creates a pooled client and waits, with backoff, until
// the server answers PING.
func NewRedisClient(ctx context.Context, opts RedisOptions, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = opts.ConnectRetries
	if opts.RetryDelay > 0 {
		cfg.InitialDelay = opts.RetryDelay
	}
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warnw("Redis not reachable, retrying",
			"address", opts.Address,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}

	err := retry.Retry(ctx, cfg, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infow("connected to Redis",
		"address", opts.Address,
		"db", opts.DB,
		"pool_size", opts.PoolSize,
	)
	return client, nil
}
