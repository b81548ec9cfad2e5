package transport

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rillcall/internal/core/ports"
	"rillcall/internal/infrastructure/presence"
	"rillcall/pkg/config"
)

// Factory builds the transport and presence directory selected by the
// configuration, falling back to in-process implementations when Redis
// cannot be reached.
type Factory struct {
	useRedis    bool
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

func NewFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *Factory {
	f := &Factory{
		useRedis: cfg.Transport.Kind == "redis",
		cfg:      cfg,
		logger:   logger,
	}

	if f.useRedis {
		client, err := NewRedisClient(ctx, RedisOptions{
			Address:        cfg.Redis.Address,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			PoolSize:       cfg.Redis.PoolSize,
			ConnectRetries: cfg.Redis.ConnectRetries,
			RetryDelay:     cfg.Redis.RetryDelay,
		}, logger)
		if err != nil {
			logger.Warnw("Failed to connect to Redis, falling back to in-memory transport", "error", err)
			f.useRedis = false
		} else {
			f.redisClient = client
		}
	}

	if f.useRedis {
		logger.Infow("Using Redis transport", "address", cfg.Redis.Address)
	} else {
		logger.Infow("Using in-memory transport; only participants in this process are reachable")
	}
	return f
}

// CreateTransport returns the signal transport.
func (f *Factory) CreateTransport() ports.Transport {
	if f.useRedis {
		return NewRedisTransport(f.redisClient, f.cfg.Signal.Channel, f.logger)
	}
	return NewMemoryBroker(f.cfg.Signal.Channel, f.cfg.Signal.OutboxSize, f.logger)
}

// CreatePresenceDirectory returns the presence directory.
func (f *Factory) CreatePresenceDirectory() ports.PresenceDirectory {
	if f.useRedis {
		return presence.NewRedisDirectory(f.redisClient, f.cfg.Presence.TTL, f.logger)
	}
	return presence.NewMemoryDirectory(f.cfg.Presence.TTL)
}

// RedisClient returns the shared client, or nil when Redis is not used.
func (f *Factory) RedisClient() *redis.Client {
	return f.redisClient
}

// Close closes the Redis connection if used
func (f *Factory) Close() error {
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}
