package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"rillcall/internal/core/ports"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, timeout)
}

// AddPresenceCheck verifies the presence directory can be listed.
func (h *HealthChecker) AddPresenceCheck(dir ports.PresenceDirectory, timeout time.Duration) {
	h.AddCheck("presence", func(ctx context.Context) error {
		_, err := dir.List(ctx)
		return err
	}, timeout)
}

// AddEngineCheck reports the call engine unhealthy once it has stopped.
func (h *HealthChecker) AddEngineCheck(done <-chan struct{}, timeout time.Duration) {
	h.AddCheck("call_engine", func(ctx context.Context) error {
		select {
		case <-done:
			return errors.New("call engine stopped")
		default:
			return nil
		}
	}, timeout)
}
