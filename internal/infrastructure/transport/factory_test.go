package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rillcall/internal/infrastructure/presence"
	"rillcall/pkg/config"
)

func TestFactory_MemoryByDefault(t *testing.T) {
	cfg := config.DefaultConfig()
	f := NewFactory(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = f.Close() })

	assert.Nil(t, f.RedisClient())
	assert.IsType(t, &MemoryBroker{}, f.CreateTransport())
	assert.IsType(t, &presence.MemoryDirectory{}, f.CreatePresenceDirectory())
}

func TestFactory_FallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transport.Kind = "redis"
	cfg.Redis.Address = "127.0.0.1:1"
	cfg.Redis.ConnectRetries = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFactory(ctx, cfg, zaptest.NewLogger(t).Sugar())
	require.NotNil(t, f)
	assert.Nil(t, f.RedisClient())
	assert.IsType(t, &MemoryBroker{}, f.CreateTransport())
}
