package transport

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rillcall/internal/core/domain"
)

// redisForTest connects to REDIS_ADDR or skips.
func redisForTest(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func uniqueParticipant(name string) domain.ParticipantID {
	return domain.ParticipantID{Username: name + "-" + uuid.NewString()[:8], ClientID: "c1"}
}

func TestRedisTransport_RoundTrip(t *testing.T) {
	client := redisForTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := NewRedisTransport(client, "rillcall-test", zaptest.NewLogger(t).Sugar())
	defer tr.Close()

	self := uniqueParticipant("alice")
	other := uniqueParticipant("bob")

	var got collector
	require.NoError(t, tr.Subscribe(ctx, self, got.handle))

	// Subscribe returns once the subscription is confirmed, so nothing
	// published afterwards is lost
	require.NoError(t, tr.Publish(ctx, other, []byte(`{"type":"bye"}`)))
	require.NoError(t, tr.Publish(ctx, self, []byte(`{"type":"call"}`)))

	require.Eventually(t, func() bool { return len(got.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`{"type":"call"}`}, got.all())
}

func TestRedisTransport_SubscribeAfterClose(t *testing.T) {
	client := redisForTest(t)
	tr := NewRedisTransport(client, "rillcall-test", zaptest.NewLogger(t).Sugar())

	require.NoError(t, tr.Subscribe(context.Background(), uniqueParticipant("alice"), func([]byte) {}))
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	err := tr.Subscribe(context.Background(), uniqueParticipant("bob"), func([]byte) {})
	assert.ErrorIs(t, err, ErrClosed)
}
