package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rillcall/internal/core/domain"
)

var (
	alice = domain.ParticipantID{Username: "alice", ClientID: "web-1"}
	bob   = domain.ParticipantID{Username: "bob", ClientID: "b1"}
)

type collector struct {
	mu       sync.Mutex
	payloads []string
}

func (c *collector) handle(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, string(p))
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.payloads...)
}

func TestMemoryBroker_DeliversToTopicOwnerOnly(t *testing.T) {
	broker := NewMemoryBroker("", 8, zaptest.NewLogger(t).Sugar())
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var toAlice, toBob collector
	require.NoError(t, broker.Subscribe(ctx, alice, toAlice.handle))
	require.NoError(t, broker.Subscribe(ctx, bob, toBob.handle))

	require.NoError(t, broker.Publish(ctx, bob, []byte(`{"type":"call"}`)))

	require.Eventually(t, func() bool { return len(toBob.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`{"type":"call"}`}, toBob.all())
	assert.Empty(t, toAlice.all())
}

func TestMemoryBroker_NoSubscriberLosesPayload(t *testing.T) {
	broker := NewMemoryBroker("", 8, nil)
	defer broker.Close()

	ctx := context.Background()
	require.NoError(t, broker.Publish(ctx, bob, []byte("lost")))

	var got collector
	require.NoError(t, broker.Subscribe(ctx, bob, got.handle))
	require.NoError(t, broker.Publish(ctx, bob, []byte("kept")))

	require.Eventually(t, func() bool { return len(got.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"kept"}, got.all())
}

func TestMemoryBroker_FilterDrops(t *testing.T) {
	broker := NewMemoryBroker("", 8, nil)
	defer broker.Close()

	var topics []string
	var mu sync.Mutex
	broker.SetFilter(func(topic string, payload []byte) bool {
		mu.Lock()
		topics = append(topics, topic)
		mu.Unlock()
		return string(payload) != "drop"
	})

	ctx := context.Background()
	var got collector
	require.NoError(t, broker.Subscribe(ctx, bob, got.handle))
	require.NoError(t, broker.Publish(ctx, bob, []byte("drop")))
	require.NoError(t, broker.Publish(ctx, bob, []byte("pass")))

	require.Eventually(t, func() bool { return len(got.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"pass"}, got.all())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"user/bob/client/b1/webrtc/message", "user/bob/client/b1/webrtc/message"}, topics)
}

func TestMemoryBroker_UnsubscribesOnCancel(t *testing.T) {
	broker := NewMemoryBroker("", 8, nil)
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, broker.Subscribe(ctx, alice, func([]byte) {}))
	assert.Equal(t, 1, broker.Subscribers(alice))

	cancel()
	require.Eventually(t, func() bool { return broker.Subscribers(alice) == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryBroker_Closed(t *testing.T) {
	broker := NewMemoryBroker("", 8, nil)
	require.NoError(t, broker.Close())
	require.NoError(t, broker.Close())

	assert.ErrorIs(t, broker.Publish(context.Background(), bob, []byte("x")), ErrClosed)
	assert.ErrorIs(t, broker.Subscribe(context.Background(), bob, func([]byte) {}), ErrClosed)
}
