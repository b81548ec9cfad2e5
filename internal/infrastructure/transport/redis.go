package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rillcall/internal/core/codec"
	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

// RedisTransport carries signal payloads over Redis pub/sub. Redis
// PUBLISH is fire-and-forget, which matches the at-most-once contract.
type RedisTransport struct {
	client  *redis.Client
	channel string
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

var _ ports.Transport = (*RedisTransport)(nil)

// NewRedisTransport uses client without taking ownership of it.
func NewRedisTransport(client *redis.Client, channel string, logger *zap.SugaredLogger) *RedisTransport {
	return &RedisTransport{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (t *RedisTransport) Publish(ctx context.Context, to domain.ParticipantID, payload []byte) error {
	topic := codec.Topic(t.channel, to)
	receivers, err := t.client.Publish(ctx, topic, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	t.logger.Debugw("published signal payload",
		"topic", topic,
		"receivers", receivers,
	)
	return nil
}

func (t *RedisTransport) Subscribe(ctx context.Context, self domain.ParticipantID, handler func([]byte)) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.mu.Unlock()

	topic := codec.Topic(t.channel, self)
	pubsub := t.client.Subscribe(ctx, topic)

	// wait for the subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	t.mu.Lock()
	t.subs = append(t.subs, pubsub)
	t.mu.Unlock()

	t.logger.Infow("subscribed to signal topic", "topic", topic)

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (t *RedisTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var firstErr error
	for _, sub := range t.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.subs = nil
	return firstErr
}
