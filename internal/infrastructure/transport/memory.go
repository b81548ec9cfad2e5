package transport

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"rillcall/internal/core/codec"
	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

var ErrClosed = errors.New("transport closed")

// Filter decides whether a published payload is delivered. It lets tests
// observe traffic and simulate loss.
type Filter func(topic string, payload []byte) bool

type memorySubscription struct {
	ch      chan []byte
	handler func([]byte)
	stop    chan struct{}
	once    sync.Once
}

func (s *memorySubscription) close() {
	s.once.Do(func() { close(s.stop) })
}

// MemoryBroker is an in-process pub/sub with the same delivery guarantees
// as the real channel: at-most-once, and a payload published to a topic
// without subscribers is lost. Every participant of a process shares one
// broker.
type MemoryBroker struct {
	mu         sync.RWMutex
	channel    string
	bufferSize int
	subs       map[string]map[*memorySubscription]struct{}
	filter     Filter
	closed     bool
	logger     *zap.SugaredLogger
}

var _ ports.Transport = (*MemoryBroker)(nil)

func NewMemoryBroker(channel string, bufferSize int, logger *zap.SugaredLogger) *MemoryBroker {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MemoryBroker{
		channel:    channel,
		bufferSize: bufferSize,
		subs:       make(map[string]map[*memorySubscription]struct{}),
		logger:     logger,
	}
}

// SetFilter installs f; nil delivers everything.
func (b *MemoryBroker) SetFilter(f Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter = f
}

func (b *MemoryBroker) Publish(ctx context.Context, to domain.ParticipantID, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic := codec.Topic(b.channel, to)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if b.filter != nil && !b.filter(topic, payload) {
		return nil
	}

	for sub := range b.subs[topic] {
		data := append([]byte(nil), payload...)
		select {
		case sub.ch <- data:
		default:
			b.logger.Debugw("subscriber buffer full, dropping payload", "topic", topic)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, self domain.ParticipantID, handler func([]byte)) error {
	topic := codec.Topic(b.channel, self)
	sub := &memorySubscription{
		ch:      make(chan []byte, b.bufferSize),
		handler: handler,
		stop:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	b.logger.Debugw("subscribed", "topic", topic)

	go func() {
		defer b.unsubscribe(topic, sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.stop:
				return
			case payload := <-sub.ch:
				sub.handler(payload)
			}
		}
	}()
	return nil
}

func (b *MemoryBroker) unsubscribe(topic string, sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], sub)
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

// Subscribers returns the number of live subscriptions on p's topic.
func (b *MemoryBroker) Subscribers(p domain.ParticipantID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[codec.Topic(b.channel, p)])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.close()
		}
	}
	return nil
}
