package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannelPrefix namespaces redis channels.
const DefaultChannelPrefix = "flowedit:events:"

// RedisBus fans payloads out through redis Pub/Sub so that every instance
// sharing the redis server sees them. Handlers run on a per-subscription
// goroutine.
type RedisBus struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewRedisBus wraps an existing client. The bus does not own the client.
func NewRedisBus(client *redis.Client, prefix string, logger *zap.Logger) *RedisBus {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{
		client: client,
		prefix: prefix,
		subs:   make(map[*redis.PubSub]struct{}),
		logger: logger.With(zap.String("component", "pubsub_redis")),
	}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := b.client.Publish(ctx, b.prefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns once redis has confirmed the subscription, so a
// Publish issued afterwards is never missed.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, h Handler) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.mu.Unlock()

	channel := b.prefix + topic
	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	b.mu.Lock()
	b.subs[ps] = struct{}{}
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ps.Channel() {
			h([]byte(msg.Payload))
		}
		b.logger.Debug("subscription closed", zap.String("channel", channel))
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ps)
			b.mu.Unlock()
			if err := ps.Close(); err != nil {
				b.logger.Warn("failed to close subscription", zap.String("channel", channel), zap.Error(err))
			}
		})
	}, nil
}

// Close ends every subscription and waits for their handlers to return.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*redis.PubSub]struct{})
	b.mu.Unlock()

	var firstErr error
	for ps := range subs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.wg.Wait()
	return firstErr
}
