package changefeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis fans notices out through Redis pub/sub so that watchers in every server process
// observe writes made by any of them.
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewRedis creates a feed on top of an existing client. Channel names are prefix + topic.
func NewRedis(client *redis.Client, prefix string, logger *zap.Logger) *Redis {
	return &Redis{client: client, prefix: prefix, logger: logger.Named("changefeed")}
}

func (f *Redis) channel(topic string) string {
	return f.prefix + topic
}

func (f *Redis) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Redis) Publish(ctx context.Context, topics ...string) error {
	if f.isClosed() {
		return ErrClosed
	}
	if len(topics) == 0 {
		return nil
	}
	pipe := f.client.Pipeline()
	for _, topic := range topics {
		pipe.Publish(ctx, f.channel(topic), "1")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish change notice: %w", err)
	}
	return nil
}

func (f *Redis) Listen(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	if f.isClosed() {
		return nil, nil, ErrClosed
	}
	ps := f.client.Subscribe(ctx, f.channel(topic))
	// Wait for the subscription to be confirmed so no notice published afterwards is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range ps.Channel() {
			notify(out)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				f.logger.Debug("pubsub close failed", zap.String("topic", topic), zap.Error(err))
			}
		})
	}
	return out, stop, nil
}

// Close marks the feed closed. The Redis client is owned by the caller.
func (f *Redis) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
