// Package fanout relays committed tree changes to other instances over Redis
// pub/sub.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/outline/internal/tree"
)

const (
	publishTimeout = 2 * time.Second
	ioTimeout      = 500 * time.Millisecond
	queueSize      = 256
)

// Message is the payload published on the channel.
type Message struct {
	Instance string      `json:"instance"`
	Change   tree.Change `json:"change"`
	SentAt   time.Time   `json:"sent_at"`
}

// Redis publishes changes on a Redis channel.
//
// PublishChange only enqueues; one sender goroutine talks to Redis. When the
// queue is full the change is dropped and logged. Consumers that need every
// change read the sync table instead.
type Redis struct {
	client   *redis.Client
	channel  string
	instance string
	logger   *slog.Logger
	publish  func(ctx context.Context, payload []byte) error

	queue     chan tree.Change
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

var _ tree.Publisher = (*Redis)(nil)

func newClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  publishTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		MaxRetries:   1,
	})
}

// NewRedis connects to addr, verifies the connection and starts the sender.
func NewRedis(ctx context.Context, addr, channel, instance string, logger *slog.Logger) (*Redis, error) {
	client := newClient(addr)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("fanout: ping redis %s: %w", addr, err)
	}
	return newRedis(client, channel, instance, logger, nil), nil
}

// newRedis starts the sender. A nil publish sends through client.
func newRedis(client *redis.Client, channel, instance string, logger *slog.Logger, publish func(context.Context, []byte) error) *Redis {
	r := &Redis{
		client:   client,
		channel:  channel,
		instance: instance,
		logger:   logger,
		publish:  publish,
		queue:    make(chan tree.Change, queueSize),
		done:     make(chan struct{}),
	}
	if r.publish == nil {
		r.publish = func(ctx context.Context, payload []byte) error {
			return client.Publish(ctx, channel, payload).Err()
		}
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	go r.run()
	return r
}

func (r *Redis) run() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		case c := <-r.queue:
			r.send(c)
		}
	}
}

func (r *Redis) send(c tree.Change) {
	payload, err := Encode(r.instance, c, time.Now().UTC())
	if err != nil {
		r.logger.Warn("fanout: encode failed", slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, publishTimeout)
	defer cancel()
	if err := r.publish(ctx, payload); err != nil {
		r.logger.Warn("fanout: publish failed",
			slog.String("channel", r.channel),
			slog.String("kind", string(c.Kind)),
			slog.String("error", err.Error()))
	}
}

// PublishChange queues c for sending and returns immediately.
func (r *Redis) PublishChange(_ context.Context, c tree.Change) {
	select {
	case <-r.ctx.Done():
	case r.queue <- c:
	default:
		r.logger.Warn("fanout: queue full, change dropped",
			slog.String("kind", string(c.Kind)),
			slog.String("edge_id", c.EdgeID))
	}
}

// Close stops the sender, abandoning queued changes, and releases the
// Redis connection pool.
func (r *Redis) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.done
		err = r.client.Close()
	})
	return err
}

// Encode builds the JSON message for a change.
func Encode(instance string, c tree.Change, at time.Time) ([]byte, error) {
	return json.Marshal(Message{Instance: instance, Change: c, SentAt: at})
}
