package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisNotifier broadcasts announcements over Redis pub/sub so contexts in
// different processes or hosts can hear each other.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	origin  string
	logger  *logrus.Logger
}

// NewRedisNotifier publishes on channel (DefaultChannel when empty) through rdb.
// The client is not owned: Close leaves it open.
func NewRedisNotifier(rdb *redis.Client, channel string, logger *logrus.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisNotifier{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Publish serializes msg to JSON and PUBLISHes it.
func (n *RedisNotifier) Publish(ctx context.Context, msg Message) error {
	msg.Origin = n.origin
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notify message: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to PUBLISH to '%s': %w", n.channel, err)
	}
	return nil
}

// Listen subscribes to the channel and forwards recognized foreign messages to fn.
func (n *RedisNotifier) Listen(ctx context.Context, fn func(Message)) (func(), error) {
	sub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to SUBSCRIBE to '%s': %w", n.channel, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := sub.Channel()
		for {
			select {
			case <-listenCtx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				msg, ok := Decode([]byte(raw.Payload))
				if !ok {
					n.logger.WithField("channel", n.channel).Debug("ignoring unrecognized notify frame")
					continue
				}
				if msg.Origin == n.origin {
					continue
				}
				fn(msg)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			sub.Close()
			<-done
		})
	}, nil
}

// Close is a no-op; the shared client is closed by its owner.
func (n *RedisNotifier) Close() error {
	return nil
}
