// internal/storage/redis.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisKV stores blobs as plain Redis strings. Change notification relies on
// keyspace notifications, which the watcher tries to enable on the server.
type RedisKV struct {
	rdb     *redis.Client
	db      int
	tracker *contentTracker
	logger  *logrus.Logger
}

// ConnectRedis creates a client for addr/db and pings it under a 5 second timeout.
func ConnectRedis(addr string, db int, logger *logrus.Logger) (*RedisKV, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return NewRedis(rdb, db, logger), nil
}

// NewRedis wraps an existing client. db must match the client's selected database
// so keyspace channels resolve correctly.
func NewRedis(rdb *redis.Client, db int, logger *logrus.Logger) *RedisKV {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisKV{rdb: rdb, db: db, tracker: newContentTracker(), logger: logger}
}

// Client exposes the underlying client so the notifier can share the connection pool.
func (r *RedisKV) Client() *redis.Client {
	return r.rdb
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	r.tracker.record(key, value)
	if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		r.tracker.forget(key, value)
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Watch subscribes to the keyspace channel of key. Keyspace events carry no
// writer identity, so the content tracker drops events caused by this handle.
func (r *RedisKV) Watch(ctx context.Context, key string, onChange func()) (func(), error) {
	if err := enableKeyspaceEvents(ctx, r.rdb); err != nil {
		// Managed Redis often forbids CONFIG; the server may already be configured.
		r.logger.WithField("key", key).Infof("could not enable keyspace notifications: %v", err)
	}
	if current, ok, err := r.Get(ctx, key); err == nil && ok {
		r.tracker.observe(key, current)
	}

	channel := fmt.Sprintf("__keyspace@%d__:%s", r.db, key)
	sub := r.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis SUBSCRIBE %s: %w", channel, err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := sub.Channel()
		for {
			select {
			case <-watchCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload != "set" {
					continue
				}
				value, found, err := r.Get(watchCtx, key)
				if err != nil {
					r.logger.WithField("key", key).Warnf("redis watch re-read: %v", err)
					continue
				}
				if !found {
					value = nil
				}
				if r.tracker.observe(key, value) {
					onChange()
				}
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

const keyspaceEventsParam = "notify-keyspace-events"

// configClient is the part of *redis.Client used to adjust server config.
type configClient interface {
	ConfigGet(ctx context.Context, parameter string) *redis.MapStringStringCmd
	ConfigSet(ctx context.Context, parameter, value string) *redis.StatusCmd
}

// enableKeyspaceEvents adds the flags the watcher needs to the server's
// notify-keyspace-events, keeping whatever other clients already enabled.
// Nothing is written when the current value cannot be read.
func enableKeyspaceEvents(ctx context.Context, c configClient) error {
	current, err := c.ConfigGet(ctx, keyspaceEventsParam).Result()
	if err != nil {
		return fmt.Errorf("redis CONFIG GET %s: %w", keyspaceEventsParam, err)
	}
	existing := current[keyspaceEventsParam]
	merged := mergeKeyspaceFlags(existing)
	if merged == existing {
		return nil
	}
	if err := c.ConfigSet(ctx, keyspaceEventsParam, merged).Err(); err != nil {
		return fmt.Errorf("redis CONFIG SET %s: %w", keyspaceEventsParam, err)
	}
	return nil
}

// mergeKeyspaceFlags returns existing plus K (keyspace channel) and $ (string
// commands). A is an alias that already covers $.
func mergeKeyspaceFlags(existing string) string {
	out := existing
	if !strings.ContainsRune(out, 'K') {
		out += "K"
	}
	if !strings.ContainsAny(out, "$A") {
		out += "$"
	}
	return out
}

func (r *RedisKV) Close() error {
	return r.rdb.Close()
}
