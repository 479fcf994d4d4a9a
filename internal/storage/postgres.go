package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// notifyChannel is the LISTEN/NOTIFY channel carrying kv change events.
const notifyChannel = "kv_changed"

// PostgresKV keeps blobs in a kv_store table and announces writes with NOTIFY.
type PostgresKV struct {
	pool   *pgxpool.Pool
	origin string
	logger *logrus.Logger
}

type kvNotice struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// ConnectPostgres builds a pool from connStr, pings it and bootstraps the schema.
func ConnectPostgres(ctx context.Context, connStr string, logger *logrus.Logger) (*PostgresKV, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	kv := &PostgresKV{pool: pool, origin: uuid.NewString(), logger: logger}
	if err := kv.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.WithField("host", config.ConnConfig.Host).Info("Connected to postgres kv store")
	return kv, nil
}

func (p *PostgresKV) createTables(ctx context.Context) error {
	q := `
	CREATE TABLE IF NOT EXISTS kv_store (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := p.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("failed to create kv_store: %w", err)
	}
	return nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value and queues the change notice in the same transaction,
// so listeners are only told about committed writes.
func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	notice, err := json.Marshal(kvNotice{Key: key, Origin: p.origin})
	if err != nil {
		return err
	}
	upsert := `
	INSERT INTO kv_store (key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key)
	DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	err = pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsert, key, value); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(notice))
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Watch holds one pooled connection in LISTEN mode for the lifetime of the watch.
func (p *PostgresKV) Watch(ctx context.Context, key string, onChange func()) (func(), error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres watch acquire: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("postgres LISTEN: %w", err)
	}

	// The connection stays in LISTEN state, so take it out of the pool for good.
	listener := conn.Hijack()

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer listener.Close(context.Background())
		for {
			n, err := listener.WaitForNotification(watchCtx)
			if err != nil {
				if watchCtx.Err() == nil {
					p.logger.WithField("key", key).Warnf("postgres watch stopped: %v", err)
				}
				return
			}
			var notice kvNotice
			if err := json.Unmarshal([]byte(n.Payload), &notice); err != nil {
				continue
			}
			if notice.Key != key || notice.Origin == p.origin {
				continue
			}
			onChange()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (p *PostgresKV) Close() error {
	p.pool.Close()
	return nil
}
