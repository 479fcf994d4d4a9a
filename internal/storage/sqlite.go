package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// DefaultWatchInterval is how often the SQLite watcher checks for commits
// made by other connections.
const DefaultWatchInterval = 250 * time.Millisecond

// SQLiteKV stores blobs in a local SQLite file. Several processes opening the
// same file see each other's writes, which makes it the closest analogue of a
// browser profile's local storage.
type SQLiteKV struct {
	db       *sql.DB
	interval time.Duration
	tracker  *contentTracker
	logger   *logrus.Logger
}

// NewSQLite opens (creating if needed) the database at path and bootstraps the schema.
func NewSQLite(path string, interval time.Duration, logger *logrus.Logger) (*SQLiteKV, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db %s: %w", path, err)
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	kv := &SQLiteKV{db: db, interval: interval, tracker: newContentTracker(), logger: logger}
	if err := kv.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}

func (s *SQLiteKV) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	q := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	// Recorded before the commit so the watcher can never see our own write first.
	s.tracker.record(key, value)
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		s.tracker.forget(key, value)
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteKV) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Watch polls PRAGMA data_version on a dedicated connection. The version only
// moves when another connection commits; the content check then filters out
// commits made by this handle's own pool.
func (s *SQLiteKV) Watch(ctx context.Context, key string, onChange func()) (func(), error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite watch conn: %w", err)
	}
	version, err := dataVersion(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if current, ok, err := s.Get(ctx, key); err == nil && ok {
		s.tracker.observe(key, current)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				next, err := dataVersion(watchCtx, conn)
				if err != nil {
					if watchCtx.Err() == nil {
						s.logger.WithField("key", key).Warnf("sqlite watch: %v", err)
					}
					continue
				}
				if next == version {
					continue
				}
				version = next
				value, ok, err := s.Get(watchCtx, key)
				if err != nil {
					continue
				}
				if !ok {
					value = nil
				}
				if s.tracker.observe(key, value) {
					onChange()
				}
			}
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

func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

func dataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("sqlite data_version: %w", err)
	}
	return v, nil
}
