// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/wordhex/internal/auth"
	"github.com/jason-s-yu/wordhex/internal/notify"
	"github.com/jason-s-yu/wordhex/internal/storage"
	"github.com/sirupsen/logrus"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Notifier drivers.
const (
	NotifierHub   = "hub"
	NotifierRedis = "redis"
	NotifierNone  = "none"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Env      string
	Port     string
	LogLevel logrus.Level

	StorageDriver string
	SQLitePath    string
	RedisAddr     string
	RedisDB       int
	DatabaseURL   string

	NotifierDriver string
	LobbiesKey     string
	ProfileKey     string
	SyncChannel    string
	WatchInterval  time.Duration

	TokenExpireTime time.Duration

	// TokenPrivateKeyPath and TokenPublicKeyPath name raw ed25519 key files.
	// When both are empty a key pair is generated per process.
	TokenPrivateKeyPath string
	TokenPublicKeyPath  string
	AllowedOrigins      []string
}

// Load reads the configuration. Unset variables take their defaults; values
// that are set but unparsable are errors.
func Load() (Config, error) {
	cfg := Config{
		Env:            getEnv("WORDHEX_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", DriverSQLite)),
		SQLitePath:     getEnv("SQLITE_PATH", "wordhex.db"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		NotifierDriver: strings.ToLower(getEnv("NOTIFIER_DRIVER", NotifierHub)),
		LobbiesKey:     getEnv("LOBBIES_KEY", storage.DefaultLobbiesKey),
		ProfileKey:     getEnv("PROFILE_KEY", storage.DefaultProfileKey),
		SyncChannel:    getEnv("SYNC_CHANNEL", notify.DefaultChannel),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),

		TokenPrivateKeyPath: getEnv("TOKEN_PRIVATE_KEY_PATH", ""),
		TokenPublicKeyPath:  getEnv("TOKEN_PUBLIC_KEY_PATH", ""),
	}

	var err error
	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.WatchInterval, err = getEnvDuration("WATCH_INTERVAL", storage.DefaultWatchInterval); err != nil {
		return Config{}, err
	}
	if cfg.TokenExpireTime, err = auth.ParseExpireTime(getEnv("TOKEN_EXPIRE_TIME", "")); err != nil {
		return Config{}, err
	}

	if (cfg.TokenPrivateKeyPath == "") != (cfg.TokenPublicKeyPath == "") {
		return Config{}, fmt.Errorf("TOKEN_PRIVATE_KEY_PATH and TOKEN_PUBLIC_KEY_PATH must be set together")
	}

	switch cfg.StorageDriver {
	case DriverMemory, DriverSQLite, DriverRedis:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("STORAGE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	switch cfg.NotifierDriver {
	case NotifierHub, NotifierRedis, NotifierNone:
	default:
		return Config{}, fmt.Errorf("unknown NOTIFIER_DRIVER %q", cfg.NotifierDriver)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
