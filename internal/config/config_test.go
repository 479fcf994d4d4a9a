package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORAGE_DRIVER", "NOTIFIER_DRIVER", "PORT", "LOG_LEVEL", "REDIS_DB", "WATCH_INTERVAL", "TOKEN_EXPIRE_TIME", "ALLOWED_ORIGINS", "LOBBIES_KEY", "TOKEN_PRIVATE_KEY_PATH", "TOKEN_PUBLIC_KEY_PATH"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, NotifierHub, cfg.NotifierDriver)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "wordhex:lobbies", cfg.LobbiesKey)
	assert.Equal(t, "wordhex:lobby-sync", cfg.SyncChannel)
	assert.Equal(t, 250*time.Millisecond, cfg.WatchInterval)
	assert.Zero(t, cfg.TokenExpireTime)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.TokenPrivateKeyPath)
	assert.Empty(t, cfg.TokenPublicKeyPath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Redis")
	t.Setenv("NOTIFIER_DRIVER", "none")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WATCH_INTERVAL", "1s")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("TOKEN_PRIVATE_KEY_PATH", "/keys/ed25519.key")
	t.Setenv("TOKEN_PUBLIC_KEY_PATH", "/keys/ed25519.pub")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.StorageDriver)
	assert.Equal(t, NotifierNone, cfg.NotifierDriver)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.WatchInterval)
	assert.Equal(t, 72*time.Hour, cfg.TokenExpireTime)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "/keys/ed25519.key", cfg.TokenPrivateKeyPath)
	assert.Equal(t, "/keys/ed25519.pub", cfg.TokenPublicKeyPath)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"unknown driver":   {"STORAGE_DRIVER", "etcd"},
		"unknown notifier": {"NOTIFIER_DRIVER", "kafka"},
		"bad redis db":     {"REDIS_DB", "zero"},
		"bad interval":     {"WATCH_INTERVAL", "often"},
		"bad level":        {"LOG_LEVEL", "chatty"},
		"postgres no dsn":  {"STORAGE_DRIVER", "postgres"},
		"half a key pair":  {"TOKEN_PRIVATE_KEY_PATH", "/keys/ed25519.key"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
