// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/wordhex/internal/auth"
	"github.com/jason-s-yu/wordhex/internal/config"
	"github.com/jason-s-yu/wordhex/internal/lobby"
	"github.com/jason-s-yu/wordhex/internal/notify"
	"github.com/jason-s-yu/wordhex/internal/profile"
	"github.com/jason-s-yu/wordhex/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Options carries process-level collaborators shared between contexts.
type Options struct {
	Logger *logrus.Logger
	// Space backs the memory driver. Contexts sharing a Space share lobbies.
	Space *storage.MemorySpace
	// Hub backs the hub notifier. Contexts sharing a Hub hear each other.
	Hub *notify.Hub
	// Issuer signs actor tokens. When nil the configured key files are
	// loaded, or a fresh key pair is generated.
	Issuer *auth.Issuer
}

// App is one execution context: its storage handle, notifier endpoint, lobby
// store and profile manager, wired together and started.
type App struct {
	Config   config.Config
	Logger   *logrus.Logger
	Storage  *storage.Storage
	Notifier notify.Notifier
	Lobbies  *lobby.LobbyStore
	Profiles *profile.Manager
	Issuer   *auth.Issuer

	closers []func() error
}

// Open builds and starts a context from cfg. Backends that cannot be reached
// degrade the context instead of failing it: lobby state then lives only as
// long as each call, and cross-context announcements are skipped.
func Open(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(cfg.LogLevel)
	}
	a := &App{Config: cfg, Logger: logger, Issuer: opts.Issuer}

	if a.Issuer == nil {
		issuer, err := openIssuer(cfg)
		if err != nil {
			return nil, err
		}
		a.Issuer = issuer
	}

	backend, rdb := a.openBackend(ctx, opts)
	a.Storage = storage.New(ctx, backend, storage.Options{
		LobbiesKey: cfg.LobbiesKey,
		ProfileKey: cfg.ProfileKey,
		Logger:     logger,
	})
	a.closers = append(a.closers, a.Storage.Close)

	a.Notifier = a.openNotifier(opts, rdb)
	if a.Notifier != nil {
		a.closers = append(a.closers, a.Notifier.Close)
	}

	a.Lobbies = lobby.NewLobbyStore(lobby.Config{
		Storage:  a.Storage,
		Notifier: a.Notifier,
		Logger:   logger,
	})
	a.Lobbies.Start(ctx)
	a.Profiles = profile.NewManager(a.Storage, logger)

	logger.WithFields(logrus.Fields{
		"backend":   cfg.StorageDriver,
		"notifier":  cfg.NotifierDriver,
		"available": a.Storage.Available(),
	}).Info("lobby context ready")
	return a, nil
}

// openBackend connects the configured driver. On failure it logs and returns
// nil, which Storage treats as unavailable.
// openIssuer loads the configured key pair, or generates one when none is configured.
func openIssuer(cfg config.Config) (*auth.Issuer, error) {
	if cfg.TokenPrivateKeyPath == "" {
		return auth.NewIssuer(cfg.TokenExpireTime)
	}
	issuer, err := auth.NewIssuerFromPath(cfg.TokenPrivateKeyPath, cfg.TokenPublicKeyPath, cfg.TokenExpireTime)
	if err != nil {
		return nil, fmt.Errorf("failed to load token keys: %w", err)
	}
	return issuer, nil
}

func (a *App) openBackend(ctx context.Context, opts Options) (storage.Backend, *redis.Client) {
	cfg := a.Config
	log := a.Logger.WithField("backend", cfg.StorageDriver)

	switch cfg.StorageDriver {
	case config.DriverMemory:
		space := opts.Space
		if space == nil {
			space = storage.NewMemorySpace()
		}
		return space.Open(), nil
	case config.DriverSQLite:
		kv, err := storage.NewSQLite(cfg.SQLitePath, cfg.WatchInterval, a.Logger)
		if err != nil {
			log.Warnf("sqlite unavailable: %v", err)
			return nil, nil
		}
		return kv, nil
	case config.DriverRedis:
		kv, err := storage.ConnectRedis(cfg.RedisAddr, cfg.RedisDB, a.Logger)
		if err != nil {
			log.Warnf("redis unavailable: %v", err)
			return nil, nil
		}
		return kv, kv.Client()
	case config.DriverPostgres:
		kv, err := storage.ConnectPostgres(ctx, cfg.DatabaseURL, a.Logger)
		if err != nil {
			log.Warnf("postgres unavailable: %v", err)
			return nil, nil
		}
		return kv, nil
	}
	log.Warn("unknown storage driver")
	return nil, nil
}

func (a *App) openNotifier(opts Options, rdb *redis.Client) notify.Notifier {
	switch a.Config.NotifierDriver {
	case config.NotifierHub:
		hub := opts.Hub
		if hub == nil {
			hub = notify.NewHub(a.Logger)
		}
		return hub.Open()
	case config.NotifierRedis:
		if rdb == nil {
			kv, err := storage.ConnectRedis(a.Config.RedisAddr, a.Config.RedisDB, a.Logger)
			if err != nil {
				a.Logger.Warnf("redis notifier unavailable: %v", err)
				return nil
			}
			a.closers = append(a.closers, kv.Close)
			rdb = kv.Client()
		}
		return notify.NewRedisNotifier(rdb, a.Config.SyncChannel, a.Logger)
	}
	return nil
}

// Actor returns the default actor of this context: the local player profile.
func (a *App) Actor(ctx context.Context) auth.Actor {
	p := a.Profiles.Ensure(ctx)
	return auth.Actor{ID: p.ID, Name: p.Name}
}

// Close stops the lobby store and releases every handle, newest first.
func (a *App) Close() error {
	if a.Lobbies != nil {
		a.Lobbies.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close lobby context: %w", err)
	}
	return nil
}
