// internal/storage/adapter.go
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jason-s-yu/wordhex/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultLobbiesKey holds the whole lobby collection as one JSON array.
	DefaultLobbiesKey = "wordhex:lobbies"
	// DefaultProfileKey holds the local player profile.
	DefaultProfileKey = "wordhex:player-profile"
)

// Options configures a Storage adapter.
type Options struct {
	LobbiesKey string
	ProfileKey string
	Logger     *logrus.Logger
}

// Storage reads and writes the lobby collection and the local profile as
// single blobs. Availability is probed once; an unavailable adapter reads as
// empty and drops writes instead of returning errors.
type Storage struct {
	backend    Backend
	available  bool
	lobbiesKey string
	profileKey string
	logger     *logrus.Logger

	// OnWrite runs synchronously after every successful WriteLobbies, with the
	// collection that was written.
	OnWrite func(lobbies []models.Lobby)
}

// New wraps backend, probing it with Ping. A nil backend yields an unavailable adapter.
func New(ctx context.Context, backend Backend, opts Options) *Storage {
	s := &Storage{
		backend:    backend,
		lobbiesKey: opts.LobbiesKey,
		profileKey: opts.ProfileKey,
		logger:     opts.Logger,
	}
	if s.lobbiesKey == "" {
		s.lobbiesKey = DefaultLobbiesKey
	}
	if s.profileKey == "" {
		s.profileKey = DefaultProfileKey
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}

	if backend != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := backend.Ping(probeCtx); err != nil {
			s.logger.Warnf("storage is unavailable, falling back to process-local state: %v", err)
		} else {
			s.available = true
		}
	} else {
		s.logger.Warn("no storage backend configured, falling back to process-local state")
	}
	return s
}

// Available reports the result of the startup probe.
func (s *Storage) Available() bool {
	return s.available
}

// ReadLobbies returns the persisted collection. Absent, unreadable or
// malformed content all yield an empty collection.
func (s *Storage) ReadLobbies(ctx context.Context) []models.Lobby {
	raw, ok := s.read(ctx, s.lobbiesKey)
	if !ok {
		return []models.Lobby{}
	}
	var lobbies []models.Lobby
	if err := json.Unmarshal(raw, &lobbies); err != nil {
		s.logger.WithField("key", s.lobbiesKey).Warnf("discarding malformed lobby collection: %v", err)
		return []models.Lobby{}
	}
	if lobbies == nil {
		return []models.Lobby{}
	}
	return lobbies
}

// WriteLobbies replaces the persisted collection. It reports whether the write happened.
func (s *Storage) WriteLobbies(ctx context.Context, lobbies []models.Lobby) bool {
	if !s.available {
		return false
	}
	if lobbies == nil {
		lobbies = []models.Lobby{}
	}
	data, err := json.Marshal(lobbies)
	if err != nil {
		s.logger.WithField("key", s.lobbiesKey).Errorf("failed to encode lobby collection: %v", err)
		return false
	}
	if err := s.backend.Set(ctx, s.lobbiesKey, data); err != nil {
		s.logger.WithField("key", s.lobbiesKey).Errorf("failed to persist lobby collection: %v", err)
		return false
	}
	if s.OnWrite != nil {
		s.OnWrite(lobbies)
	}
	return true
}

// ReadProfile returns the persisted profile. ok is false when there is none
// or it cannot be decoded.
func (s *Storage) ReadProfile(ctx context.Context) (models.PlayerProfile, bool) {
	raw, ok := s.read(ctx, s.profileKey)
	if !ok {
		return models.PlayerProfile{}, false
	}
	var p models.PlayerProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.WithField("key", s.profileKey).Warnf("discarding malformed player profile: %v", err)
		return models.PlayerProfile{}, false
	}
	return p, true
}

// WriteProfile persists the profile. It reports whether the write happened.
func (s *Storage) WriteProfile(ctx context.Context, p models.PlayerProfile) bool {
	if !s.available {
		return false
	}
	data, err := json.Marshal(p)
	if err != nil {
		return false
	}
	if err := s.backend.Set(ctx, s.profileKey, data); err != nil {
		s.logger.WithField("key", s.profileKey).Errorf("failed to persist player profile: %v", err)
		return false
	}
	return true
}

// Watch forwards to the backend's Watcher for the lobby collection key.
// ok is false when the backend cannot observe foreign writes.
func (s *Storage) Watch(ctx context.Context, onChange func()) (stop func(), ok bool, err error) {
	if !s.available {
		return nil, false, nil
	}
	w, isWatcher := s.backend.(Watcher)
	if !isWatcher {
		return nil, false, nil
	}
	stop, err = w.Watch(ctx, s.lobbiesKey, onChange)
	if err != nil {
		return nil, false, err
	}
	return stop, true, nil
}

// Close releases the backend.
func (s *Storage) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Storage) read(ctx context.Context, key string) ([]byte, bool) {
	if !s.available {
		return nil, false
	}
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.WithField("key", key).Errorf("failed to read storage: %v", err)
		return nil, false
	}
	if !ok || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}
