// internal/lobby/lobby_store.go
package lobby

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/jason-s-yu/wordhex/internal/models"
	"github.com/jason-s-yu/wordhex/internal/notify"
	"github.com/jason-s-yu/wordhex/internal/storage"
	"github.com/jason-s-yu/wordhex/internal/util"
	"github.com/sirupsen/logrus"
)

// ErrCodeSpaceExhausted is returned when no free lobby code could be drawn.
var ErrCodeSpaceExhausted = errors.New("lobby: no free lobby code")

// maxCodeAttempts bounds resampling when drawing a fresh code.
const maxCodeAttempts = 1000

// Config wires a LobbyStore to its collaborators. Only Storage is required.
type Config struct {
	Storage *storage.Storage
	// Notifier announces changes to other contexts. Nil disables announcements.
	Notifier notify.Notifier
	Logger   *logrus.Logger
	// Defaults overrides models.DefaultLobbySettings.
	Defaults *models.LobbySettings
	// Codes draws a 4-digit lobby code. Defaults to util.LobbyCode.
	Codes func() string
	// IDs draws a player id for joins that arrive without one. Defaults to util.NewID.
	IDs func() string
	// Now is the clock. Defaults to time.Now in UTC.
	Now func() time.Time
}

// LobbyStore is the lobby state machine of one execution context. Every
// mutation reads the whole collection, transforms one lobby, writes the whole
// collection back, then notifies local listeners and announces the change.
//
// Listener callbacks never run while the store's lock is held, so a callback
// may call back into the store. Notifications pass through one FIFO drained by
// one goroutine at a time, so every listener sees snapshots in commit order.
// A mutation made while another goroutine is draining returns before its own
// notifications are delivered; the active drainer delivers them.
type LobbyStore struct {
	mu       sync.Mutex
	store    *storage.Storage
	notifier notify.Notifier
	registry *Registry
	logger   *logrus.Logger
	defaults models.LobbySettings
	codes    func() string
	ids      func() string
	now      func() time.Time

	// queue is appended under mu and drained outside it.
	queueMu  sync.Mutex
	queue    []func()
	draining bool

	stopMu sync.Mutex
	stops  []func()
}

// NewLobbyStore builds a store and installs itself as the storage write hook.
func NewLobbyStore(cfg Config) *LobbyStore {
	s := &LobbyStore{
		store:    cfg.Storage,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		codes:    cfg.Codes,
		ids:      cfg.IDs,
		now:      cfg.Now,
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if cfg.Defaults != nil {
		s.defaults = cfg.Defaults.Clone()
	} else {
		s.defaults = models.DefaultLobbySettings()
	}
	if s.codes == nil {
		s.codes = util.LobbyCode
	}
	if s.ids == nil {
		s.ids = util.NewID
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	s.registry = NewRegistry(s.logger)
	s.store.OnWrite = s.onWrite
	return s
}

// Registry exposes the store's listener registry.
func (s *LobbyStore) Registry() *Registry {
	return s.registry
}

// Defaults returns a copy of the settings applied to new lobbies.
func (s *LobbyStore) Defaults() models.LobbySettings {
	return s.defaults.Clone()
}

// GenerateLobbyCode draws a 4-digit code without checking for collisions.
func (s *LobbyStore) GenerateLobbyCode() string {
	return s.codes()
}

// begin takes the store lock. Notifications queued until commit keep the
// order in which transactions ran.
func (s *LobbyStore) begin() {
	s.mu.Lock()
}

// commit releases the lock, then delivers whatever is queued.
func (s *LobbyStore) commit() {
	s.mu.Unlock()
	s.drain()
}

// enqueue appends fn to the delivery queue. The caller holds the transaction.
func (s *LobbyStore) enqueue(fn func()) {
	s.queueMu.Lock()
	s.queue = append(s.queue, fn)
	s.queueMu.Unlock()
}

// drain runs queued notifications in order until the queue is empty. If
// another goroutine is already draining it returns at once.
func (s *LobbyStore) drain() {
	s.queueMu.Lock()
	if s.draining {
		s.queueMu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.queueMu.Unlock()
		s.run(fn)
		s.queueMu.Lock()
	}
	s.queue = nil
	s.draining = false
	s.queueMu.Unlock()
}

func (s *LobbyStore) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("lobby notification panicked: %v", r)
		}
	}()
	fn()
}

// onWrite is the storage write hook: every persisted collection refreshes the listing.
func (s *LobbyStore) onWrite(lobbies []models.Lobby) {
	listing := sortLobbies(models.CloneLobbies(lobbies))
	s.enqueue(func() { s.registry.NotifyList(listing) })
}

func (s *LobbyStore) queueLobby(lobby models.Lobby) {
	snapshot := lobby.Clone()
	s.enqueue(func() { s.registry.NotifyLobby(snapshot) })
}

func (s *LobbyStore) queueAnnounce(ctx context.Context, code string) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.enqueue(func() {
		if err := s.notifier.Publish(ctx, notify.LobbyUpdated(code)); err != nil {
			s.logger.WithField("code", code).Warnf("failed to announce lobby update: %v", err)
		}
	})
}

// buildLobby constructs a fresh lobby from seed and the store defaults.
func (s *LobbyStore) buildLobby(code string, seed models.LobbySeed) models.Lobby {
	now := s.now()

	hostName := seed.HostName
	if hostName == "" && seed.HostID == "" {
		hostName = "Host"
	}
	status := seed.Status
	if status == "" {
		status = models.LobbyStatusWaiting
	}
	settings := s.defaults.Clone()
	if seed.Settings != nil {
		settings = seed.Settings.Resolved(s.defaults)
	}
	channel := seed.Channel
	if channel == "" && settings.Channel != nil {
		channel = *settings.Channel
	}
	maxPlayers := seed.MaxPlayers
	if maxPlayers <= 0 && settings.MaxPlayers != nil {
		maxPlayers = *settings.MaxPlayers
	}

	return models.Lobby{
		Code:       code,
		HostID:     seed.HostID,
		HostName:   hostName,
		Status:     status,
		Channel:    channel,
		MaxPlayers: maxPlayers,
		Settings:   settings,
		Players:    []models.PlayerEntry{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ensureLocked returns the lobby for code, creating and appending it when absent.
// The caller holds the transaction.
func (s *LobbyStore) ensureLocked(ctx context.Context, code string, seed models.LobbySeed) (models.Lobby, bool) {
	lobbies := s.store.ReadLobbies(ctx)
	if idx := indexOf(lobbies, code); idx != -1 {
		return lobbies[idx], false
	}
	lobby := s.buildLobby(code, seed)
	s.store.WriteLobbies(ctx, append(lobbies, lobby))
	s.queueLobby(lobby)
	s.queueAnnounce(ctx, code)
	s.logger.WithField("code", code).Debug("lobby created")
	return lobby, true
}

// transform edits a private copy of a lobby. Returning false means "no change":
// nothing is written and nobody is notified.
type transform func(lobby *models.Lobby, now time.Time) bool

// replaceLocked runs the transactional replace for code. The caller holds the transaction.
func (s *LobbyStore) replaceLocked(ctx context.Context, code string, fn transform) (*models.Lobby, bool) {
	lobbies := s.store.ReadLobbies(ctx)
	idx := indexOf(lobbies, code)
	if idx == -1 {
		return nil, false
	}
	next := lobbies[idx].Clone()
	now := s.now()
	if !fn(&next, now) {
		return nil, false
	}
	next.Code = code
	next.PlayerCount = len(next.Players)
	next.UpdatedAt = now
	lobbies[idx] = next

	s.store.WriteLobbies(ctx, lobbies)
	s.queueLobby(next)
	s.queueAnnounce(ctx, code)

	out := next.Clone()
	return &out, true
}

// update is replaceLocked wrapped in its own transaction.
func (s *LobbyStore) update(ctx context.Context, code string, fn transform) (*models.Lobby, bool) {
	if code == "" {
		return nil, false
	}
	s.begin()
	defer s.commit()
	return s.replaceLocked(ctx, code, fn)
}

func indexOf(lobbies []models.Lobby, code string) int {
	return slices.IndexFunc(lobbies, func(l models.Lobby) bool { return l.Code == code })
}

// sortLobbies orders most recently active first, in place.
func sortLobbies(lobbies []models.Lobby) []models.Lobby {
	slices.SortStableFunc(lobbies, func(a, b models.Lobby) int {
		return b.LastActivity().Compare(a.LastActivity())
	})
	return lobbies
}
