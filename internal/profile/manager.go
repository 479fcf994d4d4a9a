// internal/profile/manager.go
package profile

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/wordhex/internal/models"
	"github.com/jason-s-yu/wordhex/internal/storage"
	"github.com/jason-s-yu/wordhex/internal/util"
	"github.com/sirupsen/logrus"
)

// Manager lazily creates and persists the local player identity. When storage
// is unavailable the identity lives in process memory for the life of the Manager.
type Manager struct {
	mu     sync.Mutex
	store  *storage.Storage
	local  *models.PlayerProfile
	logger *logrus.Logger
	now    func() time.Time
	codes  func() string
	ids    func() string
}

// NewManager binds a Manager to store.
func NewManager(store *storage.Storage, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		codes:  util.LobbyCode,
		ids:    util.NewID,
	}
}

// Ensure returns the persisted profile, creating one when none is valid.
func (m *Manager) Ensure(ctx context.Context) models.PlayerProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(ctx)
}

// Get is Ensure under the name callers reading the default actor expect.
func (m *Manager) Get(ctx context.Context) models.PlayerProfile {
	return m.Ensure(ctx)
}

// Update merges patch onto the current profile and stamps updatedAt.
func (m *Manager) Update(ctx context.Context, patch models.ProfilePatch) models.PlayerProfile {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := patch.Apply(m.ensureLocked(ctx))
	next.UpdatedAt = m.now()
	if !m.store.Available() || !m.store.WriteProfile(ctx, next) {
		m.local = &next
	}
	return next
}

func (m *Manager) ensureLocked(ctx context.Context) models.PlayerProfile {
	if !m.store.Available() {
		if m.local == nil {
			p := m.fresh()
			m.local = &p
		}
		return *m.local
	}

	if p, ok := m.store.ReadProfile(ctx); ok && p.Valid() {
		return p
	}
	if m.local != nil {
		return *m.local
	}
	p := m.fresh()
	if !m.store.WriteProfile(ctx, p) {
		m.local = &p
	}
	m.logger.WithField("id", p.ID).Info("created local player profile")
	return p
}

func (m *Manager) fresh() models.PlayerProfile {
	return models.PlayerProfile{
		ID:        m.ids(),
		Name:      "Player " + m.codes(),
		CreatedAt: m.now(),
	}
}
