// internal/lobby/registry.go
package lobby

import (
	"sync"

	"github.com/jason-s-yu/wordhex/internal/models"
	"github.com/sirupsen/logrus"
)

// LobbyListener receives a lobby snapshot. The value is the listener's own copy.
type LobbyListener func(models.Lobby)

// ListListener receives the sorted lobby listing. The slice is the listener's own copy.
type ListListener func([]models.Lobby)

// Registry holds the per-lobby and global listener sets of one context.
// It keeps no lobby state of its own.
type Registry struct {
	mu     sync.RWMutex
	lobby  map[string]map[uint64]LobbyListener
	list   map[uint64]ListListener
	nextID uint64
	logger *logrus.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		lobby:  make(map[string]map[uint64]LobbyListener),
		list:   make(map[uint64]ListListener),
		logger: logger,
	}
}

// AddLobbyListener registers fn for code. The returned func removes it, dropping
// the set for code once it is empty; calling it again does nothing.
func (r *Registry) AddLobbyListener(code string, fn LobbyListener) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	set, ok := r.lobby[code]
	if !ok {
		set = make(map[uint64]LobbyListener)
		r.lobby[code] = set
	}
	set[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			current, ok := r.lobby[code]
			if !ok {
				return
			}
			delete(current, id)
			if len(current) == 0 {
				delete(r.lobby, code)
			}
		})
	}
}

// AddListListener registers fn for listing changes.
func (r *Registry) AddListListener(fn ListListener) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.list[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.list, id)
			r.mu.Unlock()
		})
	}
}

// HasLobbyListeners reports whether anyone listens to code.
func (r *Registry) HasLobbyListeners(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lobby[code]) > 0
}

// NotifyLobby delivers lobby to every listener of its code.
func (r *Registry) NotifyLobby(lobby models.Lobby) {
	r.mu.RLock()
	set := r.lobby[lobby.Code]
	fns := make([]LobbyListener, 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		r.deliverLobby(fn, lobby)
	}
}

// NotifyList delivers the listing to every list listener.
func (r *Registry) NotifyList(lobbies []models.Lobby) {
	r.mu.RLock()
	fns := make([]ListListener, 0, len(r.list))
	for _, fn := range r.list {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		r.deliverList(fn, lobbies)
	}
}

// deliverLobby hands fn its own copy and contains any panic it raises.
func (r *Registry) deliverLobby(fn LobbyListener, lobby models.Lobby) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithField("code", lobby.Code).Errorf("Failed to notify lobby listener: %v", rec)
		}
	}()
	fn(lobby.Clone())
}

func (r *Registry) deliverList(fn ListListener, lobbies []models.Lobby) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("Failed to notify lobby list listener: %v", rec)
		}
	}()
	fn(models.CloneLobbies(lobbies))
}
