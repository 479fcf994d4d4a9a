// internal/lobby/sync.go
package lobby

import (
	"context"

	"github.com/jason-s-yu/wordhex/internal/models"
	"github.com/jason-s-yu/wordhex/internal/notify"
)

// SubscribeToLobby registers fn for changes to lobby code and immediately
// delivers the current snapshot when the lobby exists. The returned func
// unsubscribes and may be called any number of times.
func (s *LobbyStore) SubscribeToLobby(ctx context.Context, code string, fn LobbyListener) func() {
	s.begin()
	defer s.commit()
	unsubscribe := s.registry.AddLobbyListener(code, fn)
	if lobby, ok := s.GetLobby(ctx, code); ok {
		snapshot := *lobby
		s.enqueue(func() { s.registry.deliverLobby(fn, snapshot) })
	}
	return unsubscribe
}

// SubscribeToLobbyList registers fn for listing changes and immediately
// delivers the current listing.
func (s *LobbyStore) SubscribeToLobbyList(ctx context.Context, fn ListListener) func() {
	s.begin()
	defer s.commit()
	unsubscribe := s.registry.AddListListener(fn)
	listing := s.ListLobbies(ctx)
	s.enqueue(func() { s.registry.deliverList(fn, listing) })
	return unsubscribe
}

// Start attaches the store to changes made by other contexts: native storage
// change events and notifier announcements. A missing channel is logged and
// skipped; the store keeps working for local mutations.
func (s *LobbyStore) Start(ctx context.Context) {
	stop, ok, err := s.store.Watch(ctx, func() { s.handleStorageChange(context.Background()) })
	switch {
	case err != nil:
		s.logger.Warnf("storage change events unavailable: %v", err)
	case !ok:
		s.logger.Info("storage backend does not report foreign writes; relying on notifier")
	default:
		s.addStop(stop)
	}

	if s.notifier == nil {
		s.logger.Info("no cross-context notifier configured")
		return
	}
	stop, err = s.notifier.Listen(ctx, func(msg notify.Message) { s.handleMessage(context.Background(), msg) })
	if err != nil {
		s.logger.Warnf("notifier listen failed: %v", err)
		return
	}
	s.addStop(stop)
}

// Close detaches from storage events and the notifier. Backends and the
// notifier itself are closed by their owner.
func (s *LobbyStore) Close() {
	s.stopMu.Lock()
	stops := s.stops
	s.stops = nil
	s.stopMu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

func (s *LobbyStore) addStop(stop func()) {
	s.stopMu.Lock()
	s.stops = append(s.stops, stop)
	s.stopMu.Unlock()
}

// handleStorageChange refreshes every listener after another context rewrote
// the collection.
func (s *LobbyStore) handleStorageChange(ctx context.Context) {
	s.begin()
	lobbies := s.store.ReadLobbies(ctx)
	listing := sortLobbies(models.CloneLobbies(lobbies))
	s.enqueue(func() { s.registry.NotifyList(listing) })
	for i := range lobbies {
		if s.registry.HasLobbyListeners(lobbies[i].Code) {
			s.queueLobby(lobbies[i])
		}
	}
	s.commit()
}

// handleMessage reacts to a lobby-updated announcement from another context.
func (s *LobbyStore) handleMessage(ctx context.Context, msg notify.Message) {
	if msg.Type != notify.TypeLobbyUpdated {
		return
	}
	s.logger.WithField("code", msg.Payload).Debug("received lobby update announcement")

	s.begin()
	lobbies := s.store.ReadLobbies(ctx)
	listing := sortLobbies(models.CloneLobbies(lobbies))
	s.enqueue(func() { s.registry.NotifyList(listing) })
	if msg.Payload != "" {
		if idx := indexOf(lobbies, msg.Payload); idx != -1 {
			s.queueLobby(lobbies[idx])
		}
	}
	s.commit()
}
