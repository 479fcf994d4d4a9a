package lobby

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/wordhex/internal/models"
	"github.com/jason-s-yu/wordhex/internal/notify"
	"github.com/jason-s-yu/wordhex/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshots records what a listener was handed.
type snapshots struct {
	mu    sync.Mutex
	lobby []models.Lobby
	lists [][]models.Lobby
}

func (s *snapshots) onLobby(l models.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobby = append(s.lobby, l)
}

func (s *snapshots) onList(l []models.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = append(s.lists, l)
}

func (s *snapshots) lobbyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobby)
}

func (s *snapshots) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lists)
}

func (s *snapshots) lastLobby() models.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby[len(s.lobby)-1]
}

func (s *snapshots) lastList() []models.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists[len(s.lists)-1]
}

func TestSubscribeThenEnsureDeliversOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var rec snapshots
	unsubscribe := s.SubscribeToLobby(ctx, "4821", rec.onLobby)
	defer unsubscribe()
	assert.Equal(t, 0, rec.lobbyCount())

	_, created := s.EnsureLobby(ctx, "4821", models.LobbySeed{})
	require.True(t, created)
	assert.Equal(t, 1, rec.lobbyCount())

	_, created = s.EnsureLobby(ctx, "4821", models.LobbySeed{})
	require.False(t, created)
	assert.Equal(t, 1, rec.lobbyCount())
}

func TestSubscribeDeliversCurrentSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	join(t, s, "4821", "p1", "Nova")

	var rec snapshots
	unsubscribe := s.SubscribeToLobby(ctx, "4821", rec.onLobby)
	require.Equal(t, 1, rec.lobbyCount())
	assert.Equal(t, "Nova", rec.lastLobby().HostName)

	var list snapshots
	unsubList := s.SubscribeToLobbyList(ctx, list.onList)
	require.Equal(t, 1, list.listCount())
	assert.Len(t, list.lastList(), 1)

	join(t, s, "4821", "p2", "Atlas")
	assert.Equal(t, 2, rec.lobbyCount())
	assert.Len(t, rec.lastLobby().Players, 2)
	assert.Equal(t, 2, list.listCount())

	unsubscribe()
	unsubscribe()
	unsubList()
	assert.False(t, s.Registry().HasLobbyListeners("4821"))

	s.IncrementPlayerScore(ctx, "4821", "p1", 1)
	assert.Equal(t, 2, rec.lobbyCount())
	assert.Equal(t, 2, list.listCount())
}

func TestNoopMutationNotifiesNobody(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	join(t, s, "4821", "p1", "Nova")

	var rec, list snapshots
	defer s.SubscribeToLobby(ctx, "4821", rec.onLobby)()
	defer s.SubscribeToLobbyList(ctx, list.onList)()

	s.SetPlayerReady(ctx, "4821", "p1", false)
	s.IncrementPlayerScore(ctx, "4821", "p1", -3)
	s.UpdatePlayerName(ctx, "4821", "p1", "Nova")
	assert.Equal(t, 1, rec.lobbyCount())
	assert.Equal(t, 1, list.listCount())
}

func TestListenersGetIndependentCopies(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	join(t, s, "4821", "p1", "Nova")

	var second snapshots
	defer s.SubscribeToLobby(ctx, "4821", func(l models.Lobby) {
		l.Players[0].Name = "tampered"
	})()
	defer s.SubscribeToLobby(ctx, "4821", second.onLobby)()

	s.IncrementPlayerScore(ctx, "4821", "p1", 1)
	assert.Equal(t, "Nova", second.lastLobby().Players[0].Name)
	got, _ := s.GetLobby(ctx, "4821")
	assert.Equal(t, "Nova", got.Players[0].Name)
}

func TestPanickingListenerIsContained(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var rec snapshots
	defer s.SubscribeToLobby(ctx, "4821", func(models.Lobby) { panic("boom") })()
	defer s.SubscribeToLobby(ctx, "4821", rec.onLobby)()
	defer s.SubscribeToLobbyList(ctx, func([]models.Lobby) { panic("boom") })()

	require.NotPanics(t, func() { join(t, s, "4821", "p1", "Nova") })
	assert.GreaterOrEqual(t, rec.lobbyCount(), 1)
	got, ok := s.GetLobby(ctx, "4821")
	require.True(t, ok)
	assert.Len(t, got.Players, 1)
}

func TestListenerMayCallBackIntoStore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	join(t, s, "4821", "p1", "Nova")

	var once sync.Once
	var rec snapshots
	defer s.SubscribeToLobby(ctx, "4821", func(l models.Lobby) {
		rec.onLobby(l)
		if l.Status == models.LobbyStatusActive {
			return
		}
		if _, ok := l.Player("p1"); ok && l.Players[0].Ready {
			once.Do(func() { s.SetLobbyStatus(ctx, "4821", models.LobbyStatusActive) })
		}
	})()

	done := make(chan struct{})
	go func() {
		s.SetPlayerReady(ctx, "4821", "p1", true)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener re-entry deadlocked")
	}

	got, _ := s.GetLobby(ctx, "4821")
	assert.Equal(t, models.LobbyStatusActive, got.Status)
}

func TestConcurrentMutationsDeliverInCommitOrder(t *testing.T) {
	const writers = 32
	for trial := range 50 {
		s, _ := newTestStore(t)
		ctx := context.Background()
		join(t, s, "4821", "p1", "Nova")

		var rec snapshots
		unsubscribe := s.SubscribeToLobby(ctx, "4821", func(l models.Lobby) {
			runtime.Gosched()
			rec.onLobby(l)
		})

		var wg sync.WaitGroup
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.IncrementPlayerScore(ctx, "4821", "p1", 1)
			}()
		}
		wg.Wait()

		got, ok := s.GetLobby(ctx, "4821")
		require.True(t, ok)
		require.Equal(t, writers, got.Players[0].Score)
		require.Equal(t, writers+1, rec.lobbyCount(), "trial %d", trial)

		rec.mu.Lock()
		for i, l := range rec.lobby {
			require.Equal(t, i, l.Players[0].Score, "trial %d delivery %d out of order", trial, i)
		}
		rec.mu.Unlock()
		unsubscribe()
	}
}

func TestSubscribeSnapshotOrderedWithConcurrentWrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	join(t, s, "4821", "p1", "Nova")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 20 {
			s.IncrementPlayerScore(ctx, "4821", "p1", 1)
		}
	}()

	var rec snapshots
	defer s.SubscribeToLobby(ctx, "4821", func(l models.Lobby) {
		runtime.Gosched()
		rec.onLobby(l)
	})()
	wg.Wait()

	got, _ := s.GetLobby(ctx, "4821")
	require.GreaterOrEqual(t, rec.lobbyCount(), 1)
	assert.Equal(t, got.Players[0].Score, rec.lastLobby().Players[0].Score)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := 1; i < len(rec.lobby); i++ {
		assert.GreaterOrEqual(t, rec.lobby[i].Players[0].Score, rec.lobby[i-1].Players[0].Score)
	}
}

// twoContexts builds two stores sharing one memory space and one hub, the way
// two tabs share a browser profile.
func twoContexts(t *testing.T) (*LobbyStore, *LobbyStore) {
	t.Helper()
	space := storage.NewMemorySpace()
	hub := notify.NewHub(quietLogger())

	open := func() *LobbyStore {
		st := storage.New(context.Background(), space.Open(), storage.Options{Logger: quietLogger()})
		endpoint := hub.Open()
		s := NewLobbyStore(Config{Storage: st, Notifier: endpoint, Logger: quietLogger()})
		s.Start(context.Background())
		t.Cleanup(func() {
			s.Close()
			endpoint.Close()
			st.Close()
		})
		return s
	}
	return open(), open()
}

func TestCrossContextPropagation(t *testing.T) {
	a, b := twoContexts(t)
	ctx := context.Background()

	var rec, list snapshots
	defer b.SubscribeToLobby(ctx, "4821", rec.onLobby)()
	defer b.SubscribeToLobbyList(ctx, list.onList)()

	join(t, a, "4821", "p1", "Nova")

	require.Eventually(t, func() bool {
		return rec.lobbyCount() > 0 && len(rec.lastLobby().Players) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "p1", rec.lastLobby().HostID)
	require.Eventually(t, func() bool {
		l := list.lastList()
		return len(l) == 1 && l[0].Code == "4821"
	}, 2*time.Second, 5*time.Millisecond)

	l, ok := b.JoinLobby(ctx, "4821", models.NewPlayerPatch("p2", "Atlas"), models.LobbySeed{})
	require.True(t, ok)
	assert.Len(t, l.Players, 2)
	got, ok := a.GetLobby(ctx, "4821")
	require.True(t, ok)
	assert.Len(t, got.Players, 2)
}

func TestStartWithoutNotifierStillWatchesStorage(t *testing.T) {
	space := storage.NewMemorySpace()
	stA := storage.New(context.Background(), space.Open(), storage.Options{Logger: quietLogger()})
	stB := storage.New(context.Background(), space.Open(), storage.Options{Logger: quietLogger()})
	a := NewLobbyStore(Config{Storage: stA, Logger: quietLogger()})
	b := NewLobbyStore(Config{Storage: stB, Logger: quietLogger()})
	b.Start(context.Background())
	defer b.Close()

	var list snapshots
	defer b.SubscribeToLobbyList(context.Background(), list.onList)()

	_, created := a.EnsureLobby(context.Background(), "1111", models.LobbySeed{})
	require.True(t, created)
	require.Eventually(t, func() bool { return len(list.lastList()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestHandleMessageIgnoresUnknownLobby(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	join(t, s, "4821", "p1", "Nova")

	var rec, list snapshots
	defer s.SubscribeToLobby(ctx, "4821", rec.onLobby)()
	defer s.SubscribeToLobbyList(ctx, list.onList)()

	s.handleMessage(ctx, notify.LobbyUpdated("0000"))
	assert.Equal(t, 1, rec.lobbyCount())
	assert.Equal(t, 2, list.listCount())

	s.handleMessage(ctx, notify.LobbyUpdated("4821"))
	assert.Equal(t, 2, rec.lobbyCount())
	assert.Equal(t, 3, list.listCount())

	s.handleMessage(ctx, notify.Message{Type: "other", Payload: "4821"})
	assert.Equal(t, 2, rec.lobbyCount())
}
