// internal/lobby/ops.go
package lobby

import (
	"context"
	"math"
	"time"

	"github.com/jason-s-yu/wordhex/internal/models"
)

// EnsureLobby returns the lobby for code, creating it from seed when absent.
// An existing lobby is returned untouched and nothing is written.
func (s *LobbyStore) EnsureLobby(ctx context.Context, code string, seed models.LobbySeed) (*models.Lobby, bool) {
	if code == "" {
		return nil, false
	}
	s.begin()
	defer s.commit()
	lobby, created := s.ensureLocked(ctx, code, seed)
	out := lobby.Clone()
	return &out, created
}

// CreateLobby creates a lobby under seed.Code, or under a fresh code when the
// seed carries none or its code is taken. Taken codes are resampled, never incremented.
func (s *LobbyStore) CreateLobby(ctx context.Context, seed models.LobbySeed) (*models.Lobby, error) {
	s.begin()
	defer s.commit()

	lobbies := s.store.ReadLobbies(ctx)
	code := seed.Code
	for attempt := 0; code == "" || indexOf(lobbies, code) != -1; attempt++ {
		if attempt >= maxCodeAttempts {
			return nil, ErrCodeSpaceExhausted
		}
		code = s.codes()
	}

	lobby, _ := s.ensureLocked(ctx, code, seed)
	out := lobby.Clone()
	return &out, nil
}

// JoinLobby adds the player described by patch to lobby code, creating the
// lobby from seed first if needed. A player already present is merged rather
// than duplicated. The first joiner of a hostless lobby becomes its host.
func (s *LobbyStore) JoinLobby(ctx context.Context, code string, patch models.PlayerPatch, seed models.LobbySeed) (*models.Lobby, bool) {
	if code == "" {
		return nil, false
	}
	if patch.ID == "" {
		patch.ID = s.ids()
	}

	s.begin()
	defer s.commit()

	s.ensureLocked(ctx, code, seed)
	return s.replaceLocked(ctx, code, func(l *models.Lobby, now time.Time) bool {
		idx := l.PlayerIndex(patch.ID)
		if idx == -1 {
			entry := models.PlayerEntry{
				ID:       patch.ID,
				Name:     "Player " + s.codes(),
				IsActive: true,
				JoinedAt: now,
			}
			l.Players = append(l.Players, entry)
			idx = len(l.Players) - 1
		}
		entry := patch.Apply(l.Players[idx])
		entry.UpdatedAt = now
		l.Players[idx] = entry

		if l.HostID == "" {
			l.HostID = entry.ID
			l.HostName = entry.Name
		} else if l.HostID == entry.ID {
			l.HostName = entry.Name
		}
		return true
	})
}

// TogglePlayerReady flips the ready flag of playerID.
func (s *LobbyStore) TogglePlayerReady(ctx context.Context, code, playerID string) (*models.Lobby, bool) {
	return s.setReady(ctx, code, playerID, nil)
}

// SetPlayerReady forces the ready flag of playerID. Setting the current value is a no-op.
func (s *LobbyStore) SetPlayerReady(ctx context.Context, code, playerID string, ready bool) (*models.Lobby, bool) {
	return s.setReady(ctx, code, playerID, &ready)
}

func (s *LobbyStore) setReady(ctx context.Context, code, playerID string, forced *bool) (*models.Lobby, bool) {
	return s.update(ctx, code, func(l *models.Lobby, now time.Time) bool {
		idx := l.PlayerIndex(playerID)
		if idx == -1 {
			return false
		}
		next := !l.Players[idx].Ready
		if forced != nil {
			next = *forced
		}
		if next == l.Players[idx].Ready {
			return false
		}
		l.Players[idx].Ready = next
		l.Players[idx].UpdatedAt = now
		return true
	})
}

// IncrementPlayerScore adds delta to the score of playerID. Scores never drop below zero.
func (s *LobbyStore) IncrementPlayerScore(ctx context.Context, code, playerID string, delta int) (*models.Lobby, bool) {
	if delta == 0 {
		return nil, false
	}
	return s.update(ctx, code, func(l *models.Lobby, now time.Time) bool {
		idx := l.PlayerIndex(playerID)
		if idx == -1 {
			return false
		}
		next := saturatingAdd(l.Players[idx].Score, delta)
		if next == l.Players[idx].Score {
			return false
		}
		l.Players[idx].Score = next
		l.Players[idx].UpdatedAt = now
		return true
	})
}

// saturatingAdd returns score+delta clamped to [0, math.MaxInt]. Stored scores are never negative.
func saturatingAdd(score, delta int) int {
	if delta > 0 && score > math.MaxInt-delta {
		return math.MaxInt
	}
	return max(0, score+delta)
}

// UpdatePlayerName renames playerID. Renaming the host keeps hostName in step.
func (s *LobbyStore) UpdatePlayerName(ctx context.Context, code, playerID, name string) (*models.Lobby, bool) {
	if name == "" {
		return nil, false
	}
	return s.update(ctx, code, func(l *models.Lobby, now time.Time) bool {
		idx := l.PlayerIndex(playerID)
		if idx == -1 || l.Players[idx].Name == name {
			return false
		}
		l.Players[idx].Name = name
		l.Players[idx].UpdatedAt = now
		if l.HostID == playerID {
			l.HostName = name
		}
		return true
	})
}

// SetLobbyStatus moves the lobby to status. Empty or unchanged status is a no-op.
func (s *LobbyStore) SetLobbyStatus(ctx context.Context, code string, status models.LobbyStatus) (*models.Lobby, bool) {
	if status == "" {
		return nil, false
	}
	return s.update(ctx, code, func(l *models.Lobby, _ time.Time) bool {
		if l.Status == status {
			return false
		}
		l.Status = status
		return true
	})
}

// GetLobby returns a copy of the lobby stored under code.
func (s *LobbyStore) GetLobby(ctx context.Context, code string) (*models.Lobby, bool) {
	if code == "" {
		return nil, false
	}
	lobbies := s.store.ReadLobbies(ctx)
	idx := indexOf(lobbies, code)
	if idx == -1 {
		return nil, false
	}
	out := lobbies[idx].Clone()
	return &out, true
}

// ListLobbies returns every lobby, most recently active first.
func (s *LobbyStore) ListLobbies(ctx context.Context) []models.Lobby {
	return sortLobbies(s.store.ReadLobbies(ctx))
}
