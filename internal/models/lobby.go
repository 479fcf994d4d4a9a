// internal/models/lobby.go
package models

import (
	"encoding/json"
	"reflect"
	"time"
)

// LobbyStatus is the coarse lifecycle state of a lobby. The set is open-ended;
// the values below are the ones the lobby service itself produces.
type LobbyStatus string

const (
	LobbyStatusWaiting LobbyStatus = "waiting"
	LobbyStatusActive  LobbyStatus = "active"
)

// Lobby is one shared game session as persisted in the lobby collection.
// Field names are part of the stored format and shared with every other
// context reading the same key.
type Lobby struct {
	// Code is the short shareable identifier. It never changes after creation.
	Code string `json:"code"`

	// HostID is empty until the first player joins or a seed sets it.
	HostID   string `json:"hostId"`
	HostName string `json:"hostName"`

	Status     LobbyStatus   `json:"status,omitempty"`
	Channel    string        `json:"channel,omitempty"`
	MaxPlayers int           `json:"maxPlayers,omitempty"`
	Settings   LobbySettings `json:"settings"`

	// Players is kept in join order; ranking is a display concern.
	Players     []PlayerEntry `json:"players"`
	PlayerCount int           `json:"playerCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// CodeCreatedAt is when the code was drawn. Kept as the raw string other
	// writers stored, so a foreign format never invalidates the collection.
	CodeCreatedAt string `json:"codeCreatedAt,omitempty"`

	Extra Extra `json:"-"`
}

type plainLobby Lobby

var lobbyFields = jsonFields(reflect.TypeFor[plainLobby]())

// MarshalJSON writes the modelled fields followed by any carried Extra.
func (l Lobby) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainLobby(l))
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, l.Extra)
}

// UnmarshalJSON keeps members it does not model in Extra.
func (l *Lobby) UnmarshalJSON(data []byte) error {
	var p plainLobby
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, lobbyFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	*l = Lobby(p)
	return nil
}

// Clone returns a deep copy that shares no mutable state with l.
func (l Lobby) Clone() Lobby {
	out := l
	out.Settings = l.Settings.Clone()
	out.Extra = l.Extra.Clone()
	if l.Players != nil {
		out.Players = make([]PlayerEntry, len(l.Players))
		copy(out.Players, l.Players)
	}
	return out
}

// PlayerIndex returns the position of the entry with the given id, or -1.
func (l *Lobby) PlayerIndex(playerID string) int {
	for i := range l.Players {
		if l.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

// Player returns a copy of the entry with the given id.
func (l *Lobby) Player(playerID string) (PlayerEntry, bool) {
	idx := l.PlayerIndex(playerID)
	if idx == -1 {
		return PlayerEntry{}, false
	}
	return l.Players[idx], true
}

// LastActivity is the timestamp used to order lobbies in listings:
// UpdatedAt, or CreatedAt for records that never carried an update time.
func (l *Lobby) LastActivity() time.Time {
	if !l.UpdatedAt.IsZero() {
		return l.UpdatedAt
	}
	return l.CreatedAt
}

// CloneLobbies deep-copies a collection. A nil input yields an empty, non-nil slice.
func CloneLobbies(lobbies []Lobby) []Lobby {
	out := make([]Lobby, len(lobbies))
	for i := range lobbies {
		out[i] = lobbies[i].Clone()
	}
	return out
}
