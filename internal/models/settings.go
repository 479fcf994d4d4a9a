// internal/models/settings.go
package models

import (
	"encoding/json"
	"reflect"
)

// LobbySettings is the partial configuration bag stored on a lobby.
// A nil field means "use the system default"; see Resolved.
type LobbySettings struct {
	// Mode is the display label of the game mode, e.g. "Competitive Draft".
	Mode *string `json:"mode,omitempty"`

	// Rounds is how many rounds a match lasts.
	Rounds *int `json:"rounds,omitempty"`

	// RoundDuration is the per-round timer in seconds (0 => untimed).
	RoundDuration *int `json:"roundDuration,omitempty"`

	// WinCondition is a human readable description of how the match is decided.
	WinCondition *string `json:"winCondition,omitempty"`

	// Dictionary names the word list used to validate plays.
	Dictionary *string `json:"dictionary,omitempty"`

	// Channel is the label of the voice/text channel the lobby lives in.
	Channel *string `json:"channel,omitempty"`

	// MaxPlayers caps the number of seats.
	MaxPlayers *int `json:"maxPlayers,omitempty"`

	// RoundDurationSeconds is an older name for RoundDuration. It is kept as
	// written and only consulted when RoundDuration is absent.
	RoundDurationSeconds *int `json:"roundDurationSeconds,omitempty"`

	Extra Extra `json:"-"`
}

type plainSettings LobbySettings

var settingsFields = jsonFields(reflect.TypeFor[plainSettings]())

func (s LobbySettings) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainSettings(s))
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, s.Extra)
}

// UnmarshalJSON keeps members it does not model in Extra.
func (s *LobbySettings) UnmarshalJSON(data []byte) error {
	var p plainSettings
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, settingsFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	*s = LobbySettings(p)
	return nil
}

// DefaultLobbySettings returns the system-wide defaults with every field set.
func DefaultLobbySettings() LobbySettings {
	return LobbySettings{
		Mode:          ptr("Competitive Draft"),
		Rounds:        ptr(5),
		RoundDuration: ptr(30),
		WinCondition:  ptr("Highest score after 5 rounds"),
		Dictionary:    ptr("Tournament (NA)"),
		Channel:       ptr("#spellcast-practice"),
		MaxPlayers:    ptr(6),
	}
}

// Resolved returns s with every absent field filled from defaults.
func (s LobbySettings) Resolved(defaults LobbySettings) LobbySettings {
	out := s.Clone()
	if out.RoundDuration == nil && out.RoundDurationSeconds != nil {
		out.RoundDuration = ptr(*out.RoundDurationSeconds)
	}
	if out.Mode == nil && defaults.Mode != nil {
		out.Mode = ptr(*defaults.Mode)
	}
	if out.Rounds == nil && defaults.Rounds != nil {
		out.Rounds = ptr(*defaults.Rounds)
	}
	if out.RoundDuration == nil && defaults.RoundDuration != nil {
		out.RoundDuration = ptr(*defaults.RoundDuration)
	}
	if out.WinCondition == nil && defaults.WinCondition != nil {
		out.WinCondition = ptr(*defaults.WinCondition)
	}
	if out.Dictionary == nil && defaults.Dictionary != nil {
		out.Dictionary = ptr(*defaults.Dictionary)
	}
	if out.Channel == nil && defaults.Channel != nil {
		out.Channel = ptr(*defaults.Channel)
	}
	if out.MaxPlayers == nil && defaults.MaxPlayers != nil {
		out.MaxPlayers = ptr(*defaults.MaxPlayers)
	}
	return out
}

// Clone copies every pointer so the result shares nothing with s.
func (s LobbySettings) Clone() LobbySettings {
	return LobbySettings{
		Mode:          clonePtr(s.Mode),
		Rounds:        clonePtr(s.Rounds),
		RoundDuration: clonePtr(s.RoundDuration),
		WinCondition:  clonePtr(s.WinCondition),
		Dictionary:    clonePtr(s.Dictionary),
		Channel:       clonePtr(s.Channel),
		MaxPlayers:    clonePtr(s.MaxPlayers),

		RoundDurationSeconds: clonePtr(s.RoundDurationSeconds),
		Extra:                s.Extra.Clone(),
	}
}

func ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
