package models

// LobbySeed prefills a lobby when it is first created. Zero values mean
// "not supplied" and fall back to the system defaults.
type LobbySeed struct {
	// Code is only honored by explicit creation; ensure/join take the code as an argument.
	Code       string         `json:"code,omitempty"`
	HostID     string         `json:"hostId,omitempty"`
	HostName   string         `json:"hostName,omitempty"`
	Status     LobbyStatus    `json:"status,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	MaxPlayers int            `json:"maxPlayers,omitempty"`
	Settings   *LobbySettings `json:"settings,omitempty"`
}

// PlayerPatch carries the fields a join or re-join supplies for one player.
// Nil fields leave the existing entry untouched.
type PlayerPatch struct {
	ID       string  `json:"id,omitempty"`
	Name     *string `json:"name,omitempty"`
	Score    *int    `json:"score,omitempty"`
	Ready    *bool   `json:"ready,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// Apply merges the patch onto entry field by field.
func (p PlayerPatch) Apply(entry PlayerEntry) PlayerEntry {
	if p.ID != "" {
		entry.ID = p.ID
	}
	if p.Name != nil && *p.Name != "" {
		entry.Name = *p.Name
	}
	if p.Score != nil {
		entry.Score = max(0, *p.Score)
	}
	if p.Ready != nil {
		entry.Ready = *p.Ready
	}
	if p.IsActive != nil {
		entry.IsActive = *p.IsActive
	}
	return entry
}

// ProfilePatch updates the local player profile.
type ProfilePatch struct {
	Name *string `json:"name,omitempty"`
}

// Apply merges the patch onto profile. An empty name is ignored so a profile
// never loses its display name.
func (p ProfilePatch) Apply(profile PlayerProfile) PlayerProfile {
	if p.Name != nil && *p.Name != "" {
		profile.Name = *p.Name
	}
	return profile
}

// NewPlayerPatch is a convenience for the common {id, name} actor shape.
func NewPlayerPatch(id, name string) PlayerPatch {
	p := PlayerPatch{ID: id}
	if name != "" {
		p.Name = &name
	}
	return p
}
