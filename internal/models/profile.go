package models

import "time"

// PlayerProfile is the local actor's durable identity, independent of any lobby.
type PlayerProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Valid reports whether the profile carries both an id and a name.
func (p PlayerProfile) Valid() bool {
	return p.ID != "" && p.Name != ""
}
