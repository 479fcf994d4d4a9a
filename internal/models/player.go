package models

import (
	"encoding/json"
	"reflect"
	"time"
)

// PlayerEntry is one participant's state inside a lobby.
type PlayerEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Ready bool   `json:"ready"`

	// IsActive is the presence flag. Records written without it decode as active.
	IsActive bool `json:"isActive"`

	JoinedAt  time.Time `json:"joinedAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`

	Extra Extra `json:"-"`
}

type plainEntry PlayerEntry

var entryFields = jsonFields(reflect.TypeFor[plainEntry]())

func (p PlayerEntry) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainEntry(p))
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, p.Extra)
}

// UnmarshalJSON defaults IsActive to true when the field is absent and keeps
// unmodelled members in Extra.
func (p *PlayerEntry) UnmarshalJSON(data []byte) error {
	tmp := plainEntry{IsActive: true}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	extra, err := splitExtra(data, entryFields)
	if err != nil {
		return err
	}
	tmp.Extra = extra
	*p = PlayerEntry(tmp)
	if p.Score < 0 {
		p.Score = 0
	}
	return nil
}
