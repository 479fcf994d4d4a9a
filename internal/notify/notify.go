// Package notify carries payload-light "a lobby changed" announcements between
// execution contexts that share the same storage.
package notify

import (
	"context"
	"encoding/json"
)

const (
	// DefaultChannel is the broadcast channel name shared by every context.
	DefaultChannel = "wordhex:lobby-sync"

	// TypeLobbyUpdated is the only message type receivers act on.
	TypeLobbyUpdated = "lobby-updated"
)

// Message is the wire shape: {"type":"lobby-updated","payload":"<code>"}.
// Origin identifies the sending endpoint so it never hears itself.
type Message struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

// LobbyUpdated builds the announcement for one lobby code.
func LobbyUpdated(code string) Message {
	return Message{Type: TypeLobbyUpdated, Payload: code}
}

// Notifier publishes and receives announcements.
type Notifier interface {
	// Publish announces msg to every other endpoint.
	Publish(ctx context.Context, msg Message) error
	// Listen calls fn (from a background goroutine) for every recognized
	// message from another endpoint until stop is called.
	Listen(ctx context.Context, fn func(Message)) (stop func(), err error)
	Close() error
}

// Decode parses a raw frame. ok is false for undecodable frames and for any
// type other than TypeLobbyUpdated.
func Decode(data []byte) (Message, bool) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, false
	}
	if msg.Type != TypeLobbyUpdated {
		return Message{}, false
	}
	return msg, true
}
