package util

import (
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
)

// LobbyCode returns a uniformly random 4-digit decimal code in [1000, 9999].
func LobbyCode() string {
	return strconv.Itoa(1000 + rand.IntN(9000))
}

// NewID returns a random identifier for players and profiles.
func NewID() string {
	return uuid.NewString()
}
