// internal/handlers/lobby.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/wordhex/internal/auth"
	"github.com/jason-s-yu/wordhex/internal/lobby"
	"github.com/jason-s-yu/wordhex/internal/models"
)

type joinRequest struct {
	Name     *string           `json:"name,omitempty"`
	Ready    *bool             `json:"ready,omitempty"`
	IsActive *bool             `json:"isActive,omitempty"`
	Seed     *models.LobbySeed `json:"seed,omitempty"`
}

type readyRequest struct {
	PlayerID string `json:"playerId,omitempty"`
	Ready    *bool  `json:"ready,omitempty"`
}

type scoreRequest struct {
	PlayerID string `json:"playerId,omitempty"`
	Delta    int    `json:"delta"`
}

type nameRequest struct {
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name"`
}

type statusRequest struct {
	Status models.LobbyStatus `json:"status"`
}

// lobbyDefaults is what a client needs to pre-fill a create form.
type lobbyDefaults struct {
	Settings models.LobbySettings `json:"settings"`
	Code     string               `json:"code"`
}

// LobbyDefaults returns the settings applied to new lobbies and a suggested
// code. The code is not reserved; creating under a taken code resamples.
func (a *API) LobbyDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, lobbyDefaults{
		Settings: a.app.Lobbies.Defaults(),
		Code:     a.app.Lobbies.GenerateLobbyCode(),
	})
}

// ListLobbies returns every lobby, most recently active first.
func (a *API) ListLobbies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.app.Lobbies.ListLobbies(r.Context()))
}

// GetLobby returns one lobby or 404.
func (a *API) GetLobby(w http.ResponseWriter, r *http.Request) {
	l, ok := a.app.Lobbies.GetLobby(r.Context(), chi.URLParam(r, "code"))
	if !ok {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// CreateLobby creates a lobby hosted by the caller unless the seed names another host.
func (a *API) CreateLobby(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireActor(w, r)
	if !ok {
		return
	}
	var seed models.LobbySeed
	if err := decodeBody(r, &seed); err != nil {
		http.Error(w, "bad lobby request payload", http.StatusBadRequest)
		return
	}
	if seed.HostID == "" {
		seed.HostID = actor.ID
		if seed.HostName == "" {
			seed.HostName = actor.Name
		}
	}

	l, err := a.app.Lobbies.CreateLobby(r.Context(), seed)
	if errors.Is(err, lobby.ErrCodeSpaceExhausted) {
		http.Error(w, "no lobby codes left", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		a.logger.Errorf("failed to create lobby: %v", err)
		http.Error(w, "failed to create lobby", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// EnsureLobby gets or creates the lobby at {code}: 201 when created, 200 otherwise.
func (a *API) EnsureLobby(w http.ResponseWriter, r *http.Request) {
	var seed models.LobbySeed
	if err := decodeBody(r, &seed); err != nil {
		http.Error(w, "bad lobby request payload", http.StatusBadRequest)
		return
	}
	l, created := a.app.Lobbies.EnsureLobby(r.Context(), chi.URLParam(r, "code"), seed)
	if l == nil {
		http.Error(w, "missing lobby code", http.StatusBadRequest)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, l)
}

// JoinLobby adds the caller to {code}, creating the lobby if needed.
func (a *API) JoinLobby(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireActor(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "bad join payload", http.StatusBadRequest)
		return
	}

	patch := models.NewPlayerPatch(actor.ID, actor.Name)
	if req.Name != nil && *req.Name != "" {
		patch.Name = req.Name
	}
	patch.Ready = req.Ready
	patch.IsActive = req.IsActive
	var seed models.LobbySeed
	if req.Seed != nil {
		seed = *req.Seed
	}

	l, changed := a.app.Lobbies.JoinLobby(r.Context(), chi.URLParam(r, "code"), patch, seed)
	a.respond(w, l, changed)
}

// SetReady toggles the player's ready flag, or forces it when "ready" is given.
func (a *API) SetReady(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireActor(w, r)
	if !ok {
		return
	}
	var req readyRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "bad ready payload", http.StatusBadRequest)
		return
	}
	playerID := orActor(req.PlayerID, actor)
	code := chi.URLParam(r, "code")

	var l *models.Lobby
	var changed bool
	if req.Ready != nil {
		l, changed = a.app.Lobbies.SetPlayerReady(r.Context(), code, playerID, *req.Ready)
	} else {
		l, changed = a.app.Lobbies.TogglePlayerReady(r.Context(), code, playerID)
	}
	a.respond(w, l, changed)
}

// IncrementScore adds delta to a player's score, flooring at zero.
func (a *API) IncrementScore(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireActor(w, r)
	if !ok {
		return
	}
	var req scoreRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "bad score payload", http.StatusBadRequest)
		return
	}
	l, changed := a.app.Lobbies.IncrementPlayerScore(r.Context(), chi.URLParam(r, "code"), orActor(req.PlayerID, actor), req.Delta)
	a.respond(w, l, changed)
}

// RenamePlayer changes a player's display name.
func (a *API) RenamePlayer(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireActor(w, r)
	if !ok {
		return
	}
	var req nameRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "bad name payload", http.StatusBadRequest)
		return
	}
	l, changed := a.app.Lobbies.UpdatePlayerName(r.Context(), chi.URLParam(r, "code"), orActor(req.PlayerID, actor), req.Name)
	a.respond(w, l, changed)
}

// SetStatus moves the lobby to a new status.
func (a *API) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "bad status payload", http.StatusBadRequest)
		return
	}
	l, changed := a.app.Lobbies.SetLobbyStatus(r.Context(), chi.URLParam(r, "code"), req.Status)
	a.respond(w, l, changed)
}

// respond writes the updated lobby, or 204 when the mutation changed nothing.
func (a *API) respond(w http.ResponseWriter, l *models.Lobby, changed bool) {
	if !changed || l == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) requireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, err := a.actorFor(r)
	if err != nil {
		a.logger.WithField("path", r.URL.Path).Debugf("rejected token: %v", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return auth.Actor{}, false
	}
	return actor, true
}

func orActor(playerID string, actor auth.Actor) string {
	if playerID != "" {
		return playerID
	}
	return actor.ID
}
