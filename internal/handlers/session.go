// internal/handlers/session.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/wordhex/internal/auth"
	"github.com/jason-s-yu/wordhex/internal/util"
)

type sessionRequest struct {
	Name string `json:"name"`
}

type sessionResponse struct {
	Token string `json:"token"`
	ID    string `json:"id"`
	Name  string `json:"name"`
}

// CreateSession mints a fresh actor and returns a signed token for it. The
// token is also set as the auth_token cookie.
func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "bad session request payload", http.StatusBadRequest)
		return
	}
	actor := auth.Actor{ID: util.NewID(), Name: req.Name}
	if actor.Name == "" {
		actor.Name = "Player " + util.LobbyCode()
	}

	token, err := a.app.Issuer.CreateJWT(actor)
	if err != nil {
		a.logger.Errorf("failed to sign session token: %v", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, ID: actor.ID, Name: actor.Name})
}
