package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jason-s-yu/wordhex/internal/auth"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// requestToken finds an actor token in the Authorization header, the
// auth_token cookie, or the token query parameter (browsers cannot set headers
// on WebSocket upgrades), in that order.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if token := extractCookieToken(r.Header.Get("Cookie"), "auth_token"); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// actorFor resolves who is acting. Requests without a token act as the
// process's local player profile; a token that fails verification is an error.
func (a *API) actorFor(r *http.Request) (auth.Actor, error) {
	token := requestToken(r)
	if token == "" {
		return a.app.Actor(r.Context()), nil
	}
	return a.app.Issuer.AuthenticateJWT(token)
}

// decodeBody decodes an optional JSON body into v. An empty body is not an error.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
