// internal/handlers/profile.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/wordhex/internal/models"
)

// GetProfile returns the local player profile of this context, creating it on first use.
func (a *API) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.app.Profiles.Ensure(r.Context()))
}

// UpdateProfile merges {name} onto the local player profile.
func (a *API) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if err := decodeBody(r, &patch); err != nil {
		http.Error(w, "bad profile payload", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, a.app.Profiles.Update(r.Context(), patch))
}
