// internal/handlers/session.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/auth"
	"github.com/jason-s-yu/rummy/internal/models"
)

// handleGuestSession issues a token for a new ephemeral identity and sets it as the auth cookie.
func (s *Server) handleGuestSession(w http.ResponseWriter, r *http.Request) {
	payload, err := readPayload(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	var p joinPayload
	if err := decodePayload(payload, &p); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	user := models.User{ID: id, Username: strings.TrimSpace(p.DisplayName)}
	if user.Username == "" {
		user.Username = "guest-" + id.String()[len(id.String())-6:]
	}

	token, err := auth.CreateJWT(user)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": user, "token": token})
}
