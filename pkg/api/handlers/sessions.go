package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vaultd/vaultd/pkg/api/middleware"
	"github.com/vaultd/vaultd/pkg/session"
)

// SessionHandler serves the §4.3 Session Layer's list/revoke endpoints.
type SessionHandler struct {
	sessions *session.Service
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions *session.Service) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// List handles GET /api/sessions (§4.3 List).
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	sessions, err := h.sessions.List(r.Context(), u.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, sessions)
}

// Revoke handles DELETE /api/session/{number} (§4.3 Revoke).
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		BadRequest(w, "invalid session number")
		return
	}
	if err := h.sessions.Revoke(r.Context(), u.ID, number); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}
