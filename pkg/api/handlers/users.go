package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vaultd/vaultd/pkg/api/middleware"
	"github.com/vaultd/vaultd/pkg/store"
	"github.com/vaultd/vaultd/pkg/user"
)

// UserHandler serves the directory-lookup and avatar-upload endpoints.
type UserHandler struct {
	users *user.Service
	store store.Store
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *user.Service, st store.Store) *UserHandler {
	return &UserHandler{users: users, store: st}
}

// Search handles GET /api/users/search/{query}?sort&limit&offset (§4.8 Search).
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	sortMode := user.SortMode(r.URL.Query().Get("sort"))
	if sortMode == "" {
		sortMode = user.SortBestMatch
	}
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	results, err := h.users.Search(r.Context(), query, sortMode, limit, offset)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, results)
}

// Get handles GET /api/user/{id}: the public profile of another user, used
// to resolve a sharee before issuing a share (§4.8 Get).
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, u.ToPublic())
}

// UploadAvatar handles PUT /api/profile/upload (C.1). The declared
// extension travels as a query parameter since the body is the raw,
// already-processed image bytes, not a multipart form.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	ext := r.URL.Query().Get("ext")
	if err := h.users.UploadAvatar(r.Context(), u.ID, ext, r.Body); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

// queryInt parses a query parameter as an int, falling back to def on any
// parse failure or absence.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
