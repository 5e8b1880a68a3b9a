package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultd/vaultd/pkg/api/middleware"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/share"
	"github.com/vaultd/vaultd/pkg/store"
	"github.com/vaultd/vaultd/pkg/tree"
)

// ShareHandler serves the Share Engine's owner-management endpoints
// (create/update/revoke) and the consume-side views anonymous and shared
// viewers use to read a subtree (§4.7).
type ShareHandler struct {
	shares *share.Service
	store  store.Store
}

// NewShareHandler creates a ShareHandler.
func NewShareHandler(shares *share.Service, st store.Store) *ShareHandler {
	return &ShareHandler{shares: shares, store: st}
}

// shareType discriminates the polymorphic /api/share body (§6).
type shareType string

const (
	shareTypeUser shareType = "user"
	shareTypeLink shareType = "link"
)

// ShareRequest is the body of POST/PUT/DELETE /api/share. Not every field
// applies to every Type; unused fields are ignored.
type ShareRequest struct {
	Type shareType `json:"type"`

	// FileID identifies the shared file: required to create a user share or
	// a link, and to revoke a user share.
	FileID string `json:"file_id,omitempty"`

	// LinkID identifies an existing link: required to update or revoke one.
	LinkID string `json:"link_id,omitempty"`

	// ShareeID and EncryptedKey apply to Type user.
	ShareeID     *string `json:"sharee_id,omitempty"`
	EncryptedKey *string `json:"encrypted_key,omitempty"`

	Edit bool `json:"edit"`

	// ExpirySeconds and Password apply to Type link. A nil Password leaves
	// an existing link's password unchanged on update; a pointer to "" clears
	// it (§4.7 Update).
	ExpirySeconds *int64  `json:"expiry_seconds,omitempty"`
	Password      *string `json:"password,omitempty"`

	// EditPermission, when set, updates a link's edit flag (PUT only). Edit
	// above is used for Create, where the zero value is meaningful.
	EditPermission *bool `json:"edit_permission,omitempty"`
}

// Create handles POST /api/share (§4.7 Create user share / Create link).
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	var req ShareRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	switch req.Type {
	case shareTypeUser:
		if req.ShareeID == nil || req.EncryptedKey == nil {
			BadRequest(w, "sharee_id and encrypted_key are required")
			return
		}
		if err := h.shares.ShareWithUser(r.Context(), u.ID, req.FileID, *req.ShareeID, *req.EncryptedKey, req.Edit); err != nil {
			WriteError(w, err)
			return
		}
		WriteNoContent(w)

	case shareTypeLink:
		var expiry int64
		if req.ExpirySeconds != nil {
			expiry = *req.ExpirySeconds
		}
		link, err := h.shares.CreateLink(r.Context(), u.ID, req.FileID, share.CreateLinkInput{
			ExpirySeconds:  expiry,
			Password:       req.Password,
			EditPermission: req.Edit,
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSONCreated(w, link.ToResponse())

	default:
		BadRequest(w, "unknown share type")
	}
}

// Update handles PUT /api/share (§4.7 Update). Only link shares carry
// mutable fields beyond their key material; updating a user share is
// indistinguishable from re-creating it, so it shares Create's path.
func (h *ShareHandler) Update(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	var req ShareRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	switch req.Type {
	case shareTypeUser:
		if req.ShareeID == nil || req.EncryptedKey == nil {
			BadRequest(w, "sharee_id and encrypted_key are required")
			return
		}
		if err := h.shares.ShareWithUser(r.Context(), u.ID, req.FileID, *req.ShareeID, *req.EncryptedKey, req.Edit); err != nil {
			WriteError(w, err)
			return
		}
		WriteNoContent(w)

	case shareTypeLink:
		err := h.shares.UpdateLink(r.Context(), u.ID, req.LinkID, share.UpdateLinkInput{
			ExpirySeconds:  req.ExpirySeconds,
			Password:       req.Password,
			EditPermission: req.EditPermission,
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteNoContent(w)

	default:
		BadRequest(w, "unknown share type")
	}
}

// Revoke handles DELETE /api/share (§4.7 Revoke).
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	var req ShareRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	switch req.Type {
	case shareTypeUser:
		if req.ShareeID == nil {
			BadRequest(w, "sharee_id is required")
			return
		}
		if err := h.shares.RevokeShareUser(r.Context(), u.ID, req.FileID, *req.ShareeID); err != nil {
			WriteError(w, err)
			return
		}
		WriteNoContent(w)

	case shareTypeLink:
		if err := h.shares.RevokeLink(r.Context(), u.ID, req.LinkID); err != nil {
			WriteError(w, err)
			return
		}
		WriteNoContent(w)

	default:
		BadRequest(w, "unknown share type")
	}
}

// consumeParams reads the query parameters common to both consume endpoints.
type consumeParams struct {
	fileID           string
	depth            int
	limit            int
	offset           int
	includeAncestors bool
}

func parseConsumeParams(r *http.Request) consumeParams {
	q := r.URL.Query()
	return consumeParams{
		fileID:           q.Get("id"),
		depth:            queryInt(r, "depth", tree.MaxDepth),
		limit:            queryInt(r, "limit", 0),
		offset:           queryInt(r, "offset", 0),
		includeAncestors: q.Get("includeAncestors") == "true",
	}
}

// Shared handles GET /api/shared?id&depth&offset&limit&includeAncestors:
// the subtree of a file shared with the caller directly or via an ancestor
// share (§4.7 Consume).
func (h *ShareHandler) Shared(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	p := parseConsumeParams(r)

	callerID := u.ID
	grant, err := h.shares.Consume(r.Context(), w, share.ConsumeInput{
		CallerID: &callerID,
		FileID:   p.fileID,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	if !grant.CanRead() {
		WriteError(w, models.ErrFileNotFound)
		return
	}

	nodes, err := tree.Subtree(r.Context(), h.store, p.fileID, p.depth, p.limit, p.offset)
	if err != nil {
		WriteError(w, err)
		return
	}
	var ancestors []*models.File
	if p.includeAncestors {
		ancestors, err = tree.Ancestors(r.Context(), h.store, p.fileID, grant)
		if err != nil {
			WriteError(w, err)
			return
		}
	}
	WriteJSONOK(w, buildTreeResponse(nodes, ancestors))
}

// SharedLinkRequest is the optional body of POST /api/shared/{link}: a
// password the caller is supplying for the first time against this link.
type SharedLinkRequest struct {
	Password *string `json:"password,omitempty"`
}

// ConsumeLink handles POST /api/shared/{link}?id&depth&…: the subtree of a
// file reachable through a share link, anonymously or while authenticated
// (§4.7 Consume). The caller need not be logged in.
func (h *ShareHandler) ConsumeLink(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "link")
	p := parseConsumeParams(r)

	var req SharedLinkRequest
	if r.ContentLength > 0 {
		if !decodeJSONBody(w, r, &req) {
			return
		}
	}
	password := req.Password
	if password == nil {
		password = share.ReadLinkCookie(r, linkID)
	}

	var callerID *string
	if u := middleware.GetUserFromContext(r.Context()); u != nil {
		callerID = &u.ID
	}

	grant, err := h.shares.Consume(r.Context(), w, share.ConsumeInput{
		CallerID: callerID,
		LinkID:   &linkID,
		FileID:   p.fileID,
		Password: password,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	nodes, err := tree.Subtree(r.Context(), h.store, p.fileID, p.depth, p.limit, p.offset)
	if err != nil {
		WriteError(w, err)
		return
	}
	var ancestors []*models.File
	if p.includeAncestors {
		ancestors, err = tree.Ancestors(r.Context(), h.store, p.fileID, grant)
		if err != nil {
			WriteError(w, err)
			return
		}
	}
	WriteJSONOK(w, buildTreeResponse(nodes, ancestors))
}

// Links handles GET /api/shared/{file}/links (§4.7 List links for file).
func (h *ShareHandler) Links(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	fileID := chi.URLParam(r, "file")

	links, _, _, err := h.shares.ListForFile(r.Context(), u.ID, fileID)
	if err != nil {
		WriteError(w, err)
		return
	}
	responses := make([]models.ShareResponse, len(links))
	for i, l := range links {
		responses[i] = l.ToResponse()
	}
	WriteJSONOK(w, responses)
}

// SharedUsersResponse is the body of GET /api/shared/{file}/users: the raw
// share edges plus a companion map of the recipients' public projections.
type SharedUsersResponse struct {
	Access []*models.ShareUser          `json:"access"`
	Users  map[string]models.PublicUser `json:"users"`
}

// Users handles GET /api/shared/{file}/users (§4.7 List users for file).
func (h *ShareHandler) Users(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	fileID := chi.URLParam(r, "file")

	_, users, publicUsers, err := h.shares.ListForFile(r.Context(), u.ID, fileID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, SharedUsersResponse{Access: users, Users: publicUsers})
}

// LinkInfo handles GET /api/shared/{link}: the public projection of a share
// link, used by the client to decide whether to prompt for a password
// before attempting ConsumeLink. Unauthenticated by design — the id alone
// carries no more than the link does.
func (h *ShareHandler) LinkInfo(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "link")
	link, err := h.store.GetShareLink(r.Context(), linkID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, link.ToResponse())
}
