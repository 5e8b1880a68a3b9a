package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultd/vaultd/pkg/api/middleware"
	"github.com/vaultd/vaultd/pkg/authz"
	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/share"
	"github.com/vaultd/vaultd/pkg/store"
	"github.com/vaultd/vaultd/pkg/tree"
	"github.com/vaultd/vaultd/pkg/upload"
)

// FileHandler serves the owner-scoped tree view plus the rename/move/delete
// and raw-data endpoints that share the Authorization Engine's grant check
// (§4.5, §4.6).
type FileHandler struct {
	uploads *upload.Service
	store   store.Store
	blobs   blobstore.Store
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(uploads *upload.Service, st store.Store, blobs blobstore.Store) *FileHandler {
	return &FileHandler{uploads: uploads, store: st, blobs: blobs}
}

// Get handles GET /api/file?id&depth&offset&limit&includeAncestors: the
// caller's own subtree, rooted at id or, when id is absent, at their
// virtual root (§4.5 Subtree view).
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	q := r.URL.Query()
	fileID := q.Get("id")
	depth := queryInt(r, "depth", tree.MaxDepth)
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)
	includeAncestors := q.Get("includeAncestors") == "true"

	if fileID == "" {
		nodes, err := tree.SubtreeVirtualRoot(r.Context(), h.store, u.ID, depth, limit, offset)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSONOK(w, buildTreeResponse(nodes, nil))
		return
	}

	grant, err := authz.Resolve(r.Context(), h.store, &u.ID, authz.LinkCredentials{}, fileID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if grant.Kind != authz.KindOwner {
		WriteError(w, models.ErrFileNotFound)
		return
	}

	nodes, err := tree.Subtree(r.Context(), h.store, fileID, depth, limit, offset)
	if err != nil {
		WriteError(w, err)
		return
	}
	var ancestors []*models.File
	if includeAncestors {
		ancestors, err = tree.Ancestors(r.Context(), h.store, fileID, grant)
		if err != nil {
			WriteError(w, err)
			return
		}
	}
	WriteJSONOK(w, buildTreeResponse(nodes, ancestors))
}

// fileUpdateType discriminates the polymorphic PUT /api/file/{id} body.
type fileUpdateType string

const (
	updateRename fileUpdateType = "rename"
	updateMove   fileUpdateType = "move"
)

// FileUpdateRequest is the body of PUT /api/file/{id}?linkId=… (§4.6 Update).
type FileUpdateRequest struct {
	Type fileUpdateType `json:"type"`

	// Rename fields.
	EncryptedName string `json:"encrypted_name,omitempty"`
	NameNonce     string `json:"name_nonce,omitempty"`

	// Move fields.
	NewParentID     *string `json:"new_parent_id,omitempty"`
	NewEncryptedKey string  `json:"new_encrypted_key,omitempty"`
	NewKeyNonce     *string `json:"new_key_nonce,omitempty"`
}

// Update handles PUT /api/file/{id}?linkId=…, dispatching on the body's
// declared type (§4.6 Rename, Move).
func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")
	linkID := optionalQuery(r, "linkId")
	callerID := callerIDFromContext(r)
	creds := share.Credentials(r, linkID)

	var req FileUpdateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	switch req.Type {
	case updateRename:
		if err := h.uploads.Rename(r.Context(), callerID, creds, fileID, req.EncryptedName, req.NameNonce); err != nil {
			WriteError(w, err)
			return
		}
	case updateMove:
		if err := h.uploads.Move(r.Context(), callerID, creds, fileID, req.NewParentID, req.NewEncryptedKey, req.NewKeyNonce); err != nil {
			WriteError(w, err)
			return
		}
	default:
		BadRequest(w, "unknown update type")
		return
	}
	WriteNoContent(w)
}

// Delete handles DELETE /api/file/{id}?linkId=… (§4.6 Delete).
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")
	linkID := optionalQuery(r, "linkId")

	if _, err := h.uploads.Delete(r.Context(), callerIDFromContext(r), share.Credentials(r, linkID), fileID); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

// Data handles GET /api/file/data/{id}?linkId=…: streams the file's raw
// ciphertext after re-checking authorization (§6: "middleware re-checks
// authorization before streaming").
func (h *FileHandler) Data(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")
	linkID := optionalQuery(r, "linkId")
	callerID := callerIDFromContext(r)

	grant, err := authz.Resolve(r.Context(), h.store, callerID, share.Credentials(r, linkID), fileID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !grant.CanRead() {
		WriteError(w, models.ErrFileNotFound)
		return
	}

	file, err := h.store.GetFile(r.Context(), fileID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if file.IsDirectory {
		BadRequest(w, "cannot stream a directory")
		return
	}

	body, err := h.blobs.Read(r.Context(), blobstore.UploadPath(fileID))
	if err != nil {
		WriteError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}
