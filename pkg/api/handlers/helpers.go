package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vaultd/vaultd/internal/logger"
	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/tree"
)

// decodeJSONBody decodes a JSON request body into v, writing a 400 problem
// response and returning false on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// writeJSONBody JSON-encodes v onto an already-started response (status line
// already written by the caller) — used for the 307 TOTP-required echo
// (§6), which isn't a normal status+payload response.
func writeJSONBody(w http.ResponseWriter, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// TreeResponse is the §4.5 Tree Engine view every subtree-returning endpoint
// shares: a flat, id-keyed file map plus the ids of its roots, optionally
// paired with the ancestor chain up to the caller's visibility boundary.
type TreeResponse struct {
	Files     map[string]*models.TreeNode `json:"files"`
	Roots     []string                    `json:"roots"`
	Ancestors []*models.File              `json:"ancestors,omitempty"`
}

// buildTreeResponse normalizes a flattened subtree listing into the shape
// clients consume.
func buildTreeResponse(nodes []tree.Node, ancestors []*models.File) TreeResponse {
	files, roots := tree.Normalize(nodes)
	return TreeResponse{Files: files, Roots: roots, Ancestors: ancestors}
}

// MapError translates a domain sentinel error into the §7 error-handling
// table's status and title. Errors that don't match any known sentinel are
// treated as StorageError/Generic: a 500 with a message that doesn't leak
// the underlying cause.
func MapError(err error) (status int, title string) {
	switch {
	case errors.Is(err, models.ErrFileNotFound),
		errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrShareNotFound),
		errors.Is(err, models.ErrTransactionNotFound),
		errors.Is(err, models.ErrChildException),
		errors.Is(err, blobstore.ErrNotFound):
		return http.StatusNotFound, "Not Found"

	case errors.Is(err, models.ErrQuotaExceeded):
		return http.StatusPaymentRequired, "Quota Exceeded"

	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrSessionExpired),
		errors.Is(err, models.ErrTOTPInvalid),
		errors.Is(err, models.ErrTOTPNotVerified),
		errors.Is(err, models.ErrLinkPasswordBad),
		errors.Is(err, models.ErrLinkPasswordReq):
		return http.StatusUnauthorized, "Unauthorized"

	case errors.Is(err, models.ErrDuplicateUsername),
		errors.Is(err, models.ErrDuplicateEmail),
		errors.Is(err, models.ErrChunkAlreadySent),
		errors.Is(err, blobstore.ErrAlreadyExists):
		return http.StatusConflict, "Conflict"

	case errors.Is(err, models.ErrInvalidParent),
		errors.Is(err, models.ErrNotADirectory),
		errors.Is(err, models.ErrCyclicMove),
		errors.Is(err, models.ErrOwnerMismatch),
		errors.Is(err, models.ErrInvalidSharee),
		errors.Is(err, models.ErrSelfShare),
		errors.Is(err, models.ErrEmptyLinkPassword),
		errors.Is(err, models.ErrChunkOutOfRange),
		errors.Is(err, models.ErrChunkSizeMismatch),
		errors.Is(err, models.ErrTransactionNotReady),
		errors.Is(err, models.ErrLinkExpired):
		return http.StatusBadRequest, "Bad Request"

	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// WriteError maps err via MapError and writes the corresponding RFC 7807
// problem response. 500s log the real cause and return a generic detail
// message (§7: "generic message; full cause logged"); every other status
// echoes err's message, which domain sentinels already phrase safely for
// display.
func WriteError(w http.ResponseWriter, err error) {
	status, title := MapError(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("api: unhandled error: %v", err)
		WriteProblem(w, status, title, "internal server error")
		return
	}
	WriteProblem(w, status, title, err.Error())
}
