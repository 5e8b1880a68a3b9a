package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vaultd/vaultd/pkg/api/middleware"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/share"
	"github.com/vaultd/vaultd/pkg/upload"
)

// UploadHandler serves the Upload Pipeline's single-shot and chunked
// ingestion endpoints (§4.6).
type UploadHandler struct {
	uploads *upload.Service
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(uploads *upload.Service) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// MetadataRequest is the wire shape of upload.Metadata (§3 invariants).
type MetadataRequest struct {
	ParentID *string `json:"parent_id,omitempty"`

	EncryptedName string `json:"encrypted_name"`
	NameNonce     string `json:"name_nonce"`

	EncryptedMime *string `json:"encrypted_mime,omitempty"`
	MimeNonce     *string `json:"mime_nonce,omitempty"`

	EncryptedKey string  `json:"encrypted_key"`
	KeyNonce     *string `json:"key_nonce,omitempty"`

	FileNonce *string `json:"file_nonce,omitempty"`
}

func (m MetadataRequest) toMetadata() upload.Metadata {
	return upload.Metadata{
		ParentID:      m.ParentID,
		EncryptedName: m.EncryptedName,
		NameNonce:     m.NameNonce,
		EncryptedMime: m.EncryptedMime,
		MimeNonce:     m.MimeNonce,
		EncryptedKey:  m.EncryptedKey,
		KeyNonce:      m.KeyNonce,
		FileNonce:     m.FileNonce,
	}
}

// UploadResult is the body returned by Upload and Finalize: the new file
// row, plus the auto-created anonymous-root link when one was issued
// (§4.6 Single-shot step 3d, Finalize).
type UploadResult struct {
	File *models.File      `json:"file"`
	Link *models.ShareLink `json:"link,omitempty"`
}

func optionalQuery(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func callerIDFromContext(r *http.Request) *string {
	if u := middleware.GetUserFromContext(r.Context()); u != nil {
		return &u.ID
	}
	return nil
}

// Upload handles POST /api/upload?linkId=…: a multipart body with a
// "metadata" JSON part followed by a "file" bytes part (§6, §4.6
// Single-shot).
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	linkID := optionalQuery(r, "linkId")

	mr, err := r.MultipartReader()
	if err != nil {
		BadRequest(w, "expected multipart body")
		return
	}

	metaPart, err := mr.NextPart()
	if err != nil || metaPart.FormName() != "metadata" {
		BadRequest(w, "expected metadata part first")
		return
	}
	var meta MetadataRequest
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		BadRequest(w, "invalid metadata")
		return
	}

	filePart, err := mr.NextPart()
	if err != nil || filePart.FormName() != "file" {
		BadRequest(w, "expected file part second")
		return
	}

	file, link, err := h.uploads.Upload(r.Context(), upload.SingleShotInput{
		CallerID: callerIDFromContext(r),
		Link:     share.Credentials(r, linkID),
		Meta:     meta.toMetadata(),
		Body:     filePart,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONCreated(w, UploadResult{File: file, Link: link})
}

// StartChunkedRequest is the body of POST /api/upload/chunked.
type StartChunkedRequest struct {
	MetadataRequest
	ChunkSize    int64 `json:"chunk_size"`
	TotalChunks  int   `json:"total_chunks"`
	ExpectedSize int64 `json:"expected_size"`
}

// StartChunked handles POST /api/upload/chunked?linkId=… (§4.6 Chunked
// Start).
func (h *UploadHandler) StartChunked(w http.ResponseWriter, r *http.Request) {
	linkID := optionalQuery(r, "linkId")
	var req StartChunkedRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	txn, err := h.uploads.StartChunked(r.Context(), upload.StartChunkedInput{
		CallerID:     callerIDFromContext(r),
		Link:         share.Credentials(r, linkID),
		Meta:         req.MetadataRequest.toMetadata(),
		ChunkSize:    req.ChunkSize,
		TotalChunks:  req.TotalChunks,
		ExpectedSize: req.ExpectedSize,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONCreated(w, txn)
}

// UploadChunk handles POST /api/upload/{tx}/chunk/{i}?linkId=&autoFinalize=
// (§4.6 Chunk upload): the request body is the raw chunk bytes.
func (h *UploadHandler) UploadChunk(w http.ResponseWriter, r *http.Request) {
	linkID := optionalQuery(r, "linkId")
	txID := chi.URLParam(r, "tx")
	index, err := strconv.Atoi(chi.URLParam(r, "i"))
	if err != nil {
		BadRequest(w, "invalid chunk index")
		return
	}
	autoFinalize := r.URL.Query().Get("autoFinalize") == "true"

	txn, err := h.uploads.UploadChunk(r.Context(), upload.UploadChunkInput{
		CallerID:      callerIDFromContext(r),
		Link:          share.Credentials(r, linkID),
		TransactionID: txID,
		Index:         index,
		Body:          r.Body,
		AutoFinalize:  autoFinalize,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, txn)
}

// Finalize handles POST /api/upload/finalize/{tx}?linkId=… (§4.6 Finalize).
func (h *UploadHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	linkID := optionalQuery(r, "linkId")
	txID := chi.URLParam(r, "tx")

	file, link, err := h.uploads.Finalize(r.Context(), callerIDFromContext(r), share.Credentials(r, linkID), txID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, UploadResult{File: file, Link: link})
}
