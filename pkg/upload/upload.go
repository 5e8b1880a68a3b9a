// Package upload implements the Upload Pipeline (§4.6): quota-safe,
// transactional ingestion of single-shot and chunked file uploads, plus the
// rename/move/delete operations on existing files that share its
// permission and cascade-cleanup concerns.
package upload

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/vaultd/vaultd/pkg/authz"
	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/store"
)

// anonymousLinkDuration is the lifetime of the share link auto-created for
// an anonymous root upload (§4.6 Single-shot step 3d).
const anonymousLinkDuration = 24 * time.Hour

// Metadata carries the client-supplied, server-opaque encryption envelope
// for a file, plus the tree placement the caller is requesting.
type Metadata struct {
	ParentID *string

	EncryptedName string
	NameNonce     string

	EncryptedMime *string
	MimeNonce     *string

	EncryptedKey string
	KeyNonce     *string

	// FileNonce is required for single-shot uploads and must be absent for
	// chunked ones (§3: each chunk carries its own nonce prefix).
	FileNonce *string
}

// validate checks the §3 structural invariants shared by File and
// UploadTransaction rows.
func (m Metadata) validate() bool {
	return models.ValidateFileInvariants(m.ParentID, m.EncryptedKey, m.KeyNonce, m.EncryptedMime, m.MimeNonce, m.NameNonce)
}

func (m Metadata) rowOverhead() int64 {
	n := len(m.EncryptedName) + len(m.NameNonce) + len(m.EncryptedKey)
	if m.EncryptedMime != nil {
		n += len(*m.EncryptedMime)
	}
	if m.MimeNonce != nil {
		n += len(*m.MimeNonce)
	}
	if m.KeyNonce != nil {
		n += len(*m.KeyNonce)
	}
	if m.FileNonce != nil {
		n += len(*m.FileNonce)
	}
	return int64(n)
}

// Service implements the Upload Pipeline.
type Service struct {
	store store.Store
	blobs blobstore.Store
}

// New creates an upload Service.
func New(st store.Store, blobs blobstore.Store) *Service {
	return &Service{store: st, blobs: blobs}
}

// countingReader wraps r, tracking the number of bytes read from it so the
// pipeline can record the actual streamed size without buffering the body.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func admitQuota(ctx context.Context, st store.Store, ownerID *string, rowOverhead, fileSize int64) error {
	if ownerID == nil {
		return nil
	}
	owner, err := st.GetUserByID(ctx, *ownerID)
	if err != nil {
		return err
	}
	if owner.UsedSpace+rowOverhead+fileSize > owner.TotalSpace {
		return models.ErrQuotaExceeded
	}
	return nil
}

// SingleShotInput is the request shape for Upload.
type SingleShotInput struct {
	CallerID *string
	Link     authz.LinkCredentials
	Meta     Metadata
	Body     io.Reader
}

// Upload implements the single-shot upload flow (§4.6 Single-shot): stream
// the body to its blob first (so file_size is whatever was actually
// written), then admit it transactionally — resolving the parent, checking
// quota, and inserting the file row, retrying the transaction on a
// busy-snapshot conflict and rolling back the staged blob if the whole
// operation ultimately fails.
func (s *Service) Upload(ctx context.Context, in SingleShotInput) (*models.File, *models.ShareLink, error) {
	if in.Meta.FileNonce == nil || !models.ValidateNonce(*in.Meta.FileNonce) {
		return nil, nil, models.ErrInvalidParent
	}
	if !in.Meta.validate() {
		return nil, nil, models.ErrInvalidParent
	}

	id := uuid.Must(uuid.NewV7()).String()
	blobPath := blobstore.UploadPath(id)

	cr := &countingReader{r: in.Body}
	if err := s.blobs.WriteStream(ctx, blobPath, cr); err != nil {
		return nil, nil, err
	}

	var file *models.File
	var link *models.ShareLink

	commit := func() error {
		return s.store.WithinTransaction(ctx, func(tx store.Store) error {
			parent, err := s.resolveParentTx(ctx, tx, in.CallerID, in.Link, in.Meta.ParentID)
			if err != nil {
				return err
			}

			ownerID := in.CallerID
			if parent != nil {
				ownerID = parent.OwnerID
			}

			if err := admitQuota(ctx, tx, ownerID, in.Meta.rowOverhead(), cr.n); err != nil {
				return err
			}

			file = &models.File{
				ID:            id,
				ParentID:      in.Meta.ParentID,
				OwnerID:       ownerID,
				UploaderID:    in.CallerID,
				IsDirectory:   false,
				Size:          cr.n,
				EncryptedName: in.Meta.EncryptedName,
				NameNonce:     in.Meta.NameNonce,
				EncryptedMime: in.Meta.EncryptedMime,
				MimeNonce:     in.Meta.MimeNonce,
				EncryptedKey:  in.Meta.EncryptedKey,
				KeyNonce:      in.Meta.KeyNonce,
				FileNonce:     in.Meta.FileNonce,
			}
			if err := tx.CreateFile(ctx, file); err != nil {
				return err
			}

			if ownerID == nil && in.Meta.ParentID == nil {
				link = &models.ShareLink{
					ID:        uuid.New().String(),
					FileID:    id,
					ExpiresAt: expiryPtr(time.Now().Add(anonymousLinkDuration)),
				}
				if err := tx.CreateShareLink(ctx, link); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := retryTransaction(commit, store.IsBusyError); err != nil {
		_ = s.blobs.Remove(ctx, blobPath)
		return nil, nil, err
	}
	return file, link, nil
}

// resolveParentTx is resolveParent scoped to a transaction's Store view, so
// parent/owner resolution observes uncommitted writes from the same
// transaction (irrelevant here but kept symmetric with chunked finalize,
// which does need that).
func (s *Service) resolveParentTx(ctx context.Context, tx store.Store, callerID *string, link authz.LinkCredentials, parentID *string) (*models.File, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := tx.GetFile(ctx, *parentID)
	if err != nil {
		if errors.Is(err, models.ErrFileNotFound) {
			return nil, models.ErrInvalidParent
		}
		return nil, err
	}
	if !parent.IsDirectory {
		return nil, models.ErrNotADirectory
	}
	grant, err := authz.Resolve(ctx, tx, callerID, link, parent.ID)
	if err != nil {
		return nil, err
	}
	if !grant.CanMutateDescendant() {
		return nil, models.ErrFileNotFound
	}
	return parent, nil
}

func expiryPtr(t time.Time) *time.Time { return &t }

// Rename implements the rename variant of Update (§4.6 Update): sets
// encrypted_name and a fresh name_nonce. Requires CanMutateTarget — an
// edit-share rooted exactly on the target does not authorize renaming the
// target itself (§4.4 child exception).
func (s *Service) Rename(ctx context.Context, callerID *string, link authz.LinkCredentials, fileID, encryptedName, nameNonce string) error {
	if !models.ValidateNonce(nameNonce) {
		return models.ErrInvalidParent
	}
	grant, err := authz.Resolve(ctx, s.store, callerID, link, fileID)
	if err != nil {
		return err
	}
	if !grant.CanMutateTarget() {
		return models.ErrChildException
	}
	return s.store.UpdateFile(ctx, fileID, map[string]any{
		"encrypted_name": encryptedName,
		"name_nonce":     nameNonce,
	})
}

// Move implements the move variant of Update (§4.6 Update): reparents a
// file, rewrapping its key for the new parent (or owner's root key).
// Forbidden moves per §4.6: new parent not a directory, new parent's owner
// differs from the target's, or the new parent is the target itself or one
// of its descendants (a cycle).
func (s *Service) Move(ctx context.Context, callerID *string, link authz.LinkCredentials, fileID string, newParentID *string, newEncryptedKey string, newKeyNonce *string) error {
	if !models.ValidateEncryptedKeyLength(newEncryptedKey, newParentID != nil) {
		return models.ErrInvalidParent
	}
	if (newParentID != nil) != (newKeyNonce != nil) {
		return models.ErrInvalidParent
	}
	if newKeyNonce != nil && !models.ValidateNonce(*newKeyNonce) {
		return models.ErrInvalidParent
	}

	grant, err := authz.Resolve(ctx, s.store, callerID, link, fileID)
	if err != nil {
		return err
	}
	if !grant.CanMutateTarget() {
		return models.ErrChildException
	}

	target, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}

	var newParent *models.File
	if newParentID != nil {
		newParent, err = s.store.GetFile(ctx, *newParentID)
		if err != nil {
			if errors.Is(err, models.ErrFileNotFound) {
				return models.ErrInvalidParent
			}
			return err
		}
		if !newParent.IsDirectory {
			return models.ErrNotADirectory
		}
		if !samePointer(newParent.OwnerID, target.OwnerID) {
			return models.ErrOwnerMismatch
		}
		if err := s.checkNoCycle(ctx, fileID, *newParentID); err != nil {
			return err
		}
	}

	return s.store.UpdateFile(ctx, fileID, map[string]any{
		"parent_id":     newParentID,
		"encrypted_key": newEncryptedKey,
		"key_nonce":     newKeyNonce,
	})
}

// checkNoCycle rejects a move where newParentID is the target itself or one
// of its descendants: walking newParentID's ancestor chain back to the root
// and finding fileID anywhere in it means the move would detach the target
// from its own subtree.
func (s *Service) checkNoCycle(ctx context.Context, fileID, newParentID string) error {
	if fileID == newParentID {
		return models.ErrCyclicMove
	}
	chain, err := s.store.Ancestors(ctx, newParentID)
	if err != nil {
		return err
	}
	for _, a := range chain {
		if a.ID == fileID {
			return models.ErrCyclicMove
		}
	}
	return nil
}

func samePointer(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Delete implements Delete (§4.6): cascades through the store (which
// returns every deleted non-directory file for blob cleanup), then best-
// effort removes each one's blob, tolerating not-found and logging other
// errors without aborting the sweep.
func (s *Service) Delete(ctx context.Context, callerID *string, link authz.LinkCredentials, fileID string) ([]*models.File, error) {
	grant, err := authz.Resolve(ctx, s.store, callerID, link, fileID)
	if err != nil {
		return nil, err
	}
	if !grant.CanMutateTarget() {
		return nil, models.ErrChildException
	}

	deleted, err := s.store.DeleteFileCascade(ctx, fileID)
	if err != nil {
		return nil, err
	}

	var blobErrs []error
	for _, f := range deleted {
		if f.IsDirectory {
			continue
		}
		if err := s.blobs.Remove(ctx, blobstore.UploadPath(f.ID)); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			blobErrs = append(blobErrs, err)
		}
	}
	if len(blobErrs) > 0 {
		return deleted, errors.Join(blobErrs...)
	}
	return deleted, nil
}
