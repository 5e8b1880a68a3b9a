package upload

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/vaultd/vaultd/pkg/authz"
	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/store"
)

// StartChunkedInput is the request shape for StartChunked.
type StartChunkedInput struct {
	CallerID     *string
	Link         authz.LinkCredentials
	Meta         Metadata
	ChunkSize    int64
	TotalChunks  int
	ExpectedSize int64
}

// StartChunked implements the chunked-upload Start step (§4.6 Chunked):
// validates the declared chunk geometry, admits it against quota exactly
// like a single-shot upload of the same expected size, and creates the
// transaction row. The caller creates the transaction's chunk staging
// directory lazily — CreateExclusive on the first chunk establishes it.
func (s *Service) StartChunked(ctx context.Context, in StartChunkedInput) (*models.UploadTransaction, error) {
	if in.Meta.FileNonce != nil {
		return nil, models.ErrInvalidParent
	}
	if !in.Meta.validate() {
		return nil, models.ErrInvalidParent
	}
	if in.ChunkSize < models.MinChunkSize {
		return nil, models.ErrChunkSizeMismatch
	}
	if in.ExpectedSize > models.MaxFileSize {
		return nil, models.ErrChunkSizeMismatch
	}
	if in.TotalChunks < 1 {
		return nil, models.ErrChunkOutOfRange
	}

	txn := &models.UploadTransaction{
		ID:            uuid.New().String(),
		ParentID:      in.Meta.ParentID,
		UploaderID:    in.CallerID,
		EncryptedName: in.Meta.EncryptedName,
		NameNonce:     in.Meta.NameNonce,
		EncryptedMime: in.Meta.EncryptedMime,
		MimeNonce:     in.Meta.MimeNonce,
		EncryptedKey:  in.Meta.EncryptedKey,
		KeyNonce:      in.Meta.KeyNonce,
		ChunkSize:     in.ChunkSize,
		TotalChunks:   in.TotalChunks,
		ExpectedSize:  in.ExpectedSize,
	}
	if !txn.ValidateSizeEquation() {
		return nil, models.ErrChunkSizeMismatch
	}

	parent, err := s.resolveParentTx(ctx, s.store, in.CallerID, in.Link, in.Meta.ParentID)
	if err != nil {
		return nil, err
	}
	ownerID := in.CallerID
	if parent != nil {
		ownerID = parent.OwnerID
	}
	txn.OwnerID = ownerID

	if err := admitQuota(ctx, s.store, ownerID, in.Meta.rowOverhead(), in.ExpectedSize); err != nil {
		return nil, err
	}

	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// UploadChunkInput is the request shape for UploadChunk.
type UploadChunkInput struct {
	CallerID      *string
	Link          authz.LinkCredentials
	TransactionID string
	Index         int
	Body          io.Reader

	// AutoFinalize, when set, calls Finalize once this was the last chunk.
	// Any finalize error is swallowed — the chunk itself is still accepted
	// (§4.6 Chunk upload).
	AutoFinalize bool
}

// UploadChunk implements the Chunk upload step (§4.6): re-checks
// permission, validates the index and declared size, writes the chunk
// exclusively (rejecting a re-upload of the same index), and atomically
// bumps current_chunks.
func (s *Service) UploadChunk(ctx context.Context, in UploadChunkInput) (*models.UploadTransaction, error) {
	txn, err := s.store.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return nil, err
	}

	if txn.ParentID != nil {
		grant, err := authz.Resolve(ctx, s.store, in.CallerID, in.Link, *txn.ParentID)
		if err != nil {
			return nil, err
		}
		if !grant.CanMutateDescendant() {
			return nil, models.ErrFileNotFound
		}
	}

	if in.Index < 0 || in.Index >= txn.TotalChunks {
		return nil, models.ErrChunkOutOfRange
	}

	wantSize := txn.ChunkSize
	if in.Index == txn.TotalChunks-1 {
		wantSize = txn.LastChunkSize()
	}

	cr := &countingReader{r: in.Body}
	path := blobstore.ChunkPath(txn.ID, in.Index)
	if err := s.blobs.CreateExclusive(ctx, path, cr); err != nil {
		return nil, err
	}
	if cr.n != wantSize {
		_ = s.blobs.Remove(ctx, path)
		return nil, models.ErrChunkSizeMismatch
	}

	updated, err := s.store.IncrementChunk(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	if in.AutoFinalize && updated.Ready() {
		_, _, _ = s.Finalize(ctx, in.CallerID, in.Link, txn.ID)
	}
	return updated, nil
}

// Finalize implements the Finalize step (§4.6): requires every chunk has
// arrived, re-checks permission, atomically replaces the transaction row
// with a new file row inside a retried transaction, then — outside the
// transaction — assembles the ordered chunks into the file's blob. Any
// error after the file row commits rolls back the output blob; on success
// the chunk staging directory is removed.
func (s *Service) Finalize(ctx context.Context, callerID *string, link authz.LinkCredentials, transactionID string) (*models.File, *models.ShareLink, error) {
	txn, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	if !txn.Ready() {
		return nil, nil, models.ErrTransactionNotReady
	}

	if txn.ParentID != nil {
		grant, err := authz.Resolve(ctx, s.store, callerID, link, *txn.ParentID)
		if err != nil {
			return nil, nil, err
		}
		if !grant.CanMutateDescendant() {
			return nil, nil, models.ErrFileNotFound
		}
	}

	id := uuid.Must(uuid.NewV7()).String()

	var file *models.File
	var shareLink *models.ShareLink

	commit := func() error {
		return s.store.WithinTransaction(ctx, func(tx store.Store) error {
			current, err := tx.GetTransaction(ctx, transactionID)
			if err != nil {
				return err
			}
			if !current.Ready() {
				return models.ErrTransactionNotReady
			}

			file = &models.File{
				ID:            id,
				ParentID:      current.ParentID,
				OwnerID:       current.OwnerID,
				UploaderID:    current.UploaderID,
				IsDirectory:   false,
				Size:          current.ExpectedSize,
				EncryptedName: current.EncryptedName,
				NameNonce:     current.NameNonce,
				EncryptedMime: current.EncryptedMime,
				MimeNonce:     current.MimeNonce,
				EncryptedKey:  current.EncryptedKey,
				KeyNonce:      current.KeyNonce,
			}
			if err := tx.CreateFile(ctx, file); err != nil {
				return err
			}
			if err := tx.DeleteTransaction(ctx, transactionID); err != nil {
				return err
			}

			if current.OwnerID == nil && current.ParentID == nil {
				shareLink = &models.ShareLink{
					ID:        uuid.New().String(),
					FileID:    id,
					ExpiresAt: expiryPtr(time.Now().Add(anonymousLinkDuration)),
				}
				if err := tx.CreateShareLink(ctx, shareLink); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := retryTransaction(commit, store.IsBusyError); err != nil {
		return nil, nil, err
	}

	parts := make([]string, txn.TotalChunks)
	for i := 0; i < txn.TotalChunks; i++ {
		parts[i] = blobstore.ChunkPath(transactionID, i)
	}
	outPath := blobstore.UploadPath(id)
	if err := s.blobs.Concat(ctx, parts, outPath); err != nil {
		_ = s.blobs.Remove(ctx, outPath)
		return nil, nil, err
	}

	_ = s.blobs.RemoveDir(ctx, blobstore.TransactionDir(transactionID))
	return file, shareLink, nil
}
