package store

import (
	"context"

	"github.com/vaultd/vaultd/pkg/models"
)

// CreateTransaction inserts a new upload transaction.
func (s *GORMStore) CreateTransaction(ctx context.Context, tx *models.UploadTransaction) error {
	return s.db.WithContext(ctx).Create(tx).Error
}

// GetTransaction looks up an upload transaction by id.
func (s *GORMStore) GetTransaction(ctx context.Context, id string) (*models.UploadTransaction, error) {
	return getByField[models.UploadTransaction](s.db, ctx, "id", id, models.ErrTransactionNotFound)
}

// IncrementChunk atomically bumps current_chunks by one and returns the
// updated row, rejecting the increment if every chunk has already arrived
// (§4.6 Chunked upload: a chunk index re-sent after completion is an error,
// not a no-op).
func (s *GORMStore) IncrementChunk(ctx context.Context, id string) (*models.UploadTransaction, error) {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE upload_transactions SET current_chunks = current_chunks + 1 WHERE id = ? AND current_chunks < total_chunks`,
		id,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetTransaction(ctx, id); err != nil {
			return nil, err
		}
		return nil, models.ErrChunkAlreadySent
	}
	return s.GetTransaction(ctx, id)
}

// DeleteTransaction removes an upload transaction, on completion, abandonment,
// or the Janitor's stale-transaction sweep (§4.9).
func (s *GORMStore) DeleteTransaction(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.UploadTransaction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrTransactionNotFound
	}
	return nil
}
