package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/vaultd/vaultd/pkg/models"
)

// UpsertShareUser creates or updates a user-share edge (§4.7 Share with
// user): re-sharing with the same user replaces the wrapped key and
// permission rather than erroring.
func (s *GORMStore) UpsertShareUser(ctx context.Context, share *models.ShareUser) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "edit_permission"}),
	}).Create(share).Error
}

// GetShareUser looks up a single user-share edge.
func (s *GORMStore) GetShareUser(ctx context.Context, fileID, userID string) (*models.ShareUser, error) {
	var share models.ShareUser
	err := s.db.WithContext(ctx).Where("file_id = ? AND user_id = ?", fileID, userID).First(&share).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrShareNotFound)
	}
	return &share, nil
}

// ListShareUsersForFile returns every user a file is directly shared with.
func (s *GORMStore) ListShareUsersForFile(ctx context.Context, fileID string) ([]*models.ShareUser, error) {
	var shares []*models.ShareUser
	if err := s.db.WithContext(ctx).Where("file_id = ?", fileID).Find(&shares).Error; err != nil {
		return nil, err
	}
	return shares, nil
}

// ListSharesForUser returns every file directly shared with a user (§4.5
// Shared-with-me view).
func (s *GORMStore) ListSharesForUser(ctx context.Context, userID string) ([]*models.ShareUser, error) {
	var shares []*models.ShareUser
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&shares).Error; err != nil {
		return nil, err
	}
	return shares, nil
}

// RevokeShareUser removes a user-share edge.
func (s *GORMStore) RevokeShareUser(ctx context.Context, fileID, userID string) error {
	result := s.db.WithContext(ctx).Where("file_id = ? AND user_id = ?", fileID, userID).Delete(&models.ShareUser{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrShareNotFound
	}
	return nil
}

// CreateShareLink inserts a new share link.
func (s *GORMStore) CreateShareLink(ctx context.Context, link *models.ShareLink) error {
	return s.db.WithContext(ctx).Create(link).Error
}

// GetShareLink looks up a share link by id, regardless of expiry — callers
// apply the §4.7 expiry/password checks themselves.
func (s *GORMStore) GetShareLink(ctx context.Context, id string) (*models.ShareLink, error) {
	return getByField[models.ShareLink](s.db, ctx, "id", id, models.ErrShareNotFound)
}

// ListShareLinksForFile returns every link created for a file.
func (s *GORMStore) ListShareLinksForFile(ctx context.Context, fileID string) ([]*models.ShareLink, error) {
	var links []*models.ShareLink
	if err := s.db.WithContext(ctx).Where("file_id = ?", fileID).Order("created_at DESC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// UpdateShareLink applies a field-scoped update (extend expiry, change
// password, toggle edit permission).
func (s *GORMStore) UpdateShareLink(ctx context.Context, id string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.ShareLink{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrShareNotFound
	}
	return nil
}

// RevokeShareLink deletes a share link.
func (s *GORMStore) RevokeShareLink(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ShareLink{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrShareNotFound
	}
	return nil
}

// DeleteExpiredShareLinks removes every link whose expiry has passed as of
// now, for the Janitor (§4.9).
func (s *GORMStore) DeleteExpiredShareLinks(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at < ?", now).Delete(&models.ShareLink{})
	return result.RowsAffected, result.Error
}
