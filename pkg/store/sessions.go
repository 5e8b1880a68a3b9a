package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vaultd/vaultd/pkg/models"
)

// CreateSession inserts a new session row. Number is assigned as
// max(existing numbers for this user)+1, inside a transaction so concurrent
// logins from the same user never collide.
func (s *GORMStore) CreateSession(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxNumber int
		if err := tx.Model(&models.Session{}).
			Where("user_id = ?", session.UserID).
			Select("COALESCE(MAX(number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return err
		}
		session.Number = maxNumber + 1
		return tx.Create(session).Error
	})
}

// GetSession looks up a session by id, regardless of expiry — callers apply
// the sliding-idle check themselves (§4.3 Validate).
func (s *GORMStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return getByField[models.Session](s.db, ctx, "id", id, models.ErrSessionNotFound)
}

// TouchSession bumps last_used_at to now, extending the sliding idle window.
func (s *GORMStore) TouchSession(ctx context.Context, id string, now time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Update("last_used_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// ListSessions returns a user's sessions, most recently used first — the
// first element is the caller's own current session.
func (s *GORMStore) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	var sessions []*models.Session
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_used_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// RevokeSession deletes a session by its (user_id, number) public handle.
func (s *GORMStore) RevokeSession(ctx context.Context, userID string, number int) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND number = ?", userID, number).
		Delete(&models.Session{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// DeleteExpiredSessions removes every session whose sliding window has
// elapsed as of now, for the Janitor (§4.9 step 1). The expiry predicate is
// evaluated in Go rather than SQL so the same code runs unchanged against
// sqlite and postgres.
func (s *GORMStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	var sessions []models.Session
	if err := s.db.WithContext(ctx).Find(&sessions).Error; err != nil {
		return 0, err
	}

	var expired []string
	for _, sess := range sessions {
		if sess.Expired(now) {
			expired = append(expired, sess.ID)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Where("id IN ?", expired).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
