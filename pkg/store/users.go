package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/vaultd/vaultd/pkg/models"
)

// GetUserByUsername looks up a user by case-insensitive username.
func (s *GORMStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&u).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &u, nil
}

// GetUserByEmail looks up a user by case-insensitive email.
func (s *GORMStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&u).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &u, nil
}

// GetUserByID looks up a user by primary key.
func (s *GORMStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", id, models.ErrUserNotFound)
}

// ListUsers returns every user, newest first.
func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SearchUsers returns every user for ranking by the User Engine's
// Levenshtein search. Pagination and ranking are applied in pkg/user, not
// here, since distance computation can't be expressed as SQL.
func (s *GORMStore) SearchUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser inserts a new user, generating an ID if none is set. Unique
// constraint violations on username/email are surfaced as
// ErrDuplicateUsername/ErrDuplicateEmail so the caller can report the right
// field.
func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (string, error) {
	id, err := createWithID(s.db, ctx, user, func(u *models.User, id string) { u.ID = id }, user.ID, models.ErrDuplicateUsername)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateUsername) {
			// Disambiguate username vs. email collisions for a precise 409.
			if _, lookupErr := s.GetUserByUsername(ctx, user.Username); lookupErr == nil {
				return "", models.ErrDuplicateUsername
			}
			return "", models.ErrDuplicateEmail
		}
		return "", err
	}
	return id, nil
}

// UpdateProfile applies a field-scoped profile update (§4.8): username,
// email, and/or the client's new wrapped-private-key ciphertext, atomically.
func (s *GORMStore) UpdateProfile(ctx context.Context, userID string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			if strings.Contains(result.Error.Error(), "email") {
				return models.ErrDuplicateEmail
			}
			return models.ErrDuplicateUsername
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// UpdateQuota atomically adjusts used_space by delta (positive for uploads,
// negative for deletes), rejecting the change if it would exceed
// total_space. Returns ErrQuotaExceeded without mutating the row on
// rejection.
func (s *GORMStore) UpdateQuota(ctx context.Context, userID string, delta int64) error {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE users SET used_space = used_space + ? WHERE id = ? AND used_space + ? <= total_space AND used_space + ? >= 0`,
		delta, userID, delta, delta,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish "user missing" from "quota exceeded".
		if _, err := s.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return models.ErrQuotaExceeded
	}
	return nil
}

// UpdateTOTP persists TOTP secret/enabled/verified state.
func (s *GORMStore) UpdateTOTP(ctx context.Context, userID string, secret *string, enabled, verified bool) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"totp_secret":   secret,
		"totp_enabled":  enabled,
		"totp_verified": verified,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// UpdateAvatar sets the stored avatar extension after a successful upload.
func (s *GORMStore) UpdateAvatar(ctx context.Context, userID, ext string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("avatar_extension", ext)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user together with their sessions and the direct
// shares made to them. Files they own, and the share edges on those files,
// are left to an explicit higher-level cleanup (account deletion is not
// exercised by any §6 endpoint, so this is a maintenance primitive only).
func (s *GORMStore) DeleteUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			return convertNotFoundError(err, models.ErrUserNotFound)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.ShareUser{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}

// ValidateCredentials looks up a user by username and checks their password
// hash via the caller-supplied verify function (kept out of the store so
// pkg/password stays the single place that knows the hashing scheme).
func (s *GORMStore) ValidateCredentials(ctx context.Context, username string, verify func(hash string) (bool, error)) (*models.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := verify(user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrInvalidCredentials
	}

	return user, nil
}
