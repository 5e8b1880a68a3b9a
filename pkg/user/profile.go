package user

import (
	"context"
	"errors"

	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/password"
)

// ProfileUpdateInput is the request shape for UpdateProfile. Every field is
// optional and field-scoped (§4.8 Profile update): only the supplied ones
// are changed.
type ProfileUpdateInput struct {
	Username *string
	Email    *string

	// NewPassword, when set, must come with the client's re-wrapped private
	// key material — changing the password changes the key used to wrap it.
	NewPassword            *string
	NewEncryptedPrivateKey *string
	NewPrivateKeyIV        *string
	NewPrivateKeySalt      *string
}

// UpdateProfile implements §4.8 Profile update. A password change rehashes
// server-side and stores the new wrapped-private-key ciphertext in the same
// update, atomically.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdateInput) error {
	fields := map[string]any{}

	if in.Username != nil {
		if !models.ValidateUsername(*in.Username) {
			return models.ErrInvalidCredentials
		}
		if existing, err := s.store.GetUserByUsername(ctx, *in.Username); err == nil && existing.ID != userID {
			return models.ErrDuplicateUsername
		} else if err != nil && !errors.Is(err, models.ErrUserNotFound) {
			return err
		}
		fields["username"] = *in.Username
	}

	if in.Email != nil {
		if *in.Email != "" {
			if existing, err := s.store.GetUserByEmail(ctx, *in.Email); err == nil && existing.ID != userID {
				return models.ErrDuplicateEmail
			} else if err != nil && !errors.Is(err, models.ErrUserNotFound) {
				return err
			}
		}
		fields["email"] = in.Email
	}

	if in.NewPassword != nil {
		if err := password.Validate(*in.NewPassword); err != nil {
			return err
		}
		if in.NewEncryptedPrivateKey == nil || in.NewPrivateKeyIV == nil || in.NewPrivateKeySalt == nil {
			return models.ErrInvalidCredentials
		}
		hash, err := password.Hash(*in.NewPassword)
		if err != nil {
			return err
		}
		fields["password_hash"] = hash
		fields["encrypted_private_key"] = *in.NewEncryptedPrivateKey
		fields["private_key_iv"] = *in.NewPrivateKeyIV
		fields["private_key_salt"] = *in.NewPrivateKeySalt
	}

	if len(fields) == 0 {
		return nil
	}
	return s.store.UpdateProfile(ctx, userID, fields)
}
