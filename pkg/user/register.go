// Package user implements the User Engine (§4.8): registration, login,
// TOTP second-factor management, profile updates, and directory search.
package user

import (
	"context"
	"errors"

	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/password"
	"github.com/vaultd/vaultd/pkg/session"
	"github.com/vaultd/vaultd/pkg/store"
)

// Service implements the User Engine.
type Service struct {
	store    store.Store
	sessions *session.Service
	blobs    blobstore.Store
}

// New creates a User Engine service.
func New(st store.Store, sessions *session.Service, blobs blobstore.Store) *Service {
	return &Service{store: st, sessions: sessions, blobs: blobs}
}

// RegisterInput is the request shape for Register.
type RegisterInput struct {
	Username string
	Password string
	Email    *string

	PublicKey           string
	PrivateKeyIV        string
	PrivateKeySalt      string
	EncryptedPrivateKey string

	TotalSpace int64
}

// Register implements §4.8 Register: validates the username, password, and
// key-material shapes, confirms case-insensitive uniqueness, hashes the
// password, and inserts the user row.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if !models.ValidateUsername(in.Username) {
		return nil, models.ErrInvalidCredentials
	}
	if err := password.Validate(in.Password); err != nil {
		return nil, err
	}
	if !models.ValidateKeyMaterial(in.PublicKey, in.PrivateKeyIV, in.PrivateKeySalt, in.EncryptedPrivateKey) {
		return nil, models.ErrInvalidCredentials
	}

	if _, err := s.store.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, models.ErrDuplicateUsername
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}
	if in.Email != nil {
		if _, err := s.store.GetUserByEmail(ctx, *in.Email); err == nil {
			return nil, models.ErrDuplicateEmail
		} else if !errors.Is(err, models.ErrUserNotFound) {
			return nil, err
		}
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:            in.Username,
		Email:               in.Email,
		PasswordHash:        hash,
		PublicKey:           in.PublicKey,
		PrivateKeyIV:        in.PrivateKeyIV,
		PrivateKeySalt:      in.PrivateKeySalt,
		EncryptedPrivateKey: in.EncryptedPrivateKey,
		TotalSpace:          in.TotalSpace,
	}
	id, err := s.store.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return user, nil
}
