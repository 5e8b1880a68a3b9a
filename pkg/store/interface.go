// Package store implements the Metadata Store (§4.1): durable relational
// state for users, sessions, files, shares, and upload transactions, with
// the ancestor/descendant recursive queries and transactional scopes the
// rest of the system is built on. Two backends are supported, sqlite
// (default) and postgres, behind the same GORM-backed implementation.
package store

import (
	"context"
	"time"

	"github.com/vaultd/vaultd/pkg/models"
)

// UserStore covers account CRUD, credential verification, and quota
// bookkeeping.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	SearchUsers(ctx context.Context) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (string, error)
	UpdateProfile(ctx context.Context, userID string, fields map[string]any) error
	UpdateQuota(ctx context.Context, userID string, delta int64) error
	UpdateTOTP(ctx context.Context, userID string, secret *string, enabled, verified bool) error
	UpdateAvatar(ctx context.Context, userID, ext string) error
	DeleteUser(ctx context.Context, userID string) error
	ValidateCredentials(ctx context.Context, username string, verify func(hash string) (bool, error)) (*models.User, error)
}

// SessionStore covers session issuance, sliding-idle validation, and revocation.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	TouchSession(ctx context.Context, id string, now time.Time) error
	ListSessions(ctx context.Context, userID string) ([]*models.Session, error)
	RevokeSession(ctx context.Context, userID string, number int) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// FileStore covers point CRUD and the ancestor/descendant recursive walks
// the Authorization and Tree Engines are built on.
type FileStore interface {
	GetFile(ctx context.Context, id string) (*models.File, error)
	CreateFile(ctx context.Context, file *models.File) error
	UpdateFile(ctx context.Context, id string, fields map[string]any) error
	DeleteFileCascade(ctx context.Context, rootID string) ([]*models.File, error)
	Ancestors(ctx context.Context, id string) ([]*models.File, error)
	Descendants(ctx context.Context, rootID string, maxDepth int) ([]DescendantRow, error)
	ChildrenOf(ctx context.Context, parentID string, ownerID *string) ([]*models.File, error)
	RootFilesForOwner(ctx context.Context, ownerID string) ([]*models.File, error)
	ListOrphanedAnonymousFiles(ctx context.Context, now time.Time) ([]*models.File, error)
}

// DescendantRow is one row of a depth-ascending descendant walk.
type DescendantRow struct {
	models.File
	Depth int
}

// ShareStore covers user-shares and link-shares.
type ShareStore interface {
	UpsertShareUser(ctx context.Context, share *models.ShareUser) error
	GetShareUser(ctx context.Context, fileID, userID string) (*models.ShareUser, error)
	ListShareUsersForFile(ctx context.Context, fileID string) ([]*models.ShareUser, error)
	ListSharesForUser(ctx context.Context, userID string) ([]*models.ShareUser, error)
	RevokeShareUser(ctx context.Context, fileID, userID string) error

	CreateShareLink(ctx context.Context, link *models.ShareLink) error
	GetShareLink(ctx context.Context, id string) (*models.ShareLink, error)
	ListShareLinksForFile(ctx context.Context, fileID string) ([]*models.ShareLink, error)
	UpdateShareLink(ctx context.Context, id string, fields map[string]any) error
	RevokeShareLink(ctx context.Context, id string) error
	DeleteExpiredShareLinks(ctx context.Context, now time.Time) (int64, error)
}

// UploadTransactionStore covers chunked-upload bookkeeping.
type UploadTransactionStore interface {
	CreateTransaction(ctx context.Context, tx *models.UploadTransaction) error
	GetTransaction(ctx context.Context, id string) (*models.UploadTransaction, error)
	IncrementChunk(ctx context.Context, id string) (*models.UploadTransaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// Store is the full Metadata Store surface.
type Store interface {
	UserStore
	SessionStore
	FileStore
	ShareStore
	UploadTransactionStore

	// WithinTransaction runs fn inside a single database transaction,
	// rolling back on any returned error. Busy-snapshot conflicts surface
	// as errors satisfying store.IsBusyError, for the Upload Pipeline's
	// retry loop (§4.6).
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error

	Healthcheck(ctx context.Context) error
	Close() error
}
