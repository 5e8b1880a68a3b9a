// Package share implements the Share Engine (§4.7): owner-managed user and
// link shares, and the password-gated consume path anonymous and shared
// viewers use to read a subtree through the Authorization Engine.
package share

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/vaultd/vaultd/pkg/authz"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/store"
)

// Service implements the Share Engine.
type Service struct {
	store store.Store
}

// New creates a Share Engine service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) requireOwner(ctx context.Context, ownerID, fileID string) (*models.File, error) {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID == nil || *file.OwnerID != ownerID {
		return nil, models.ErrFileNotFound
	}
	return file, nil
}

// ShareWithUser implements Create user share (§4.7): owner-only, the
// receiver must not be the owner, and re-sharing with the same user
// replaces the wrapped key and permission rather than erroring.
func (s *Service) ShareWithUser(ctx context.Context, ownerID, fileID, shareeID, encryptedKey string, editPermission bool) error {
	if _, err := s.requireOwner(ctx, ownerID, fileID); err != nil {
		return err
	}
	if shareeID == ownerID {
		return models.ErrSelfShare
	}
	if _, err := s.store.GetUserByID(ctx, shareeID); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return models.ErrInvalidSharee
		}
		return err
	}
	return s.store.UpsertShareUser(ctx, &models.ShareUser{
		FileID:         fileID,
		UserID:         shareeID,
		EncryptedKey:   encryptedKey,
		EditPermission: editPermission,
	})
}

// CreateLinkInput is the request shape for CreateLink.
type CreateLinkInput struct {
	// ExpirySeconds is the link's lifetime; 0 means no expiry (§4.7).
	ExpirySeconds  int64
	Password       *string
	EditPermission bool
}

// CreateLink implements Create link (§4.7): owner-only, optional expiry, and
// an optional password — rejected if explicitly set to the empty string,
// hashed with the link-scoped KDF (hashLinkPassword) otherwise.
func (s *Service) CreateLink(ctx context.Context, ownerID, fileID string, in CreateLinkInput) (*models.ShareLink, error) {
	if _, err := s.requireOwner(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	if in.Password != nil && *in.Password == "" {
		return nil, models.ErrEmptyLinkPassword
	}

	link := &models.ShareLink{
		ID:             uuid.New().String(),
		FileID:         fileID,
		EditPermission: in.EditPermission,
	}
	if in.ExpirySeconds > 0 {
		expires := time.Now().Add(time.Duration(in.ExpirySeconds) * time.Second)
		link.ExpiresAt = &expires
	}
	if in.Password != nil {
		hash := hashLinkPassword(link.ID, *in.Password)
		link.PasswordHash = &hash
	}

	if err := s.store.CreateShareLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// ListForFile implements List links / users for file (§4.7): owner-only,
// returns active (non-expired) links, every direct user-share edge, and a
// companion map of the recipients' public projections.
func (s *Service) ListForFile(ctx context.Context, ownerID, fileID string) ([]*models.ShareLink, []*models.ShareUser, map[string]models.PublicUser, error) {
	if _, err := s.requireOwner(ctx, ownerID, fileID); err != nil {
		return nil, nil, nil, err
	}

	links, err := s.store.ListShareLinksForFile(ctx, fileID)
	if err != nil {
		return nil, nil, nil, err
	}
	now := time.Now()
	active := links[:0]
	for _, l := range links {
		if !l.Expired(now) {
			active = append(active, l)
		}
	}

	users, err := s.store.ListShareUsersForFile(ctx, fileID)
	if err != nil {
		return nil, nil, nil, err
	}

	publicUsers := make(map[string]models.PublicUser, len(users))
	for _, share := range users {
		if _, ok := publicUsers[share.UserID]; ok {
			continue
		}
		u, err := s.store.GetUserByID(ctx, share.UserID)
		if err != nil {
			continue
		}
		publicUsers[share.UserID] = u.ToPublic()
	}

	return active, users, publicUsers, nil
}

// UpdateLinkInput is the request shape for UpdateLink. A nil field leaves
// the corresponding column unchanged.
type UpdateLinkInput struct {
	ExpirySeconds *int64

	// Password: nil leaves the password unchanged, a pointer to "" clears
	// it, anything else rehashes it (§4.7 Update).
	Password *string

	EditPermission *bool
}

// UpdateLink implements Update for a link (§4.7): owner-only.
func (s *Service) UpdateLink(ctx context.Context, ownerID, linkID string, in UpdateLinkInput) error {
	link, err := s.store.GetShareLink(ctx, linkID)
	if err != nil {
		return err
	}
	if _, err := s.requireOwner(ctx, ownerID, link.FileID); err != nil {
		return err
	}

	fields := map[string]any{}
	if in.ExpirySeconds != nil {
		if *in.ExpirySeconds > 0 {
			expires := time.Now().Add(time.Duration(*in.ExpirySeconds) * time.Second)
			fields["expires_at"] = expires
		} else {
			fields["expires_at"] = nil
		}
	}
	if in.Password != nil {
		if *in.Password == "" {
			fields["password_hash"] = nil
		} else {
			fields["password_hash"] = hashLinkPassword(linkID, *in.Password)
		}
	}
	if in.EditPermission != nil {
		fields["edit_permission"] = *in.EditPermission
	}
	if len(fields) == 0 {
		return nil
	}
	return s.store.UpdateShareLink(ctx, linkID, fields)
}

// RevokeShareUser implements Revoke for a user share (§4.7): owner-only.
func (s *Service) RevokeShareUser(ctx context.Context, ownerID, fileID, shareeID string) error {
	if _, err := s.requireOwner(ctx, ownerID, fileID); err != nil {
		return err
	}
	return s.store.RevokeShareUser(ctx, fileID, shareeID)
}

// RevokeLink implements Revoke for a link (§4.7): owner-only.
func (s *Service) RevokeLink(ctx context.Context, ownerID, linkID string) error {
	link, err := s.store.GetShareLink(ctx, linkID)
	if err != nil {
		return err
	}
	if _, err := s.requireOwner(ctx, ownerID, link.FileID); err != nil {
		return err
	}
	return s.store.RevokeShareLink(ctx, linkID)
}

// linkCookieName is the cookie a successfully-authenticated link viewer
// receives: the link's own id is the cookie name, so a client holding
// several concurrent link sessions keeps one credential per link.
func linkCookieName(linkID string) string {
	return linkID
}

// ConsumeInput is the request shape for Consume.
type ConsumeInput struct {
	CallerID *string
	LinkID   *string
	FileID   string

	// Password, if set, is the plaintext the caller supplied with this
	// request — either in the request body or read back from the link's
	// cookie by the caller (ReadLinkCookie).
	Password *string
}

// ReadLinkCookie extracts a prior successful password credential for linkID
// from the request's cookies, if present.
func ReadLinkCookie(r *http.Request, linkID string) *string {
	c, err := r.Cookie(linkCookieName(linkID))
	if err != nil {
		return nil
	}
	pw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	return &pw
}

// Credentials builds the LinkCredentials for a request carrying a
// `linkId` presentation outside the /shared consume endpoints — uploads,
// renames, moves, deletes, and raw file reads all accept the same `linkId`
// query parameter (§6) and re-check authorization through the same
// Authorization Engine predicate, so they share this construction rather
// than Consume's cookie-setting side effect.
func Credentials(r *http.Request, linkID *string) authz.LinkCredentials {
	if linkID == nil {
		return authz.LinkCredentials{}
	}
	creds := authz.LinkCredentials{LinkID: linkID}
	if pw := ReadLinkCookie(r, *linkID); pw != nil {
		hash := hashLinkPassword(*linkID, *pw)
		creds.PasswordHash = &hash
	}
	return creds
}

// Consume implements the link/user-share resolution step of §4.7's "Consume
// (view)": it resolves the caller's Grant over fileID via the Authorization
// Engine, hashing any supplied link password with the link-scoped KDF
// first. On a successful password-gated link access it sets the renewal
// cookie the spec describes, so the caller need not resupply the password
// on every subsequent request against that link.
func (s *Service) Consume(ctx context.Context, w http.ResponseWriter, in ConsumeInput) (authz.Grant, error) {
	creds := authz.LinkCredentials{LinkID: in.LinkID}
	if in.LinkID != nil && in.Password != nil {
		hash := hashLinkPassword(*in.LinkID, *in.Password)
		creds.PasswordHash = &hash
	}

	grant, err := authz.Resolve(ctx, s.store, in.CallerID, creds, in.FileID)
	if err != nil {
		return authz.Grant{}, err
	}

	if in.LinkID != nil && in.Password != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     linkCookieName(*in.LinkID),
			Value:    url.QueryEscape(*in.Password),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	return grant, nil
}
