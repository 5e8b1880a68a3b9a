// Package authz implements the Authorization Engine (§4.4): the single
// permission predicate every mutating and reading operation consults before
// touching a file.
package authz

import (
	"context"
	"errors"
	"time"

	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/password"
	"github.com/vaultd/vaultd/pkg/store"
)

// Kind is the caller's relationship to a file, ordered weakest to strongest.
type Kind int

const (
	KindNone Kind = iota
	KindViewShare
	KindEditShare
	KindOwner
)

// level orders Kind for the edit-beats-view (and owner-beats-all) tie-break
// among multiple satisfying ancestor edges.
func (k Kind) level() int { return int(k) }

// Grant is the resolved outcome of Resolve: the caller's access kind, and
// the ancestor that granted it.
type Grant struct {
	Kind Kind

	// GrantFileID is the id of the file/directory whose ownership or share
	// edge produced this grant.
	GrantFileID string

	// GrantDepth is GrantFileID's position in the target's ancestor chain:
	// 0 means the grant is on the target itself, 1 means its parent, and so
	// on. Used by CanMutateTarget's child exception (§4.4).
	GrantDepth int
}

// CanRead reports whether the grant allows viewing the target.
func (g Grant) CanRead() bool { return g.Kind != KindNone }

// CanMutateTarget reports whether the grant allows editing, renaming, moving,
// or deleting the target file itself — as opposed to merely its descendants.
// Per §4.4's child exception, an edit-share rooted exactly at the target
// (GrantDepth == 0) grants editing inside the shared directory but not of
// the shared root itself.
func (g Grant) CanMutateTarget() bool {
	if g.Kind == KindOwner {
		return true
	}
	return g.Kind == KindEditShare && g.GrantDepth > 0
}

// CanMutateDescendant reports whether the grant allows mutating something
// strictly inside the target (a descendant), regardless of GrantDepth.
func (g Grant) CanMutateDescendant() bool {
	return g.Kind == KindOwner || g.Kind == KindEditShare
}

// LinkCredentials carries the anonymous-access parameters of a request:
// the share link id the caller presented, and the hash of any password they
// supplied with it. The server never sees a plaintext link password — the
// client hashes it and the server compares the hash by exact byte equality.
type LinkCredentials struct {
	LinkID       *string
	PasswordHash *string
}

// Resolve implements the §4.4 permission predicate: walk the ancestors of
// fileID (inclusive of fileID itself) and return the strongest access the
// caller (an authenticated user, a link presentation, or both) holds over
// any ancestor. A missing file or no satisfying edge both resolve to
// ErrFileNotFound — the caller is never told which, to avoid leaking
// existence of files they can't access.
//
// A presented link id that matches an ancestor but is missing or wrong on
// its password is a different case: the link (and the file it points at)
// demonstrably exists, so the caller gets ErrLinkPasswordReq/
// ErrLinkPasswordBad rather than ErrFileNotFound — unless some other grant
// (ownership, a user share) already lets them in, in which case the
// password failure is moot and access proceeds normally.
func Resolve(ctx context.Context, st store.Store, callerID *string, link LinkCredentials, fileID string) (Grant, error) {
	ancestors, err := st.Ancestors(ctx, fileID)
	if err != nil {
		if errors.Is(err, models.ErrFileNotFound) {
			return Grant{}, models.ErrFileNotFound
		}
		return Grant{}, err
	}

	now := time.Now()
	best := Grant{Kind: KindNone}

	for depth, a := range ancestors {
		if callerID != nil && a.OwnerID != nil && *a.OwnerID == *callerID {
			return Grant{Kind: KindOwner, GrantFileID: a.ID, GrantDepth: depth}, nil
		}

		if callerID != nil {
			share, err := st.GetShareUser(ctx, a.ID, *callerID)
			if err != nil && !errors.Is(err, models.ErrShareNotFound) {
				return Grant{}, err
			}
			if err == nil {
				kind := KindViewShare
				if share.EditPermission {
					kind = KindEditShare
				}
				if kind.level() > best.Kind.level() {
					best = Grant{Kind: kind, GrantFileID: a.ID, GrantDepth: depth}
				}
			}
		}
	}

	var linkErr error
	if link.LinkID != nil {
		shareLink, err := st.GetShareLink(ctx, *link.LinkID)
		if err != nil && !errors.Is(err, models.ErrShareNotFound) {
			return Grant{}, err
		}
		if err == nil && !shareLink.Expired(now) {
			for depth, a := range ancestors {
				if shareLink.FileID != a.ID {
					continue
				}
				if !linkPasswordSatisfied(shareLink, link.PasswordHash) {
					if link.PasswordHash == nil {
						linkErr = models.ErrLinkPasswordReq
					} else {
						linkErr = models.ErrLinkPasswordBad
					}
					break
				}
				kind := KindViewShare
				if shareLink.EditPermission {
					kind = KindEditShare
				}
				if kind.level() > best.Kind.level() {
					best = Grant{Kind: kind, GrantFileID: a.ID, GrantDepth: depth}
				}
				break
			}
		}
	}

	if best.Kind == KindNone {
		if linkErr != nil {
			return Grant{}, linkErr
		}
		return Grant{}, models.ErrFileNotFound
	}
	return best, nil
}

func linkPasswordSatisfied(link *models.ShareLink, suppliedHash *string) bool {
	if !link.RequiresPassword() {
		return true
	}
	if suppliedHash == nil {
		return false
	}
	return password.VerifyConstantTime(*suppliedHash, *link.PasswordHash)
}
