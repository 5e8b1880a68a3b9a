//go:build integration

package share

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return st
}

func newUser(t *testing.T, st store.Store, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:            username,
		PasswordHash:        "argon2id$fake",
		EncryptedPrivateKey: "ct",
		PrivateKeyIV:        "iv",
		PrivateKeySalt:      "salt",
		PublicKey:           "pub",
		TotalSpace:          1 << 30,
	}
	id, err := st.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u.ID = id
	return u
}

func newRootFile(t *testing.T, st store.Store, ownerID string) *models.File {
	t.Helper()
	f := &models.File{
		ID:            "file-" + ownerID,
		OwnerID:       &ownerID,
		IsDirectory:   true,
		EncryptedName: "root",
		NameNonce:     "AAAAAAAAAAAAAAAAAAAA==",
		EncryptedKey:  "root-key",
	}
	if err := st.CreateFile(context.Background(), f); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	return f
}

func TestShareWithUser_RejectsSelfShare(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	owner := newUser(t, st, "owner")
	file := newRootFile(t, st, owner.ID)

	err := svc.ShareWithUser(context.Background(), owner.ID, file.ID, owner.ID, "key", false)
	if err != models.ErrSelfShare {
		t.Fatalf("err = %v, want ErrSelfShare", err)
	}
}

func TestShareWithUser_RejectsInvalidSharee(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	owner := newUser(t, st, "owner")
	file := newRootFile(t, st, owner.ID)

	err := svc.ShareWithUser(context.Background(), owner.ID, file.ID, "no-such-user", "key", false)
	if err != models.ErrInvalidSharee {
		t.Fatalf("err = %v, want ErrInvalidSharee", err)
	}
}

func TestShareWithUser_NonOwnerNotFound(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	owner := newUser(t, st, "owner")
	other := newUser(t, st, "other")
	sharee := newUser(t, st, "sharee")
	file := newRootFile(t, st, owner.ID)

	err := svc.ShareWithUser(context.Background(), other.ID, file.ID, sharee.ID, "key", false)
	if err != models.ErrFileNotFound {
		t.Fatalf("err = %v, want ErrFileNotFound (non-owner must not learn the file exists)", err)
	}
}

func TestCreateLink_RejectsEmptyPassword(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	owner := newUser(t, st, "owner")
	file := newRootFile(t, st, owner.ID)

	empty := ""
	_, err := svc.CreateLink(context.Background(), owner.ID, file.ID, CreateLinkInput{Password: &empty})
	if err != models.ErrEmptyLinkPassword {
		t.Fatalf("err = %v, want ErrEmptyLinkPassword", err)
	}
}

func TestCreateLink_WithPasswordRoundTrips(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	owner := newUser(t, st, "owner")
	file := newRootFile(t, st, owner.ID)

	pw := "correct horse battery staple"
	link, err := svc.CreateLink(context.Background(), owner.ID, file.ID, CreateLinkInput{Password: &pw})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	w := httptest.NewRecorder()
	grant, err := svc.Consume(context.Background(), w, ConsumeInput{
		LinkID:   &link.ID,
		FileID:   file.ID,
		Password: &pw,
	})
	if err != nil {
		t.Fatalf("Consume with correct password: %v", err)
	}
	if !grant.CanRead() {
		t.Error("expected a readable grant")
	}
	if len(w.Result().Cookies()) != 1 {
		t.Errorf("expected one renewal cookie to be set, got %d", len(w.Result().Cookies()))
	}

	wrong := "not the password"
	_, err = svc.Consume(context.Background(), httptest.NewRecorder(), ConsumeInput{
		LinkID:   &link.ID,
		FileID:   file.ID,
		Password: &wrong,
	})
	if err != models.ErrLinkPasswordBad {
		t.Fatalf("err = %v, want ErrLinkPasswordBad", err)
	}

	_, err = svc.Consume(context.Background(), httptest.NewRecorder(), ConsumeInput{
		LinkID: &link.ID,
		FileID: file.ID,
	})
	if err != models.ErrLinkPasswordReq {
		t.Fatalf("err = %v, want ErrLinkPasswordReq (no password supplied at all)", err)
	}
}

func TestUpdateLink_ClearsPassword(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	owner := newUser(t, st, "owner")
	file := newRootFile(t, st, owner.ID)

	pw := "initial-password"
	link, err := svc.CreateLink(context.Background(), owner.ID, file.ID, CreateLinkInput{Password: &pw})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	empty := ""
	if err := svc.UpdateLink(context.Background(), owner.ID, link.ID, UpdateLinkInput{Password: &empty}); err != nil {
		t.Fatalf("UpdateLink: %v", err)
	}

	updated, err := st.GetShareLink(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("GetShareLink: %v", err)
	}
	if updated.RequiresPassword() {
		t.Error("expected password to be cleared")
	}
}

func TestRevokeLink_NonOwnerNotFound(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	owner := newUser(t, st, "owner")
	other := newUser(t, st, "other")
	file := newRootFile(t, st, owner.ID)

	link, err := svc.CreateLink(context.Background(), owner.ID, file.ID, CreateLinkInput{})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	err = svc.RevokeLink(context.Background(), other.ID, link.ID)
	if err != models.ErrFileNotFound {
		t.Fatalf("err = %v, want ErrFileNotFound (non-owner must not learn the link exists)", err)
	}
}
