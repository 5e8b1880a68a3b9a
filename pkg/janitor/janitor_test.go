//go:build integration

package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vaultd/vaultd/pkg/blobstore/fs"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/store"
)

func newTestJanitor(t *testing.T) (*Janitor, store.Store) {
	t.Helper()
	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	blobs, err := fs.New(fs.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("fs.New: %v", err)
	}
	return New(st, blobs, Config{}), st
}

func TestSweep_DeletesExpiredSessions(t *testing.T) {
	j, st := newTestJanitor(t)
	ctx := context.Background()

	user := &models.User{Username: "alice", PasswordHash: "x"}
	uid, err := st.CreateUser(ctx, user)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	session := &models.Session{
		ID:           uuid.NewString(),
		UserID:       uid,
		Number:       1,
		LastUsedAt:   time.Now().Add(-48 * time.Hour),
		IdleDuration: int64((24 * time.Hour).Seconds()),
	}
	if err := st.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	j.sweep()

	if _, err := st.GetSession(ctx, session.ID); err != models.ErrSessionNotFound {
		t.Fatalf("GetSession after sweep: err = %v, want ErrSessionNotFound", err)
	}
}

func TestSweep_DeletesExpiredShareLinks(t *testing.T) {
	j, st := newTestJanitor(t)
	ctx := context.Background()

	owner := &models.User{Username: "alice", PasswordHash: "x"}
	ownerID, err := st.CreateUser(ctx, owner)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	file := &models.File{
		ID:            uuid.NewString(),
		OwnerID:       &ownerID,
		EncryptedName: "name",
		NameNonce:     "nonce",
		EncryptedKey:  "key",
	}
	if err := st.CreateFile(ctx, file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	expired := time.Now().Add(-time.Hour)
	link := &models.ShareLink{
		ID:        uuid.NewString(),
		FileID:    file.ID,
		ExpiresAt: &expired,
	}
	if err := st.CreateShareLink(ctx, link); err != nil {
		t.Fatalf("CreateShareLink: %v", err)
	}

	j.sweep()

	if _, err := st.GetShareLink(ctx, link.ID); err != models.ErrShareNotFound {
		t.Fatalf("GetShareLink after sweep: err = %v, want ErrShareNotFound", err)
	}
}

func TestSweep_DeletesOrphanedAnonymousFile(t *testing.T) {
	j, st := newTestJanitor(t)
	ctx := context.Background()

	anon := &models.File{
		ID:            uuid.NewString(),
		EncryptedName: "name",
		NameNonce:     "nonce",
		EncryptedKey:  "key",
		Size:          16,
	}
	if err := st.CreateFile(ctx, anon); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	j.sweep()

	if _, err := st.GetFile(ctx, anon.ID); err != models.ErrFileNotFound {
		t.Fatalf("GetFile after sweep: err = %v, want ErrFileNotFound", err)
	}
}

func TestSweep_KeepsAnonymousFileWithLiveLink(t *testing.T) {
	j, st := newTestJanitor(t)
	ctx := context.Background()

	anon := &models.File{
		ID:            uuid.NewString(),
		EncryptedName: "name",
		NameNonce:     "nonce",
		EncryptedKey:  "key",
		Size:          16,
	}
	if err := st.CreateFile(ctx, anon); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	link := &models.ShareLink{ID: uuid.NewString(), FileID: anon.ID}
	if err := st.CreateShareLink(ctx, link); err != nil {
		t.Fatalf("CreateShareLink: %v", err)
	}

	j.sweep()

	if _, err := st.GetFile(ctx, anon.ID); err != nil {
		t.Fatalf("GetFile after sweep: %v, want file to survive", err)
	}
}
