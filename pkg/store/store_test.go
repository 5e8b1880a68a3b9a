//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vaultd/vaultd/pkg/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	store, err := New(&Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return store
}

func newTestUser(t *testing.T, s *GORMStore, ctx context.Context, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:                  uuid.NewString(),
		Username:            username,
		PasswordHash:        "argon2id$fake-hash",
		EncryptedPrivateKey: "ciphertext",
		PrivateKeyIV:        "iv",
		PrivateKeySalt:      "salt",
		PublicKey:           "pubkey",
		TotalSpace:          1 << 30,
	}
	if _, err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to create user %q: %v", username, err)
	}
	return user
}

func TestNew(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected SQLite, got %s", config.Type)
		}
	})

	t.Run("invalid config returns error", func(t *testing.T) {
		config := &Config{Type: "invalid"}
		if _, err := New(config); err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("creates in-memory store", func(t *testing.T) {
		store := createTestStore(t)
		defer store.Close()

		if store == nil {
			t.Error("expected non-nil store")
		}
	})
}

func TestUserOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	user := newTestUser(t, store, ctx, "alice")

	t.Run("duplicate username fails", func(t *testing.T) {
		dup := &models.User{ID: uuid.NewString(), Username: "alice", PasswordHash: "x"}
		if _, err := store.CreateUser(ctx, dup); !errors.Is(err, models.ErrDuplicateUsername) {
			t.Errorf("expected ErrDuplicateUsername, got %v", err)
		}
	})

	t.Run("get by username", func(t *testing.T) {
		got, err := store.GetUserByUsername(ctx, "ALICE")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("expected id %q, got %q", user.ID, got.ID)
		}
	})

	t.Run("get user not found", func(t *testing.T) {
		if _, err := store.GetUserByID(ctx, uuid.NewString()); !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("update profile", func(t *testing.T) {
		email := "alice@example.com"
		if err := store.UpdateProfile(ctx, user.ID, map[string]any{"email": email}); err != nil {
			t.Fatalf("failed to update profile: %v", err)
		}
		got, _ := store.GetUserByID(ctx, user.ID)
		if got.Email == nil || *got.Email != email {
			t.Errorf("expected email %q, got %v", email, got.Email)
		}
	})

	t.Run("update quota within bounds", func(t *testing.T) {
		if err := store.UpdateQuota(ctx, user.ID, 1024); err != nil {
			t.Fatalf("failed to update quota: %v", err)
		}
		got, _ := store.GetUserByID(ctx, user.ID)
		if got.UsedSpace != 1024 {
			t.Errorf("expected used_space 1024, got %d", got.UsedSpace)
		}
	})

	t.Run("update quota rejects overflow", func(t *testing.T) {
		err := store.UpdateQuota(ctx, user.ID, user.TotalSpace*2)
		if !errors.Is(err, models.ErrQuotaExceeded) {
			t.Errorf("expected ErrQuotaExceeded, got %v", err)
		}
	})

	t.Run("delete user", func(t *testing.T) {
		victim := newTestUser(t, store, ctx, "todelete")
		if err := store.DeleteUser(ctx, victim.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}
		if _, err := store.GetUserByID(ctx, victim.ID); !errors.Is(err, models.ErrUserNotFound) {
			t.Error("user should not exist after deletion")
		}
	})
}

func TestSessionOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	user := newTestUser(t, store, ctx, "bob")

	session := &models.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		IdleDuration: int64((30 * 24 * time.Hour) / time.Second),
		LastUsedAt:   time.Now(),
	}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if session.Number != 1 {
		t.Errorf("expected first session number 1, got %d", session.Number)
	}

	second := &models.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		IdleDuration: session.IdleDuration,
		LastUsedAt:   time.Now(),
	}
	if err := store.CreateSession(ctx, second); err != nil {
		t.Fatalf("failed to create second session: %v", err)
	}
	if second.Number != 2 {
		t.Errorf("expected second session number 2, got %d", second.Number)
	}

	t.Run("touch extends idle window", func(t *testing.T) {
		now := time.Now().Add(time.Hour)
		if err := store.TouchSession(ctx, session.ID, now); err != nil {
			t.Fatalf("failed to touch session: %v", err)
		}
		got, _ := store.GetSession(ctx, session.ID)
		if !got.LastUsedAt.Equal(now) {
			t.Errorf("expected last_used_at %v, got %v", now, got.LastUsedAt)
		}
	})

	t.Run("list sessions most recent first", func(t *testing.T) {
		sessions, err := store.ListSessions(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("expected 2 sessions, got %d", len(sessions))
		}
		if sessions[0].ID != session.ID {
			t.Error("expected most recently touched session first")
		}
	})

	t.Run("revoke session", func(t *testing.T) {
		if err := store.RevokeSession(ctx, user.ID, second.Number); err != nil {
			t.Fatalf("failed to revoke session: %v", err)
		}
		if _, err := store.GetSession(ctx, second.ID); !errors.Is(err, models.ErrSessionNotFound) {
			t.Error("session should not exist after revocation")
		}
	})

	t.Run("delete expired sessions", func(t *testing.T) {
		expired := &models.Session{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			IdleDuration: 1,
			LastUsedAt:   time.Now().Add(-time.Hour),
		}
		if err := store.CreateSession(ctx, expired); err != nil {
			t.Fatalf("failed to create expired session: %v", err)
		}

		count, err := store.DeleteExpiredSessions(ctx, time.Now())
		if err != nil {
			t.Fatalf("failed to delete expired sessions: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 expired session deleted, got %d", count)
		}
	})
}

func TestFileOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	user := newTestUser(t, store, ctx, "carol")

	root := &models.File{
		ID:            uuid.NewString(),
		OwnerID:       &user.ID,
		UploaderID:    &user.ID,
		IsDirectory:   true,
		EncryptedName: "root-name",
		NameNonce:     "nonce",
		EncryptedKey:  "root-key-material",
	}
	if err := store.CreateFile(ctx, root); err != nil {
		t.Fatalf("failed to create root directory: %v", err)
	}

	child := &models.File{
		ID:            uuid.NewString(),
		ParentID:      &root.ID,
		OwnerID:       &user.ID,
		UploaderID:    &user.ID,
		IsDirectory:   false,
		Size:          1040,
		EncryptedName: "child-name",
		NameNonce:     "nonce",
		EncryptedKey:  "wrapped-child-key",
		KeyNonce:      strPtr("nonce"),
		FileNonce:     strPtr("nonce"),
	}
	if err := store.CreateFile(ctx, child); err != nil {
		t.Fatalf("failed to create child file: %v", err)
	}

	t.Run("create rejects missing parent", func(t *testing.T) {
		orphan := &models.File{
			ID:            uuid.NewString(),
			ParentID:      strPtr(uuid.NewString()),
			OwnerID:       &user.ID,
			IsDirectory:   false,
			EncryptedName: "orphan",
			NameNonce:     "nonce",
			EncryptedKey:  "key",
		}
		if err := store.CreateFile(ctx, orphan); !errors.Is(err, models.ErrInvalidParent) {
			t.Errorf("expected ErrInvalidParent, got %v", err)
		}
	})

	t.Run("children of", func(t *testing.T) {
		children, err := store.ChildrenOf(ctx, root.ID, nil)
		if err != nil {
			t.Fatalf("failed to list children: %v", err)
		}
		if len(children) != 1 || children[0].ID != child.ID {
			t.Error("expected exactly the one child created above")
		}
	})

	t.Run("ancestors walk to root", func(t *testing.T) {
		chain, err := store.Ancestors(ctx, child.ID)
		if err != nil {
			t.Fatalf("failed to walk ancestors: %v", err)
		}
		if len(chain) != 2 || chain[0].ID != child.ID || chain[1].ID != root.ID {
			t.Errorf("unexpected ancestor chain: %+v", chain)
		}
	})

	t.Run("descendants walk from root", func(t *testing.T) {
		rows, err := store.Descendants(ctx, root.ID, 20)
		if err != nil {
			t.Fatalf("failed to walk descendants: %v", err)
		}
		if len(rows) != 1 || rows[0].ID != child.ID || rows[0].Depth != 1 {
			t.Errorf("unexpected descendant rows: %+v", rows)
		}
	})

	t.Run("delete cascade returns blob-bearing files", func(t *testing.T) {
		blobs, err := store.DeleteFileCascade(ctx, root.ID)
		if err != nil {
			t.Fatalf("failed to delete cascade: %v", err)
		}
		if len(blobs) != 1 || blobs[0].ID != child.ID {
			t.Errorf("expected only the child file returned, got %+v", blobs)
		}
		if _, err := store.GetFile(ctx, root.ID); !errors.Is(err, models.ErrFileNotFound) {
			t.Error("root should be gone after cascade delete")
		}
	})
}

func TestShareOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	owner := newTestUser(t, store, ctx, "dave")
	recipient := newTestUser(t, store, ctx, "erin")

	file := &models.File{
		ID:            uuid.NewString(),
		OwnerID:       &owner.ID,
		UploaderID:    &owner.ID,
		IsDirectory:   true,
		EncryptedName: "shared-dir",
		NameNonce:     "nonce",
		EncryptedKey:  "root-key-material",
	}
	if err := store.CreateFile(ctx, file); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	t.Run("share with user then re-share replaces key", func(t *testing.T) {
		share := &models.ShareUser{FileID: file.ID, UserID: recipient.ID, EncryptedKey: "wrapped-v1"}
		if err := store.UpsertShareUser(ctx, share); err != nil {
			t.Fatalf("failed to share: %v", err)
		}

		share.EncryptedKey = "wrapped-v2"
		share.EditPermission = true
		if err := store.UpsertShareUser(ctx, share); err != nil {
			t.Fatalf("failed to re-share: %v", err)
		}

		got, err := store.GetShareUser(ctx, file.ID, recipient.ID)
		if err != nil {
			t.Fatalf("failed to get share: %v", err)
		}
		if got.EncryptedKey != "wrapped-v2" || !got.EditPermission {
			t.Errorf("expected updated share, got %+v", got)
		}
	})

	t.Run("shared-with-me view", func(t *testing.T) {
		shares, err := store.ListSharesForUser(ctx, recipient.ID)
		if err != nil {
			t.Fatalf("failed to list shares: %v", err)
		}
		if len(shares) != 1 || shares[0].FileID != file.ID {
			t.Errorf("unexpected shares: %+v", shares)
		}
	})

	t.Run("revoke share", func(t *testing.T) {
		if err := store.RevokeShareUser(ctx, file.ID, recipient.ID); err != nil {
			t.Fatalf("failed to revoke: %v", err)
		}
		if _, err := store.GetShareUser(ctx, file.ID, recipient.ID); !errors.Is(err, models.ErrShareNotFound) {
			t.Error("share should not exist after revocation")
		}
	})

	t.Run("share link lifecycle", func(t *testing.T) {
		link := &models.ShareLink{ID: uuid.NewString(), FileID: file.ID}
		if err := store.CreateShareLink(ctx, link); err != nil {
			t.Fatalf("failed to create link: %v", err)
		}

		expiry := time.Now().Add(-time.Minute)
		if err := store.UpdateShareLink(ctx, link.ID, map[string]any{"expires_at": expiry}); err != nil {
			t.Fatalf("failed to update link: %v", err)
		}

		count, err := store.DeleteExpiredShareLinks(ctx, time.Now())
		if err != nil {
			t.Fatalf("failed to sweep expired links: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 expired link deleted, got %d", count)
		}
	})
}

func TestUploadTransactionOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	user := newTestUser(t, store, ctx, "frank")

	txn := &models.UploadTransaction{
		ID:            uuid.NewString(),
		OwnerID:       &user.ID,
		UploaderID:    &user.ID,
		EncryptedName: "name",
		NameNonce:     "nonce",
		EncryptedKey:  "key",
		ChunkSize:     models.MinChunkSize,
		TotalChunks:   2,
		ExpectedSize:  models.MinChunkSize + 10,
	}
	if err := store.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}

	t.Run("increment chunk advances count", func(t *testing.T) {
		got, err := store.IncrementChunk(ctx, txn.ID)
		if err != nil {
			t.Fatalf("failed to increment chunk: %v", err)
		}
		if got.CurrentChunks != 1 {
			t.Errorf("expected current_chunks 1, got %d", got.CurrentChunks)
		}
	})

	t.Run("increment beyond total rejected", func(t *testing.T) {
		if _, err := store.IncrementChunk(ctx, txn.ID); err != nil {
			t.Fatalf("failed second increment: %v", err)
		}
		if _, err := store.IncrementChunk(ctx, txn.ID); !errors.Is(err, models.ErrChunkAlreadySent) {
			t.Errorf("expected ErrChunkAlreadySent, got %v", err)
		}
	})

	t.Run("delete transaction", func(t *testing.T) {
		if err := store.DeleteTransaction(ctx, txn.ID); err != nil {
			t.Fatalf("failed to delete transaction: %v", err)
		}
		if _, err := store.GetTransaction(ctx, txn.ID); !errors.Is(err, models.ErrTransactionNotFound) {
			t.Error("transaction should not exist after deletion")
		}
	})
}

func TestHealthcheck(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Healthcheck(ctx); err != nil {
		t.Errorf("healthcheck should pass: %v", err)
	}
}

func strPtr(s string) *string { return &s }
