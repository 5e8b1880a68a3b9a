package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/vaultd/vaultd/pkg/blobstore/fs"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/session"
	"github.com/vaultd/vaultd/pkg/store"
	"github.com/vaultd/vaultd/pkg/user"
)

func newUserTestHandler(t *testing.T) (*UserHandler, *user.Service) {
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
	sessions := session.New(st, session.Config{})
	users := user.New(st, sessions, blobs)
	return NewUserHandler(users, st), users
}

func registerTestUser(t *testing.T, users *user.Service, username string) *models.User {
	t.Helper()
	u, err := users.Register(context.Background(), user.RegisterInput{
		Username:            username,
		Password:            "correct horse battery staple",
		PublicKey:           base64.StdEncoding.EncodeToString(make([]byte, models.PublicKeyLength)),
		PrivateKeyIV:        base64.StdEncoding.EncodeToString(make([]byte, models.NonceLength)),
		PrivateKeySalt:      "salt",
		EncryptedPrivateKey: "ciphertext",
		TotalSpace:          1 << 30,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return u
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestUserSearch_RanksByDistance(t *testing.T) {
	h, users := newUserTestHandler(t)
	registerTestUser(t, users, "alice")
	registerTestUser(t, users, "alicia")
	registerTestUser(t, users, "bob")

	req := httptest.NewRequest(http.MethodGet, "/api/users/search/alice", nil)
	req = withURLParam(req, "query", "alice")
	w := httptest.NewRecorder()
	h.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	var results []models.PublicUser
	if err := json.NewDecoder(w.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Username != "alice" {
		t.Errorf("results[0].Username = %q, want alice (best match first)", results[0].Username)
	}
}

func TestUserSearch_RespectsLimitAndOffset(t *testing.T) {
	h, users := newUserTestHandler(t)
	registerTestUser(t, users, "aaa")
	registerTestUser(t, users, "aab")
	registerTestUser(t, users, "aac")

	req := httptest.NewRequest(http.MethodGet, "/api/users/search/aa?limit=1&offset=1&sort=alphabetical", nil)
	req = withURLParam(req, "query", "aa")
	w := httptest.NewRecorder()
	h.Search(w, req)

	var results []models.PublicUser
	if err := json.NewDecoder(w.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Username != "aab" {
		t.Errorf("results[0].Username = %q, want aab", results[0].Username)
	}
}

func TestUserGet_ReturnsPublicProfile(t *testing.T) {
	h, users := newUserTestHandler(t)
	u := registerTestUser(t, users, "frank")

	req := httptest.NewRequest(http.MethodGet, "/api/user/"+u.ID, nil)
	req = withURLParam(req, "id", u.ID)
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	var pub models.PublicUser
	if err := json.NewDecoder(w.Body).Decode(&pub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pub.Username != "frank" {
		t.Errorf("Username = %q, want frank", pub.Username)
	}
}

func TestUserGet_UnknownID_Returns404(t *testing.T) {
	h, _ := newUserTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/user/nonexistent", nil)
	req = withURLParam(req, "id", "nonexistent")
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
