package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vaultd/vaultd/pkg/api/middleware"
	"github.com/vaultd/vaultd/pkg/blobstore/fs"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/session"
	"github.com/vaultd/vaultd/pkg/store"
	"github.com/vaultd/vaultd/pkg/user"
)

func newAuthTestHandler(t *testing.T) (*AuthHandler, *middleware.Auth, *user.Service) {
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
	return NewAuthHandler(users, sessions), middleware.NewAuth(sessions, st), users
}

func validRegisterBody(username string) RegisterRequest {
	return RegisterRequest{
		Username:            username,
		Password:            "correct horse battery staple",
		PublicKey:           base64.StdEncoding.EncodeToString(make([]byte, models.PublicKeyLength)),
		PrivateKeyIV:        base64.StdEncoding.EncodeToString(make([]byte, models.NonceLength)),
		PrivateKeySalt:      "salt",
		EncryptedPrivateKey: "ciphertext",
	}
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRegister_Success(t *testing.T) {
	h, _, _ := newAuthTestHandler(t)
	w := doJSON(t, h.Register, http.MethodPost, "/api/register", validRegisterBody("alice"))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var view models.SessionUser
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Username != "alice" {
		t.Errorf("Username = %q, want alice", view.Username)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	h, _, _ := newAuthTestHandler(t)
	doJSON(t, h.Register, http.MethodPost, "/api/register", validRegisterBody("bob"))
	w := doJSON(t, h.Register, http.MethodPost, "/api/register", validRegisterBody("bob"))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestLogin_Success(t *testing.T) {
	h, _, _ := newAuthTestHandler(t)
	doJSON(t, h.Register, http.MethodPost, "/api/register", validRegisterBody("carol"))

	w := doJSON(t, h.Login, http.MethodPost, "/api/login", LoginRequest{
		Username: "carol",
		Password: "correct horse battery staple",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies (session + authenticated), got %d", len(cookies))
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h, _, _ := newAuthTestHandler(t)
	doJSON(t, h.Register, http.MethodPost, "/api/register", validRegisterBody("dave"))

	w := doJSON(t, h.Login, http.MethodPost, "/api/login", LoginRequest{
		Username: "dave",
		Password: "wrong password entirely",
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestProfile_ReturnsAuthenticatedUser(t *testing.T) {
	h, auth, users := newAuthTestHandler(t)
	u, err := users.Register(context.Background(), user.RegisterInput{
		Username:            "erin",
		Password:            "correct horse battery staple",
		PublicKey:           base64.StdEncoding.EncodeToString(make([]byte, models.PublicKeyLength)),
		PrivateKeyIV:        base64.StdEncoding.EncodeToString(make([]byte, models.NonceLength)),
		PrivateKeySalt:      "salt",
		EncryptedPrivateKey: "ciphertext",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	loginRec := doJSON(t, h.Login, http.MethodPost, "/api/login", LoginRequest{
		Username: "erin",
		Password: "correct horse battery staple",
	})
	cookies := loginRec.Result().Cookies()

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	auth.Required(http.HandlerFunc(h.Profile)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	var view models.SessionUser
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != u.ID {
		t.Errorf("ID = %q, want %q", view.ID, u.ID)
	}
}

func TestProfile_NoSession_Returns401(t *testing.T) {
	h, auth, _ := newAuthTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	w := httptest.NewRecorder()
	auth.Required(http.HandlerFunc(h.Profile)).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
