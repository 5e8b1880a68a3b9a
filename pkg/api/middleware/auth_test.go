package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/session"
)

type memSessionStore struct {
	sessions map[string]*models.Session
}

func (m *memSessionStore) CreateSession(_ context.Context, s *models.Session) error {
	s.Number = len(m.sessions) + 1
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) TouchSession(_ context.Context, id string, now time.Time) error {
	s, ok := m.sessions[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	s.LastUsedAt = now
	return nil
}

func (m *memSessionStore) ListSessions(_ context.Context, userID string) ([]*models.Session, error) {
	return nil, nil
}

func (m *memSessionStore) RevokeSession(_ context.Context, userID string, number int) error {
	return nil
}

type memUserStore struct {
	usersByID map[string]*models.User
}

func (m *memUserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return nil, models.ErrUserNotFound
}
func (m *memUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return nil, models.ErrUserNotFound
}
func (m *memUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.usersByID[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return u, nil
}
func (m *memUserStore) ListUsers(_ context.Context) ([]*models.User, error)   { return nil, nil }
func (m *memUserStore) SearchUsers(_ context.Context) ([]*models.User, error) { return nil, nil }
func (m *memUserStore) CreateUser(_ context.Context, u *models.User) (string, error) {
	return "", nil
}
func (m *memUserStore) UpdateProfile(_ context.Context, userID string, fields map[string]any) error {
	return nil
}
func (m *memUserStore) UpdateQuota(_ context.Context, userID string, delta int64) error { return nil }
func (m *memUserStore) UpdateTOTP(_ context.Context, userID string, secret *string, enabled, verified bool) error {
	return nil
}
func (m *memUserStore) UpdateAvatar(_ context.Context, userID, ext string) error { return nil }
func (m *memUserStore) DeleteUser(_ context.Context, userID string) error       { return nil }
func (m *memUserStore) ValidateCredentials(_ context.Context, username string, verify func(hash string) (bool, error)) (*models.User, error) {
	return nil, models.ErrInvalidCredentials
}

func setup(t *testing.T) (*Auth, *session.Service, *memUserStore) {
	t.Helper()
	sessStore := &memSessionStore{sessions: make(map[string]*models.Session)}
	svc := session.New(sessStore, session.Config{})
	userStore := &memUserStore{usersByID: map[string]*models.User{
		"user-1":  {ID: "user-1", Username: "alice"},
		"admin-1": {ID: "admin-1", Username: "root", IsAdmin: true},
	}}
	return NewAuth(svc, userStore), svc, userStore
}

func issueCookie(t *testing.T, svc *session.Service, userID string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if _, err := svc.Issue(context.Background(), rec, userID, ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return rec.Result().Cookies()[0]
}

func TestRequired_NoCookie(t *testing.T) {
	auth, _, _ := setup(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	called := false
	auth.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if called {
		t.Error("handler should not run without a session cookie")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequired_ValidCookie(t *testing.T) {
	auth, svc, _ := setup(t)
	cookie := issueCookie(t, svc, "user-1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	var gotUser *models.User
	auth.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserFromContext(r.Context())
	})).ServeHTTP(rec, req)

	if gotUser == nil || gotUser.ID != "user-1" {
		t.Fatalf("gotUser = %+v, want user-1", gotUser)
	}
}

func TestOptional_AnonymousPassesThrough(t *testing.T) {
	auth, _, _ := setup(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	called := false
	auth.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if GetUserFromContext(r.Context()) != nil {
			t.Error("expected no user in context for anonymous request")
		}
	})).ServeHTTP(rec, req)

	if !called {
		t.Error("handler should run for anonymous request")
	}
}

func TestRequireAdmin(t *testing.T) {
	auth, svc, _ := setup(t)

	t.Run("non-admin rejected", func(t *testing.T) {
		cookie := issueCookie(t, svc, "user-1")
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)

		handler := auth.Required(auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("admin-only handler should not run")
		})))
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("admin allowed", func(t *testing.T) {
		cookie := issueCookie(t, svc, "admin-1")
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)

		called := false
		handler := auth.Required(auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})))
		handler.ServeHTTP(rec, req)

		if !called {
			t.Error("admin handler should run")
		}
	})
}
