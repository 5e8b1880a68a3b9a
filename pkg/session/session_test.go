package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vaultd/vaultd/pkg/models"
)

// memStore is a minimal in-memory store.SessionStore for exercising Service
// without a database.
type memStore struct {
	byID map[string]*models.Session
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]*models.Session)}
}

func (m *memStore) CreateSession(_ context.Context, s *models.Session) error {
	count := 0
	for _, existing := range m.byID {
		if existing.UserID == s.UserID {
			count++
		}
	}
	s.Number = count + 1
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) TouchSession(_ context.Context, id string, now time.Time) error {
	s, ok := m.byID[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	s.LastUsedAt = now
	return nil
}

func (m *memStore) ListSessions(_ context.Context, userID string) ([]*models.Session, error) {
	var out []*models.Session
	for _, s := range m.byID {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) RevokeSession(_ context.Context, userID string, number int) error {
	for id, s := range m.byID {
		if s.UserID == userID && s.Number == number {
			delete(m.byID, id)
			return nil
		}
	}
	return models.ErrSessionNotFound
}

func TestIssueAndValidate(t *testing.T) {
	st := newMemStore()
	svc := New(st, Config{Secure: false})

	rec := httptest.NewRecorder()
	sess, err := svc.Issue(context.Background(), rec, "user-1", "test-agent")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if sess.Number != 1 {
		t.Errorf("Number = %d, want 1", sess.Number)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies (session + authenticated), got %d", len(cookies))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	validated, err := svc.Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if validated.ID != sess.ID {
		t.Errorf("validated session id = %q, want %q", validated.ID, sess.ID)
	}
}

func TestValidateMissingCookie(t *testing.T) {
	svc := New(newMemStore(), Config{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := svc.Validate(context.Background(), req); err != models.ErrSessionNotFound {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestValidateExpired(t *testing.T) {
	st := newMemStore()
	svc := New(st, Config{IdleDuration: time.Minute})

	rec := httptest.NewRecorder()
	sess, err := svc.Issue(context.Background(), rec, "user-1", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	st.byID[sess.ID].LastUsedAt = time.Now().Add(-time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])

	if _, err := svc.Validate(context.Background(), req); err != models.ErrSessionExpired {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
}

func TestRevokeAndList(t *testing.T) {
	st := newMemStore()
	svc := New(st, Config{})
	ctx := context.Background()

	rec1 := httptest.NewRecorder()
	s1, _ := svc.Issue(ctx, rec1, "user-1", "device-a")
	rec2 := httptest.NewRecorder()
	_, _ = svc.Issue(ctx, rec2, "user-1", "device-b")

	sessions, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}

	if err := svc.Revoke(ctx, "user-1", s1.Number); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	sessions, err = svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List after revoke: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}

	if err := svc.Revoke(ctx, "user-1", s1.Number); err != models.ErrSessionNotFound {
		t.Errorf("second revoke err = %v, want ErrSessionNotFound", err)
	}
}

func TestClearSetsExpiredCookie(t *testing.T) {
	svc := New(newMemStore(), Config{})
	rec := httptest.NewRecorder()
	svc.Clear(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies (session + authenticated), got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			t.Errorf("%s MaxAge = %d, want negative", c.Name, c.MaxAge)
		}
	}
}
