// Package session implements the Session Layer (§4.3): DB-backed, opaque
// cookie sessions. There is no JWT here — the cookie carries nothing but a
// session UUID, so revocation is immediate and requires no blocklist.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/store"
)

// Config mirrors the donor's JWTConfig shape (a cookie name instead of a
// signing secret, an idle duration instead of a token lifetime) since the
// session here is an opaque database row, not a signed token.
type Config struct {
	// CookieName is the HTTP-only cookie carrying the session id. Default: "session".
	CookieName string

	// IdleDuration is how long a session survives without activity before
	// Validate rejects it. Default: 30 days.
	IdleDuration time.Duration

	// Secure sets the cookie's Secure flag. Should be true in production
	// (HTTPS); false is only for local HTTP development.
	Secure bool

	// Domain scopes the cookie, empty for host-only.
	Domain string
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.CookieName == "" {
		c.CookieName = "session"
	}
	if c.IdleDuration == 0 {
		c.IdleDuration = 30 * 24 * time.Hour
	}
}

// Service issues, validates, and revokes sessions.
type Service struct {
	store  store.SessionStore
	config Config
}

// New creates a session Service.
func New(sessionStore store.SessionStore, config Config) *Service {
	config.ApplyDefaults()
	return &Service{store: sessionStore, config: config}
}

// Issue creates a new session for userID (§4.3 Issue) and writes the
// Set-Cookie header onto w.
func (s *Service) Issue(ctx context.Context, w http.ResponseWriter, userID, clientInfo string) (*models.Session, error) {
	now := time.Now()
	sess := &models.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		CreatedAt:    now,
		LastUsedAt:   now,
		IdleDuration: int64(s.config.IdleDuration / time.Second),
		ClientInfo:   clientInfo,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	expires := now.Add(s.config.IdleDuration)
	http.SetCookie(w, s.cookie(sess.ID, expires))
	http.SetCookie(w, s.authenticatedCookie("true", expires))
	return sess, nil
}

// Validate reads the session cookie off r, looks up the session, and bumps
// its idle window (§4.3 Validate). A missing cookie, unknown id, or expired
// session all return models.ErrSessionNotFound / models.ErrSessionExpired —
// callers should treat either as Fail and clear the cookie via Clear.
func (s *Service) Validate(ctx context.Context, r *http.Request) (*models.Session, error) {
	cookie, err := r.Cookie(s.config.CookieName)
	if err != nil {
		return nil, models.ErrSessionNotFound
	}

	sess, err := s.store.GetSession(ctx, cookie.Value)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if sess.Expired(now) {
		return nil, models.ErrSessionExpired
	}

	if err := s.store.TouchSession(ctx, sess.ID, now); err != nil {
		return nil, err
	}
	sess.LastUsedAt = now
	return sess, nil
}

// CookieName returns the configured session cookie name.
func (s *Service) CookieName() string {
	return s.config.CookieName
}

// Clear writes Set-Cookie headers deleting both the session cookie and its
// non-HttpOnly "authenticated" companion (§6: "the response also sets
// session=; Max-Age=0 and authenticated=; Max-Age=0"), regardless of what
// caused the failure (§4.3 Fail).
func (s *Service) Clear(w http.ResponseWriter) {
	cookie := s.cookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)

	auth := s.authenticatedCookie("", time.Unix(0, 0))
	auth.MaxAge = -1
	http.SetCookie(w, auth)
}

// List returns a user's sessions, most recently used first (§4.3 List).
func (s *Service) List(ctx context.Context, userID string) ([]*models.Session, error) {
	return s.store.ListSessions(ctx, userID)
}

// Revoke deletes a session by its (user_id, number) public handle (§4.3 Revoke).
func (s *Service) Revoke(ctx context.Context, userID string, number int) error {
	return s.store.RevokeSession(ctx, userID, number)
}

func (s *Service) cookie(value string, expires time.Time) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	return &http.Cookie{
		Name:     s.config.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   s.config.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: sameSite,
	}
}

// authenticatedCookie mirrors cookie but is readable by client-side script
// (no HttpOnly), letting a browser client cheaply check login state without
// a round trip (§6).
func (s *Service) authenticatedCookie(value string, expires time.Time) *http.Cookie {
	c := s.cookie(value, expires)
	c.Name = "authenticated"
	c.HttpOnly = false
	return c
}
