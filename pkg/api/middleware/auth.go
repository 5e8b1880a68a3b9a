// Package middleware holds chi middleware shared across the API router.
package middleware

import (
	"context"
	"net/http"

	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/session"
	"github.com/vaultd/vaultd/pkg/store"
)

type contextKey string

const userContextKey contextKey = "user"
const sessionContextKey contextKey = "session"

// GetUserFromContext returns the authenticated user injected by SessionAuth
// or OptionalSessionAuth, or nil if the request carries none.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionFromContext returns the session row validated for this request.
func GetSessionFromContext(ctx context.Context) *models.Session {
	sess, ok := ctx.Value(sessionContextKey).(*models.Session)
	if !ok {
		return nil
	}
	return sess
}

// Auth builds session-cookie authentication middleware backed by svc and
// userStore. On success it injects the resolved user and session into the
// request context; on failure it clears the session cookie and writes a 401.
type Auth struct {
	svc       *session.Service
	userStore store.UserStore
}

// NewAuth creates an Auth middleware builder.
func NewAuth(svc *session.Service, userStore store.UserStore) *Auth {
	return &Auth{svc: svc, userStore: userStore}
}

// Required rejects any request without a valid, unexpired session cookie.
func (a *Auth) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, user, err := a.resolve(r)
		if err != nil {
			a.svc.Clear(w)
			writeUnauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		ctx = context.WithValue(ctx, userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the caller's session and user when a valid cookie is
// present, but lets anonymous requests through — used by routes that accept
// both owner access and anonymous link access (§D(a)).
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, user, err := a.resolve(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		ctx = context.WithValue(ctx, userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects any request whose session user is not an admin. Must
// run after Required.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil || !user.IsAdmin {
			writeForbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Auth) resolve(r *http.Request) (*models.Session, *models.User, error) {
	sess, err := a.svc.Validate(r.Context(), r)
	if err != nil {
		return nil, nil, err
	}
	user, err := a.userStore.GetUserByID(r.Context(), sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	return sess, user, nil
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401}`))
}

func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"title":"Forbidden","status":403}`))
}
