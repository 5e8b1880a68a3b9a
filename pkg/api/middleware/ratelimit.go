package middleware

import (
	"net/http"

	"github.com/vaultd/vaultd/pkg/ratelimit"
)

// RateLimit builds the §5 two-tier request limiter as chi middleware, keyed
// on the caller's session cookie when present (falling back to remote
// address for anonymous upload/share traffic, which still needs limiting).
// limiter may be nil, in which case the returned middleware is a no-op
// passthrough.
func RateLimit(limiter *ratelimit.Limiter, cookieName string, tier ratelimit.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(tier, callerKey(r, cookieName))
			if err != nil {
				writeInternalError(w)
				return
			}
			if !allowed {
				writeTooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil {
		return "sess:" + cookie.Value
	}
	return "ip:" + r.RemoteAddr
}

func writeTooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"title":"Too Many Requests","status":429}`))
}

func writeInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"title":"Internal Server Error","status":500}`))
}
