package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vaultd/vaultd/internal/logger"
	"github.com/vaultd/vaultd/pkg/api/handlers"
	apiMiddleware "github.com/vaultd/vaultd/pkg/api/middleware"
	"github.com/vaultd/vaultd/pkg/ratelimit"
	"github.com/vaultd/vaultd/pkg/share"
	"github.com/vaultd/vaultd/pkg/upload"
	"github.com/vaultd/vaultd/pkg/user"
)

// NewRouter builds the chi router exposing §6's external interface: the
// unauthenticated health probes, and the /api surface split between the
// session-cookie account lifecycle, the directory, the upload pipeline, the
// owner-scoped tree, the share engine, and session management.
//
// The middleware stack mirrors a conventional chi service: request id, real
// IP extraction, structured request logging, panic recovery, and a
// per-request timeout bounding the transport layer's patience (§5's 15s
// figure) independent of the underlying http.Server's connection timeouts.
func NewRouter(cfg Config, deps Dependencies, users *user.Service, shares *share.Service, uploads *upload.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(cfg)))

	auth := apiMiddleware.NewAuth(deps.Sessions, deps.Store)

	writeLimit := apiMiddleware.RateLimit(deps.Limiter, deps.Sessions.CookieName(), ratelimit.TierWrite)
	generalLimit := apiMiddleware.RateLimit(deps.Limiter, deps.Sessions.CookieName(), ratelimit.TierGeneral)

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Blobs)
	authHandler := handlers.NewAuthHandler(users, deps.Sessions)
	userHandler := handlers.NewUserHandler(users, deps.Store)
	uploadHandler := handlers.NewUploadHandler(uploads)
	fileHandler := handlers.NewFileHandler(uploads, deps.Store, deps.Blobs)
	shareHandler := handlers.NewShareHandler(shares, deps.Store)
	sessionHandler := handlers.NewSessionHandler(deps.Sessions)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(generalLimit)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Required)
			r.Use(generalLimit)
			r.Post("/logout", authHandler.Logout)
			r.Get("/profile", authHandler.Profile)
			r.Put("/profile", authHandler.UpdateProfile)
			r.Put("/totp", authHandler.UpdateTOTP)
			r.Get("/users/search/{query}", userHandler.Search)
			r.Get("/user/{id}", userHandler.Get)
			r.Get("/sessions", sessionHandler.List)
			r.Delete("/session/{number}", sessionHandler.Revoke)

			r.Get("/file", fileHandler.Get)
			r.Get("/shared/{file}/links", shareHandler.Links)
			r.Get("/shared/{file}/users", shareHandler.Users)
			r.Get("/shared", shareHandler.Shared)

			r.Post("/share", shareHandler.Create)
			r.Put("/share", shareHandler.Update)
			r.Delete("/share", shareHandler.Revoke)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Required)
			r.Use(writeLimit)
			r.Put("/profile/upload", userHandler.UploadAvatar)
		})

		// Upload, file mutation, and file-data endpoints accept an
		// anonymous or link-credentialed caller (§4.4), so authentication
		// is optional here — the Authorization Engine decides access.
		r.Group(func(r chi.Router) {
			r.Use(auth.Optional)
			r.Use(writeLimit)
			r.Post("/upload", uploadHandler.Upload)
			r.Post("/upload/chunked", uploadHandler.StartChunked)
			r.Post("/upload/{tx}/chunk/{i}", uploadHandler.UploadChunk)
			r.Post("/upload/finalize/{tx}", uploadHandler.Finalize)
			r.Put("/file/{id}", fileHandler.Update)
			r.Delete("/file/{id}", fileHandler.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Optional)
			r.Use(generalLimit)
			r.Get("/file/data/{id}", fileHandler.Data)
			r.Post("/shared/{link}", shareHandler.ConsumeLink)
			r.Get("/shared/{link}", shareHandler.LinkInfo)
		})
	})

	return r
}

func requestTimeout(cfg Config) time.Duration {
	if cfg.RequestTimeout > 0 {
		return cfg.RequestTimeout
	}
	return 15 * time.Second
}

// isHealthPath reports whether path is a healthcheck endpoint, so
// requestLogger can log it at DEBUG instead of INFO.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs every request's start (DEBUG) and completion
// (INFO, or DEBUG for healthchecks) with the chi request id, method,
// path, status, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
