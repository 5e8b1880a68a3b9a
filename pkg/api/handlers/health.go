package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/store"
)

// HealthCheckTimeout bounds how long a store health check may take before a
// readiness probe gives up and reports unhealthy.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler serves the unauthenticated liveness/readiness/store-health
// endpoints. The store and blobs fields may be nil during early startup, in
// which case readiness and store health report unhealthy rather than panic.
type HealthHandler struct {
	store     store.Store
	blobs     blobstore.Store
	startTime time.Time
}

// NewHealthHandler creates a health handler over the metadata store and blob
// store vaultd is running against.
func NewHealthHandler(st store.Store, blobs blobstore.Store) *HealthHandler {
	return &HealthHandler{store: st, blobs: blobs, startTime: time.Now()}
}

// Liveness handles GET /health: always 200 as long as the process answers.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "vaultd",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready: 200 once both stores are reachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || h.blobs == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("stores not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	if err := h.store.Healthcheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("metadata store: "+err.Error()))
		return
	}
	if err := h.blobs.Healthcheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("blob store: "+err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{"ready": true}))
}

// StoreHealth is the health status of a single backing store.
type StoreHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// StoresResponse is the detailed store-health view returned from /health/stores.
type StoresResponse struct {
	Metadata StoreHealth `json:"metadata"`
	Blob     StoreHealth `json:"blob"`
}

// Stores handles GET /health/stores: per-store healthcheck with latency.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || h.blobs == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("stores not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	allHealthy := true
	resp := StoresResponse{
		Metadata: checkHealth(ctx, "metadata", h.store.Healthcheck),
		Blob:     checkHealth(ctx, "blob", h.blobs.Healthcheck),
	}
	if resp.Metadata.Status != "healthy" || resp.Blob.Status != "healthy" {
		allHealthy = false
	}

	if allHealthy {
		writeJSON(w, http.StatusOK, healthyResponse(resp))
	} else {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(resp))
	}
}

func checkHealth(ctx context.Context, name string, check func(context.Context) error) StoreHealth {
	start := time.Now()
	err := check(ctx)
	latency := time.Since(start)

	health := StoreHealth{Name: name, Latency: latency.String()}
	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
	} else {
		health.Status = "healthy"
	}
	return health
}
