package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/store"
)

type fakeHealthStore struct {
	store.Store
	err error
}

func (f *fakeHealthStore) Healthcheck(ctx context.Context) error { return f.err }

type fakeHealthBlobs struct {
	blobstore.Store
	err error
}

func (f *fakeHealthBlobs) Healthcheck(ctx context.Context) error { return f.err }

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("resp.Status = %q, want healthy", resp.Status)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data = %T, want map", resp.Data)
	}
	if data["service"] != "vaultd" {
		t.Errorf("service = %v, want vaultd", data["service"])
	}
}

func TestReadiness_NilStores_Returns503(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestReadiness_StoreUnhealthy_Returns503(t *testing.T) {
	handler := NewHealthHandler(&fakeHealthStore{err: errors.New("db down")}, &fakeHealthBlobs{})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestReadiness_Healthy_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(&fakeHealthStore{}, &fakeHealthBlobs{})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestStores_ReportsPerStoreHealth(t *testing.T) {
	handler := NewHealthHandler(&fakeHealthStore{err: errors.New("timeout")}, &fakeHealthBlobs{})
	req := httptest.NewRequest(http.MethodGet, "/health/stores", nil)
	w := httptest.NewRecorder()

	handler.Stores(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data = %T, want map", resp.Data)
	}
	metadata, ok := data["metadata"].(map[string]interface{})
	if !ok {
		t.Fatalf("metadata = %T, want map", data["metadata"])
	}
	if metadata["status"] != "unhealthy" {
		t.Errorf("metadata status = %v, want unhealthy", metadata["status"])
	}
	blob, ok := data["blob"].(map[string]interface{})
	if !ok {
		t.Fatalf("blob = %T, want map", data["blob"])
	}
	if blob["status"] != "healthy" {
		t.Errorf("blob status = %v, want healthy", blob["status"])
	}
}
