package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/vaultd/vaultd/pkg/blobstore/fs"
	"github.com/vaultd/vaultd/pkg/session"
	"github.com/vaultd/vaultd/pkg/store"
)

func testDeps(t *testing.T) Dependencies {
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
	return Dependencies{Store: st, Blobs: blobs, Sessions: sessions}
}

func testConfig(port int) Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            port,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     10 * time.Second,
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func startTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	server := NewServer(cfg, testDeps(t))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errChan := make(chan error, 1)
	go func() { errChan <- server.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case <-errChan:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down in time")
		}
	})
	return server
}

func TestServer_Lifecycle(t *testing.T) {
	cfg := testConfig(18080)
	startTestServer(t, cfg)

	resp, err := http.Get(fmt.Sprintf("http://%s:%d/health", cfg.Host, cfg.Port))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestServer_Port(t *testing.T) {
	server := NewServer(testConfig(9999), testDeps(t))
	if server.Port() != 9999 {
		t.Errorf("Port() = %d, want 9999", server.Port())
	}
}

func TestServer_RootRedirectsToHealth(t *testing.T) {
	cfg := testConfig(18082)
	startTestServer(t, cfg)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(fmt.Sprintf("http://%s:%d/", cfg.Host, cfg.Port))
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := resp.Header.Get("Location"); loc != "/health" {
		t.Errorf("Location = %q, want /health", loc)
	}
}

func TestServer_ReadinessHealthy(t *testing.T) {
	cfg := testConfig(18083)
	startTestServer(t, cfg)

	resp, err := http.Get(fmt.Sprintf("http://%s:%d/health/ready", cfg.Host, cfg.Port))
	if err != nil {
		t.Fatalf("GET /health/ready: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
