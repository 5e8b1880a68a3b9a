package api

import (
	"time"

	"github.com/vaultd/vaultd/pkg/config"
)

// Config configures the HTTP server's transport-level behavior. The
// listen address/port come from the deployment's config.ServerConfig;
// the read/write/idle timeouts below are internal tuning knobs the donor
// also kept out of user-facing configuration (only RequestTimeout and
// ShutdownTimeout are exposed — §5 names just the one 15s figure).
type Config struct {
	Host string
	Port int

	// ReadTimeout/WriteTimeout/IdleTimeout bound the underlying http.Server's
	// connection handling, distinct from RequestTimeout (enforced per-request
	// by chi's Timeout middleware so long-running uploads can stream within
	// their own renewal).
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// NewConfig derives a Config from the loaded server configuration.
func NewConfig(server config.ServerConfig) Config {
	return Config{
		Host:            server.Host,
		Port:            server.Port,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0, // unbounded: chunked/streamed uploads and downloads
		IdleTimeout:     120 * time.Second,
		RequestTimeout:  server.RequestTimeout,
		ShutdownTimeout: server.ShutdownTimeout,
	}
}
