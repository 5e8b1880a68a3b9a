package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vaultd/vaultd/pkg/store"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults.
//   - Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
	cfg.Database.ApplyDefaults()
	applyStorageDefaults(&cfg.Storage)
	applySessionDefaults(&cfg.Session)
	applyRateLimitDefaults(&cfg.RateLimit)
	applyAdminDefaults(&cfg.Admin)
}

// applyServerDefaults sets server defaults. Port 6969 and the HOST env
// lookup are §6's required defaults, not compile-time constants, so a
// deployment can still override either.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		if host := os.Getenv("HOST"); host != "" {
			cfg.Host = host
		} else {
			cfg.Host = "0.0.0.0"
		}
	}
	if cfg.Port == 0 {
		cfg.Port = 6969
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyStorageDefaults sets blob-store defaults. TempDir colocates with
// DataDir unless S3 is configured, in which case neither applies.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.S3 != nil {
		if cfg.S3.KeyPrefix == "" {
			cfg.S3.KeyPrefix = "vaultd/"
		}
		return
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(defaultDataDir(), "data")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = cfg.DataDir
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}
}

// applySessionDefaults sets Session Layer defaults (§4.3: 30-day idle window).
func applySessionDefaults(cfg *SessionConfig) {
	if cfg.CookieName == "" {
		cfg.CookieName = "session"
	}
	if cfg.IdleDuration == 0 {
		cfg.IdleDuration = 30 * 24 * time.Hour
	}
}

// applyRateLimitDefaults sets the §5/C.4 two-tier limiter defaults.
func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.WriteTier == 0 {
		cfg.WriteTier = 20
	}
	if cfg.GeneralTier == 0 {
		cfg.GeneralTier = 120
	}
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(defaultStateDir(), "ratelimit")
	}
}

// applyAdminDefaults sets bootstrap-admin defaults.
func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
}

// defaultDataDir returns $XDG_DATA_HOME/vaultd, or ~/.local/share/vaultd.
func defaultDataDir() string {
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return filepath.Join(dataDir, "vaultd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "vaultd")
	}
	return filepath.Join(home, ".local", "share", "vaultd")
}

// defaultStateDir returns $XDG_STATE_HOME/vaultd, or ~/.local/state/vaultd.
func defaultStateDir() string {
	if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
		return filepath.Join(stateDir, "vaultd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "vaultd", "state")
	}
	return filepath.Join(home, ".local", "state", "vaultd")
}

// GetDefaultConfig returns a Config struct with all default values applied.
// Useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
