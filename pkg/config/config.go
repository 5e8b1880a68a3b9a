// Package config loads and validates vaultd's static configuration: the
// server, database, storage, session, rate-limit, and admin-bootstrap
// settings a deployment supplies via file, environment, or default values.
// Dynamic state (users, files, shares) lives in the Metadata Store, not here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vaultd/vaultd/internal/bytesize"
	"github.com/vaultd/vaultd/pkg/store"
)

// Config represents vaultd's configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (VAULTD_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Server controls the HTTP listener.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Database configures the Metadata Store (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Storage configures the Blob Store: local filesystem paths, or S3.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Session configures the session cookie and idle-expiry window (§4.3).
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// RateLimit configures the two-tier request limiter (§5, C.4).
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// Metrics controls Prometheus metrics collection.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Admin configures bootstrap admin account creation (C.2).
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Host is the address to listen on. Override: HOST (bare, no VAULTD_
	// prefix, per §6) or VAULTD_SERVER_HOST.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the listening port. Default: 6969 (§6).
	Port int `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// RequestTimeout bounds a single request (§5: 15s at the transport layer).
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0" yaml:"request_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// StorageConfig configures the Blob Store (§4.2, §6 persisted state layout).
type StorageConfig struct {
	// DataDir holds durable blobs: uploads/{file_id}, avatars/{user_id}.{ext}.
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`

	// TempDir holds transaction staging: transactions/{tx}/{i}. Defaults to
	// DataDir when empty, colocating staging with durable blobs.
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir,omitempty"`

	// DirMode is the permission mode for created directories. Default: 0755.
	DirMode os.FileMode `mapstructure:"dir_mode" yaml:"dir_mode,omitempty"`

	// FileMode is the permission mode for created files. Default: 0644.
	FileMode os.FileMode `mapstructure:"file_mode" yaml:"file_mode,omitempty"`

	// S3, when non-nil, selects an S3-backed blob store instead of the local
	// filesystem. DataDir/TempDir are ignored when S3 is set.
	S3 *StorageS3Config `mapstructure:"s3" yaml:"s3,omitempty"`
}

// StorageS3Config configures the S3-backed blob store alternative.
type StorageS3Config struct {
	Bucket         string `mapstructure:"bucket" validate:"required" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// SessionConfig configures the Session Layer (§4.3).
type SessionConfig struct {
	// CookieName is the HTTP-only cookie carrying the session id.
	CookieName string `mapstructure:"cookie_name" yaml:"cookie_name"`

	// IdleDuration is how long a session survives without activity.
	IdleDuration time.Duration `mapstructure:"idle_duration" validate:"required,gt=0" yaml:"idle_duration"`

	// Secure sets the cookie's Secure flag. Should be true in production.
	Secure bool `mapstructure:"secure" yaml:"secure"`

	// Domain scopes the cookie; empty for host-only.
	Domain string `mapstructure:"domain" yaml:"domain,omitempty"`
}

// RateLimitConfig configures the two-tier request limiter (§5, C.4).
type RateLimitConfig struct {
	// Dir is the badger directory for persistent counters. ApplyDefaults
	// fills an empty value with a "ratelimit" subdirectory of the vaultd
	// state directory.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`

	// WriteTier is the per-caller limit, requests/minute, for write/upload
	// endpoints. Default: 20.
	WriteTier int `mapstructure:"write_tier" validate:"omitempty,gt=0" yaml:"write_tier"`

	// GeneralTier is the per-caller limit, requests/minute, for everything
	// else. Default: 120.
	GeneralTier int `mapstructure:"general_tier" validate:"omitempty,gt=0" yaml:"general_tier"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active (zero overhead
	// when false).
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AdminConfig configures bootstrap admin account creation (C.2).
type AdminConfig struct {
	// Bootstrap enables idempotent admin-account creation at startup: if no
	// account with Username exists, one is created; an existing account is
	// never overwritten.
	Bootstrap bool `mapstructure:"bootstrap" yaml:"bootstrap"`

	// Username is the bootstrap admin's username. Default: "admin".
	Username string `mapstructure:"username" validate:"omitempty,min=3" yaml:"username"`

	// Password is the bootstrap admin's initial password. Required when
	// Bootstrap is true; since there is no client present to generate key
	// material, the account is created with zero-filled placeholder key
	// material (see bootstrapAdmin in cmd/vaultd/commands) — the admin
	// should rotate credentials via the UI afterward.
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// Email is the bootstrap admin's email address (optional).
	Email string `mapstructure:"email" yaml:"email,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VAULTD_*, plus bare HOST for Server.Host)
//  2. Configuration file
//  3. Default values
//
// When no configuration file is found, Load returns GetDefaultConfig()
// as is: VAULTD_* variables are not read in that case, only the bare HOST
// variable through the server defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when no config
// file exists at the resolved path.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  vaultd init\n\n"+
				"Or specify a custom config file:\n"+
				"  vaultd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  vaultd init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: config may carry the bootstrap admin password.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variable and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// VAULTD_* env vars override config keys; §6 additionally names a bare
	// HOST var for Server.Host, bound explicitly below.
	v.SetEnvPrefix("VAULTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("server.host", "HOST", "VAULTD_SERVER_HOST")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// enabling human-readable sizes like "1Gi", "500Mi", "100MB".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, enabling
// human-readable durations like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vaultd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "vaultd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}

// validate is the shared struct-tag validator instance.
var validate = validator.New()

// Validate checks a loaded configuration for consistency beyond what struct
// tags express: rate-limit tiers must be positive (also tagged, kept here
// for a clearer error message), storage paths must be absolute, and the
// database/storage sub-configs validate themselves.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Storage.S3 == nil {
		if !filepath.IsAbs(cfg.Storage.DataDir) {
			return fmt.Errorf("storage.data_dir must be an absolute path: %q", cfg.Storage.DataDir)
		}
		if !filepath.IsAbs(cfg.Storage.TempDir) {
			return fmt.Errorf("storage.temp_dir must be an absolute path: %q", cfg.Storage.TempDir)
		}
	}

	if cfg.RateLimit.WriteTier <= 0 {
		return fmt.Errorf("rate_limit.write_tier must be positive")
	}
	if cfg.RateLimit.GeneralTier <= 0 {
		return fmt.Errorf("rate_limit.general_tier must be positive")
	}

	if cfg.Admin.Bootstrap && cfg.Admin.Password == "" {
		return fmt.Errorf("admin.password is required when admin.bootstrap is true")
	}

	return nil
}
