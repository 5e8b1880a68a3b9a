package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig writes a sample configuration file to the default XDG config
// path. Fails if a config file already exists there unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path. Fails if a
// file already exists there unless force is true.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// sampleConfig returns a commented YAML template built from GetDefaultConfig,
// so every value in the template matches what the server would actually run
// with if the field were omitted.
func sampleConfig() string {
	cfg := GetDefaultConfig()

	return fmt.Sprintf(`# vaultd configuration file
#
# All values shown are the built-in defaults; uncomment and edit what you
# need to change. Every key can also be set via a VAULTD_<SECTION>_<KEY>
# environment variable (e.g. VAULTD_SERVER_PORT), which takes precedence
# over this file. Server.Host additionally honors a bare HOST variable.

server:
  host: %q
  port: %d
  shutdown_timeout: %s
  request_timeout: %s

logging:
  level: %q
  format: %q
  output: %q

database:
  type: %q
  sqlite:
    path: %q
  # postgres:
  #   host: localhost
  #   port: 5432
  #   database: vaultd
  #   user: vaultd
  #   password: ""
  #   ssl_mode: disable

storage:
  data_dir: %q
  temp_dir: %q
  # s3:
  #   bucket: my-bucket
  #   region: us-east-1
  #   key_prefix: vaultd/

session:
  cookie_name: %q
  idle_duration: %s
  secure: %t

rate_limit:
  dir: %q
  write_tier: %d
  general_tier: %d

metrics:
  enabled: %t

admin:
  bootstrap: %t
  username: %q
  # password: "" # required when bootstrap is true
  # email: ""
`,
		cfg.Server.Host, cfg.Server.Port, cfg.Server.ShutdownTimeout, cfg.Server.RequestTimeout,
		cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output,
		cfg.Database.Type, cfg.Database.SQLite.Path,
		cfg.Storage.DataDir, cfg.Storage.TempDir,
		cfg.Session.CookieName, cfg.Session.IdleDuration, cfg.Session.Secure,
		cfg.RateLimit.Dir, cfg.RateLimit.WriteTier, cfg.RateLimit.GeneralTier,
		cfg.Metrics.Enabled,
		cfg.Admin.Bootstrap, cfg.Admin.Username,
	)
}
