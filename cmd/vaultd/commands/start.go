package commands

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vaultd/vaultd/internal/logger"
	"github.com/vaultd/vaultd/pkg/api"
	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/blobstore/fs"
	"github.com/vaultd/vaultd/pkg/blobstore/s3"
	"github.com/vaultd/vaultd/pkg/config"
	"github.com/vaultd/vaultd/pkg/janitor"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/ratelimit"
	"github.com/vaultd/vaultd/pkg/session"
	"github.com/vaultd/vaultd/pkg/store"
	"github.com/vaultd/vaultd/pkg/user"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the vaultd server",
	Long: `Start the vaultd server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/vaultd/config.yaml.

Examples:
  # Start in background (default)
  vaultd start

  # Start in foreground
  vaultd start --foreground

  # Start with custom config file
  vaultd start --config /etc/vaultd/config.yaml

  # Start with environment variable overrides
  VAULTD_LOGGING_LEVEL=DEBUG vaultd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/vaultd/vaultd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/vaultd/vaultd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("vaultd starting", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize metadata store: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}

	sessions := session.New(st, session.Config{
		CookieName:   cfg.Session.CookieName,
		IdleDuration: cfg.Session.IdleDuration,
		Secure:       cfg.Session.Secure,
		Domain:       cfg.Session.Domain,
	})

	if cfg.Admin.Bootstrap {
		if err := bootstrapAdmin(ctx, st, sessions, blobs, cfg.Admin); err != nil {
			return fmt.Errorf("failed to bootstrap admin account: %w", err)
		}
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		Dir:         cfg.RateLimit.Dir,
		WriteTier:   cfg.RateLimit.WriteTier,
		GeneralTier: cfg.RateLimit.GeneralTier,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	defer func() {
		if err := limiter.Close(); err != nil {
			logger.Error("rate limiter close error", "error", err)
		}
	}()

	j := janitor.New(st, blobs, janitor.Config{})
	j.Start(ctx)
	defer j.Stop()

	server := api.NewServer(api.NewConfig(cfg.Server), api.Dependencies{
		Store:    st,
		Blobs:    blobs,
		Sessions: sessions,
		Limiter:  limiter,
	})

	// Write PID file if specified.
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running", "port", server.Port())
	fmt.Printf("vaultd listening on port %d. Press Ctrl+C to stop.\n", server.Port())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

// newBlobStore builds the Blob Store from cfg.Storage: an S3-backed store
// when S3 is configured, the local filesystem store otherwise.
func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.Storage.S3 != nil {
		return s3.NewFromConfig(ctx, s3.Config{
			Bucket:         cfg.Storage.S3.Bucket,
			Region:         cfg.Storage.S3.Region,
			Endpoint:       cfg.Storage.S3.Endpoint,
			KeyPrefix:      cfg.Storage.S3.KeyPrefix,
			ForcePathStyle: cfg.Storage.S3.ForcePathStyle,
		})
	}

	return fs.New(fs.Config{
		BasePath:  cfg.Storage.DataDir,
		TempPath:  cfg.Storage.TempDir,
		CreateDir: true,
		DirMode:   cfg.Storage.DirMode,
		FileMode:  cfg.Storage.FileMode,
	})
}

// bootstrapAdmin idempotently creates the configured admin account on first
// start. There is no client present at bootstrap time to produce real
// end-to-end key material, so the account is registered with synthetic
// (zero-derived) key-material fields; the admin should rotate their
// password through the normal client flow afterward to receive real,
// client-generated wrapping keys.
func bootstrapAdmin(ctx context.Context, st store.Store, sessions *session.Service, blobs blobstore.Store, cfg config.AdminConfig) error {
	username := cfg.Username
	if username == "" {
		username = "admin"
	}

	if _, err := st.GetUserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return err
	}

	users := user.New(st, sessions, blobs)
	var email *string
	if cfg.Email != "" {
		email = &cfg.Email
	}

	created, err := users.Register(ctx, user.RegisterInput{
		Username:            username,
		Password:            cfg.Password,
		Email:               email,
		PublicKey:           placeholderKeyMaterial(models.PublicKeyLength),
		PrivateKeyIV:        placeholderKeyMaterial(models.NonceLength),
		PrivateKeySalt:      "bootstrap",
		EncryptedPrivateKey: "bootstrap",
		TotalSpace:          10 << 30, // 10 GiB
	})
	if err != nil {
		return err
	}

	if err := st.UpdateProfile(ctx, created.ID, map[string]any{"is_admin": true}); err != nil {
		return err
	}

	logger.Info("admin account created", "username", username)
	fmt.Printf("\n*** Admin account %q created with the configured bootstrap password ***\n", username)
	fmt.Println("Rotate its password through a real client to receive client-generated key material.")
	return nil
}

func placeholderKeyMaterial(length int) string {
	return base64.StdEncoding.EncodeToString(make([]byte, length))
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// startDaemon starts the server as a background daemon process.
func startDaemon() error {
	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("vaultd is already running (PID %d)", pid)
					}
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = logFileHandle.Close()

	fmt.Printf("vaultd started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)

	return nil
}
