// Package cli provides common initialization shared by cmd/fintrack and
// cmd/fintrack-sync.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/api"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs the colored default logger and returns it.
func SetupLogger() *log.Logger {
	return log.Setup()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitMirror opens the local SQLite mirror, running migrations.
// Exits the process on failure.
func InitMirror(logger *log.Logger, dbPath string) *storage.Mirror {
	mirror, err := storage.NewMirror(dbPath)
	if err != nil {
		logger.Error("Failed to open local mirror", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return mirror
}

// NewAPIClient wires the credential store, the authenticated session and the
// API client together. onExpired runs when the refresh protocol gives up.
func NewAPIClient(logger *log.Logger, cfg *config.Config, onExpired func()) (*api.Client, error) {
	store, err := session.NewFileStore(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	sess := session.NewClient(cfg.APIBaseURL, store,
		session.WithTimeout(cfg.RequestTimeout),
		session.WithLogger(logger),
		session.WithOnSessionExpired(onExpired),
	)
	return api.NewClient(sess), nil
}

// GracefulShutdown returns a context cancelled on SIGINT/SIGTERM.
func GracefulShutdown(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received",
			log.FieldOperation, log.OpShutdown,
			"signal", sig.String())
		cancel()

		// A second signal kills the process immediately.
		<-sigChan
		logger.Warn("Forced shutdown")
		os.Exit(1)
	}()

	return ctx, cancel
}

// CommandContext returns a context with the configured request timeout for a
// single one-shot CLI command.
func CommandContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cfg.RequestTimeout+5*time.Second)
}
