// Package cli holds the bootstrap steps shared by cmd/paytrack,
// cmd/paytrack-worker and cmd/paytrack-import.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"paytrack/internal/cache"
	"paytrack/internal/config"
	"paytrack/internal/core"
	"paytrack/internal/log"
	"paytrack/internal/publish"
	"paytrack/internal/report"
	"paytrack/internal/services"
	"paytrack/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		cfg.Level = lvl
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		cfg.Format = "json"
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and exits on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the ledger database, running migrations. Exits on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// Publishing is the render-and-publish side of a LedgerService.
type Publishing struct {
	Renderer  *report.Renderer
	Publisher *publish.Multi
	Close     func() error
}

// InitPublishing builds the renderer and the configured publish targets.
// Exits on failure.
func InitPublishing(ctx context.Context, logger *log.Logger, cfg *config.Config) Publishing {
	renderer, err := report.NewRenderer(cfg.SummaryTitle, cfg.CurrencySymbol)
	if err != nil {
		logger.Error("Failed to parse summary template",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	opts, err := publish.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid publish configuration", log.FieldError, err)
		os.Exit(1)
	}
	multi, closeFn, err := publish.Build(ctx, opts)
	if err != nil {
		_ = closeFn()
		logger.Error("Failed to initialize publishers",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return Publishing{Renderer: renderer, Publisher: multi, Close: closeFn}
}

// NewLedgerService wires a service for repo. events may be nil for inline
// publishing.
func NewLedgerService(cfg *config.Config, repo *storage.SQLiteRepository, pub Publishing, events services.EventEmitter, logger *log.Logger) (*services.LedgerService, *cache.LRUCache[core.Summary]) {
	summaries := cache.NewLRUCache[core.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	opts := services.Options{
		Renderer:     pub.Renderer,
		Summaries:    summaries,
		ArtifactName: artifactName(cfg),
		Logger:       logger,
	}
	if pub.Publisher != nil {
		opts.Publisher = pub.Publisher
	}
	if events != nil {
		opts.Events = events
	}
	return services.NewLedgerService(repo, opts), summaries
}

func artifactName(cfg *config.Config) string {
	if cfg.S3Key != "" {
		return cfg.S3Key
	}
	return "index.html"
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout; done closes once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the signal context is cancelled and cleanup
// has finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
