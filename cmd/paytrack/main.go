package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"paytrack/internal/amqp"
	"paytrack/internal/cache"
	"paytrack/internal/cli"
	"paytrack/internal/config"
	apphttp "paytrack/internal/http"
	"paytrack/internal/log"
	"paytrack/internal/middleware/ratelimit"
	"paytrack/internal/services"
	"paytrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Publishers are only needed here when this process publishes itself.
	var pub cli.Publishing
	var events services.EventEmitter
	var amqpClient *amqp.Client
	switch cfg.PublishMode {
	case config.PublishQueue:
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client",
				log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
			os.Exit(1)
		}
		defer amqpClient.Close()
		events = amqpClient
	default:
		pub = cli.InitPublishing(context.Background(), logger, cfg)
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn("Failed to close publishers", log.FieldError, err)
			}
		}()
	}

	svc, summaries := cli.NewLedgerService(cfg, repo, pub, events, logger)

	janitor := cache.NewJanitor(summaries)
	janitor.Start(10 * time.Minute)
	defer janitor.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Ledger:    svc,
		Pinger:    repo,
		Logger:    logger,
		Title:     cfg.SummaryTitle,
		Currency:  cfg.CurrencySymbol,
		RateLimit: ratelimit.DefaultConfig(),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		m := srv.Metrics()
		logger.Info("Request totals", "requests", m.TotalRequests, "failed", m.FailedRequests)
	})

	// Inline mode runs the scheduled republish in-process.
	if cfg.PublishMode != config.PublishQueue && cfg.RepublishSchedule != "" {
		w := worker.NewPublishWorker(svc, nil, cfg.RepublishSchedule, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("Scheduled republish stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting paytrack server",
		"port", cfg.Port,
		"publish_mode", cfg.PublishMode,
		"targets", cfg.PublishTargets)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
