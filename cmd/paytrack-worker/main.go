package main

import (
	"context"
	"os"
	"time"

	"paytrack/internal/amqp"
	"paytrack/internal/cli"
	"paytrack/internal/log"
	"paytrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting paytrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	pub := cli.InitPublishing(context.Background(), logger, cfg)
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Warn("Failed to close publishers", log.FieldError, err)
		}
	}()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// The worker owns publishing, so its service never emits events itself.
	svc, _ := cli.NewLedgerService(cfg, repo, pub, nil, logger)
	w := worker.NewPublishWorker(svc, amqpClient, cfg.RepublishSchedule, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	if err := w.Run(ctx); err != nil {
		logger.Error("Publish worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
