// Command paytrack-import moves the ledger between legacy CSV files and the
// SQLite store.
//
//	paytrack-import import -payments payments.csv -people people.csv -expenses client_expenses.csv
//	paytrack-import export -dir ./backup
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"paytrack/internal/amqp"
	"paytrack/internal/cli"
	"paytrack/internal/config"
	"paytrack/internal/core"
	"paytrack/internal/csvio"
	"paytrack/internal/log"
	"paytrack/internal/services"
	"paytrack/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentImport)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(ctx, logger, cfg, repo, os.Args[2:])
	case "export":
		err = runExport(ctx, logger, cfg, repo, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", log.FieldOperation, os.Args[1], log.FieldError, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: paytrack-import import|export [flags]")
}

func runImport(ctx context.Context, logger *log.Logger, cfg *config.Config, repo *storage.SQLiteRepository, args []string) error {
	fset := flag.NewFlagSet("import", flag.ExitOnError)
	paymentsPath := fset.String("payments", "payments.csv", "payments ledger CSV")
	peoplePath := fset.String("people", "people.csv", "person directory CSV")
	expensesPath := fset.String("expenses", "client_expenses.csv", "client expenses CSV")
	noPublish := fset.Bool("no-publish", false, "skip publishing the summary after import")
	if err := fset.Parse(args); err != nil {
		return err
	}

	txns, err := readOptional(logger, *paymentsPath, csvio.ReadTransactions)
	if err != nil {
		return err
	}
	people, err := readOptional(logger, *peoplePath, csvio.ReadPeople)
	if err != nil {
		return err
	}
	expenses, err := readOptional(logger, *expensesPath, csvio.ReadClientExpenses)
	if err != nil {
		return err
	}

	if err := repo.ReplaceAll(ctx, txns, uniquePeople(people), expenses); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	logger.Info("Import complete",
		log.FieldOperation, log.OpImport,
		"transactions", len(txns),
		"people", len(people),
		"client_expenses", len(expenses))

	if *noPublish {
		return nil
	}
	return publishAfterImport(ctx, logger, cfg, repo)
}

// publishAfterImport follows the configured publish mode: queue mode hands the
// work to the worker, inline mode publishes here.
func publishAfterImport(ctx context.Context, logger *log.Logger, cfg *config.Config, repo *storage.SQLiteRepository) error {
	var pub cli.Publishing
	var events services.EventEmitter
	if cfg.PublishMode == config.PublishQueue {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("connect AMQP: %w", err)
		}
		defer client.Close()
		events = client
	} else {
		pub = cli.InitPublishing(ctx, logger, cfg)
		defer func() { _ = pub.Close() }()
	}

	svc, _ := cli.NewLedgerService(cfg, repo, pub, events, logger)
	res := svc.Republish(ctx, services.ReasonImport)
	for _, w := range res.Warnings {
		logger.Warn("Publish after import incomplete", log.FieldReason, services.ReasonImport, "warning", w)
	}
	if len(res.Warnings) > 0 {
		return errors.New("ledger imported but the summary was not fully published")
	}
	return nil
}

func runExport(ctx context.Context, logger *log.Logger, cfg *config.Config, repo *storage.SQLiteRepository, args []string) error {
	fset := flag.NewFlagSet("export", flag.ExitOnError)
	dir := fset.String("dir", ".", "output directory")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	svc, _ := cli.NewLedgerService(cfg, repo, cli.Publishing{}, nil, logger)
	all, err := svc.Load(ctx)
	if err != nil {
		return err
	}

	if err := csvio.WriteTransactions(filepath.Join(*dir, "payments.csv"), all.Transactions); err != nil {
		return err
	}
	if err := csvio.WritePeople(filepath.Join(*dir, "people.csv"), all.People); err != nil {
		return err
	}
	if err := csvio.WriteClientExpenses(filepath.Join(*dir, "client_expenses.csv"), all.Expenses); err != nil {
		return err
	}
	logger.Info("Export complete",
		log.FieldOperation, log.OpExport,
		"dir", *dir,
		"transactions", len(all.Transactions),
		"people", len(all.People),
		"client_expenses", len(all.Expenses))
	return nil
}

// readOptional reads path with read; a missing file yields no records.
func readOptional[T any](logger *log.Logger, path string, read func(string) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	records, err := read(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("Skipping missing file", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// uniquePeople keeps the first entry for each name.
func uniquePeople(people []core.Person) []core.Person {
	seen := make(map[string]bool, len(people))
	out := make([]core.Person, 0, len(people))
	for _, p := range people {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out
}
