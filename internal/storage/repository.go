package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"paytrack/internal/core"
	"paytrack/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection keeps every mutation serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withTx runs fn inside one SQL transaction and commits only when fn succeeds.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, date, person, amount, type, transaction_status, description,
	payment_method, reference_number, cheque_status`

// LoadTransactionRows returns every stored transaction as an untyped row, in
// insertion order. Rows are passed through the normalizer by the caller.
func (r *SQLiteRepository) LoadTransactionRows(ctx context.Context) ([]ledger.RawRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.RawRow
	for rows.Next() {
		var (
			id                                             int64
			date, person, amount, typ, status, description string
			method, reference, chequeStatus                string
		)
		if err := rows.Scan(&id, &date, &person, &amount, &typ, &status, &description,
			&method, &reference, &chequeStatus); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, ledger.RawRow{
			ledger.ColID:                id,
			ledger.ColDate:              date,
			ledger.ColPerson:            person,
			ledger.ColAmount:            amount,
			ledger.ColType:              typ,
			ledger.ColTransactionStatus: status,
			ledger.ColDescription:       description,
			ledger.ColPaymentMethod:     method,
			ledger.ColReferenceNumber:   reference,
			ledger.ColChequeStatus:      chequeStatus,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// GetTransaction returns one normalized transaction.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	var (
		date, person, amount, typ, status, description string
		method, reference, chequeStatus                string
	)
	err := row.Scan(&id, &date, &person, &amount, &typ, &status, &description, &method, &reference, &chequeStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	t, _ := ledger.NormalizeTransaction(ledger.RawRow{
		ledger.ColID: id, ledger.ColDate: date, ledger.ColPerson: person, ledger.ColAmount: amount,
		ledger.ColType: typ, ledger.ColTransactionStatus: status, ledger.ColDescription: description,
		ledger.ColPaymentMethod: method, ledger.ColReferenceNumber: reference, ledger.ColChequeStatus: chequeStatus,
	})
	return t, nil
}

// InsertTransaction stores t and returns its row id. A non-empty reference number
// already used by another transaction is rejected with core.ErrDuplicate.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureReferenceFree(ctx, tx, t.Reference, 0); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO transactions
			(date, person, amount, type, transaction_status, description, payment_method, reference_number, cheque_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Date.String(), t.Person, t.Amount.StringFixed(2), string(t.Direction), string(t.Status),
			t.Description, string(t.Method), t.Reference, string(t.ChequeStatus))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"transaction_id", id,
		"counterparty", t.Person,
		"amount", t.Amount.StringFixed(2),
		"direction", string(t.Direction))
	return id, nil
}

// UpdateTransaction overwrites the stored row with id t.ID.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureReferenceFree(ctx, tx, t.Reference, t.ID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE transactions SET
			date = ?, person = ?, amount = ?, type = ?, transaction_status = ?, description = ?,
			payment_method = ?, reference_number = ?, cheque_status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			t.Date.String(), t.Person, t.Amount.StringFixed(2), string(t.Direction), string(t.Status),
			t.Description, string(t.Method), t.Reference, string(t.ChequeStatus), t.ID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return requireAffected(res, fmt.Sprintf("transaction %d", t.ID))
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction updated", "transaction_id", t.ID)
	return nil
}

// DeleteTransaction hard-deletes one transaction.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err := requireAffected(res, fmt.Sprintf("transaction %d", id)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id)
	return nil
}

func ensureReferenceFree(ctx context.Context, tx *sql.Tx, reference string, excludeID int64) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil
	}
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE reference_number = ? COLLATE NOCASE AND id <> ?`,
		reference, excludeID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check reference number: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("reference number %q already recorded: %w", reference, core.ErrDuplicate)
	}
	return nil
}

// LoadPeopleRows returns the person directory as untyped rows, ordered by name.
func (r *SQLiteRepository) LoadPeopleRows(ctx context.Context) ([]ledger.RawRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, category FROM people ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	var out []ledger.RawRow
	for rows.Next() {
		var name, category string
		if err := rows.Scan(&name, &category); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, ledger.RawRow{ledger.ColName: name, ledger.ColCategory: category})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return out, nil
}

// InsertPerson adds p to the directory. An existing name yields core.ErrDuplicate.
func (r *SQLiteRepository) InsertPerson(ctx context.Context, p core.Person) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM people WHERE name = ?`, p.Name).Scan(&n); err != nil {
			return fmt.Errorf("check person: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("person %q already exists: %w", p.Name, core.ErrDuplicate)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO people (name, category) VALUES (?, ?)`, p.Name, p.Category); err != nil {
			return fmt.Errorf("insert person: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Person saved to SQLite", "counterparty", p.Name, "category", p.Category)
	return nil
}

// DeletePerson removes a person. Deletion is refused with core.ErrInUse while any
// transaction or client expense still names them.
func (r *SQLiteRepository) DeletePerson(ctx context.Context, name string) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var refs int
		err := tx.QueryRowContext(ctx, `SELECT
			(SELECT COUNT(*) FROM transactions WHERE person = ?) +
			(SELECT COUNT(*) FROM client_expenses WHERE expense_person = ?)`, name, name).Scan(&refs)
		if err != nil {
			return fmt.Errorf("check person references: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("person %q has %d recorded entries: %w", name, refs, core.ErrInUse)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM people WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		return requireAffected(res, fmt.Sprintf("person %q", name))
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Person deleted", "counterparty", name)
	return nil
}

// LoadClientExpenseRows returns every client expense as an untyped row.
func (r *SQLiteRepository) LoadClientExpenseRows(ctx context.Context) ([]ledger.RawRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, expense_date, expense_person, expense_category,
		expense_amount, expense_quantity, expense_description FROM client_expenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query client expenses: %w", err)
	}
	defer rows.Close()

	var out []ledger.RawRow
	for rows.Next() {
		var (
			id, quantity                                 int64
			date, person, category, amount, description string
		)
		if err := rows.Scan(&id, &date, &person, &category, &amount, &quantity, &description); err != nil {
			return nil, fmt.Errorf("scan client expense: %w", err)
		}
		out = append(out, ledger.RawRow{
			ledger.ColExpenseID:          id,
			ledger.ColExpenseDate:        date,
			ledger.ColExpensePerson:      person,
			ledger.ColExpenseCategory:    category,
			ledger.ColExpenseAmount:      amount,
			ledger.ColExpenseQuantity:    strconv.FormatInt(quantity, 10),
			ledger.ColExpenseDescription: description,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client expenses: %w", err)
	}
	return out, nil
}

// InsertClientExpense stores e and returns its row id.
func (r *SQLiteRepository) InsertClientExpense(ctx context.Context, e core.ClientExpense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO client_expenses
		(expense_date, expense_person, expense_category, expense_amount, expense_quantity, expense_description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Date.String(), e.Client, e.Category, e.Amount.StringFixed(2), e.Quantity, e.Description)
	if err != nil {
		return 0, fmt.Errorf("insert client expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("client expense id: %w", err)
	}

	slog.InfoContext(ctx, "Client expense saved to SQLite",
		"expense_id", id,
		"counterparty", e.Client,
		"amount", e.Total().StringFixed(2))
	return id, nil
}

// DeleteClientExpense hard-deletes one client expense.
func (r *SQLiteRepository) DeleteClientExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM client_expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete client expense: %w", err)
	}
	if err := requireAffected(res, fmt.Sprintf("client expense %d", id)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Client expense deleted", "expense_id", id)
	return nil
}

// ReplaceAll swaps the whole ledger for the given records in one transaction.
// It backs the legacy CSV import.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, txns []core.Transaction, people []core.Person, expenses []core.ClientExpense) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"transactions", "people", "client_expenses"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for _, t := range txns {
			if _, err := tx.ExecContext(ctx, `INSERT INTO transactions
				(date, person, amount, type, transaction_status, description, payment_method, reference_number, cheque_status)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.Date.String(), t.Person, t.Amount.StringFixed(2), string(t.Direction), string(t.Status),
				t.Description, string(t.Method), t.Reference, string(t.ChequeStatus)); err != nil {
				return fmt.Errorf("import transaction: %w", err)
			}
		}
		for _, p := range people {
			if _, err := tx.ExecContext(ctx, `INSERT INTO people (name, category) VALUES (?, ?)`, p.Name, p.Category); err != nil {
				return fmt.Errorf("import person %q: %w", p.Name, err)
			}
		}
		for _, e := range expenses {
			if _, err := tx.ExecContext(ctx, `INSERT INTO client_expenses
				(expense_date, expense_person, expense_category, expense_amount, expense_quantity, expense_description)
				VALUES (?, ?, ?, ?, ?, ?)`,
				e.Date.String(), e.Client, e.Category, e.Amount.StringFixed(2), e.Quantity, e.Description); err != nil {
				return fmt.Errorf("import client expense: %w", err)
			}
		}
		slog.InfoContext(ctx, "Ledger imported",
			"transactions", len(txns), "people", len(people), "client_expenses", len(expenses))
		return nil
	})
}

// PublishRun records the outcome of publishing the summary to one target.
type PublishRun struct {
	RunID      string
	Reason     string
	Target     string
	Err        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the run succeeded.
func (p PublishRun) OK() bool { return p.Err == "" }

// RecordPublishRuns appends publish outcomes.
func (r *SQLiteRepository) RecordPublishRuns(ctx context.Context, runs []PublishRun) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, run := range runs {
			status := "ok"
			if !run.OK() {
				status = "failed"
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO publish_runs
				(run_id, reason, target, status, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.RunID, run.Reason, run.Target, status, run.Err,
				run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("record publish run: %w", err)
			}
		}
		return nil
	})
}

// RecentPublishRuns returns the latest publish outcomes, newest first.
func (r *SQLiteRepository) RecentPublishRuns(ctx context.Context, limit int) ([]PublishRun, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT run_id, reason, target, error, started_at, finished_at
		FROM publish_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query publish runs: %w", err)
	}
	defer rows.Close()

	var out []PublishRun
	for rows.Next() {
		var run PublishRun
		var started, finished string
		if err := rows.Scan(&run.RunID, &run.Reason, &run.Target, &run.Err, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan publish run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publish runs: %w", err)
	}
	return out, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}
