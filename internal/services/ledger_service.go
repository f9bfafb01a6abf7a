// Package services coordinates ledger mutations with summary regeneration and
// publishing.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"paytrack/internal/cache"
	"paytrack/internal/core"
	"paytrack/internal/ledger"
	"paytrack/internal/log"
	"paytrack/internal/publish"
	"paytrack/internal/report"
	"paytrack/internal/storage"
)

// Mutation reasons carried on change events and publish runs.
const (
	ReasonTransactionAdded     = "transaction_added"
	ReasonTransactionUpdated   = "transaction_updated"
	ReasonTransactionDeleted   = "transaction_deleted"
	ReasonPersonAdded          = "person_added"
	ReasonPersonDeleted        = "person_deleted"
	ReasonClientExpenseAdded   = "client_expense_added"
	ReasonClientExpenseDeleted = "client_expense_deleted"
	ReasonManual               = "manual"
	ReasonScheduled            = "scheduled"
	ReasonImport               = "import"
)

// Repository is the storage the service reads and mutates.
type Repository interface {
	LoadTransactionRows(ctx context.Context) ([]ledger.RawRow, error)
	LoadPeopleRows(ctx context.Context) ([]ledger.RawRow, error)
	LoadClientExpenseRows(ctx context.Context) ([]ledger.RawRow, error)

	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error

	InsertPerson(ctx context.Context, p core.Person) error
	DeletePerson(ctx context.Context, name string) error

	InsertClientExpense(ctx context.Context, e core.ClientExpense) (int64, error)
	DeleteClientExpense(ctx context.Context, id int64) error

	RecordPublishRuns(ctx context.Context, runs []storage.PublishRun) error
	RecentPublishRuns(ctx context.Context, limit int) ([]storage.PublishRun, error)
}

// SummaryPublisher pushes a rendered artifact to every configured target.
type SummaryPublisher interface {
	Publish(ctx context.Context, a publish.Artifact) ([]publish.Result, error)
}

// EventEmitter announces committed mutations to the publish worker.
type EventEmitter interface {
	PublishLedgerChanged(ctx context.Context, reason string) error
}

// Options wires the optional collaborators. With Events set, mutations are
// announced and the worker publishes; otherwise Publisher runs inline.
type Options struct {
	Renderer     *report.Renderer
	Publisher    SummaryPublisher
	Events       EventEmitter
	Summaries    cache.Cache[core.Summary]
	ArtifactName string
	Logger       *log.Logger
}

// MutationResult reports what happened after a mutation committed.
// Warnings are downstream failures that did not undo the mutation.
type MutationResult struct {
	ID       int64
	Warnings []string
}

// Ledger is the whole normalized ledger at one point in time.
type Ledger struct {
	Transactions []core.Transaction
	People       []core.Person
	Expenses     []core.ClientExpense
}

type LedgerService struct {
	repo         Repository
	renderer     *report.Renderer
	publisher    SummaryPublisher
	events       EventEmitter
	summaries    cache.Cache[core.Summary]
	artifactName string
	logger       *log.Logger

	// mu serializes mutations so each reload sees its own write.
	mu sync.Mutex

	// cacheMu guards gen, which Invalidate bumps. A summary computed under
	// an older generation is never cached.
	cacheMu sync.Mutex
	gen     uint64
}

func NewLedgerService(repo Repository, opts Options) *LedgerService {
	name := opts.ArtifactName
	if name == "" {
		name = "index.html"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		repo:         repo,
		renderer:     opts.Renderer,
		publisher:    opts.Publisher,
		events:       opts.Events,
		summaries:    opts.Summaries,
		artifactName: name,
		logger:       logger.WithComponent(log.ComponentLedger),
	}
}

// Load reads and normalizes the full ledger.
func (s *LedgerService) Load(ctx context.Context) (Ledger, error) {
	txRows, err := s.repo.LoadTransactionRows(ctx)
	if err != nil {
		return Ledger{}, fmt.Errorf("load transactions: %w", err)
	}
	peopleRows, err := s.repo.LoadPeopleRows(ctx)
	if err != nil {
		return Ledger{}, fmt.Errorf("load people: %w", err)
	}
	expenseRows, err := s.repo.LoadClientExpenseRows(ctx)
	if err != nil {
		return Ledger{}, fmt.Errorf("load client expenses: %w", err)
	}
	return Ledger{
		Transactions: ledger.NormalizeTransactions(txRows),
		People:       ledger.NormalizePeople(peopleRows),
		Expenses:     ledger.NormalizeClientExpenses(expenseRows),
	}, nil
}

func (s *LedgerService) loadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.repo.LoadTransactionRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return ledger.NormalizeTransactions(rows), nil
}

// Summary aggregates the transactions selected by f. Results are cached per
// filter until the next mutation.
func (s *LedgerService) Summary(ctx context.Context, f ledger.Filter) (core.Summary, error) {
	key := f.CacheKey()
	if s.summaries != nil {
		if sum, ok := s.summaries.Get(key); ok {
			return sum, nil
		}
	}
	gen := s.generation()
	txns, err := s.loadTransactions(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	sum := ledger.SummarizeFiltered(txns, f)
	s.storeSummary(gen, key, sum)
	return sum, nil
}

func (s *LedgerService) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

func (s *LedgerService) storeSummary(gen uint64, key string, sum core.Summary) {
	if s.summaries == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen == s.gen {
		s.summaries.Set(key, sum)
	}
}

// Transactions returns the normalized transactions selected by f.
func (s *LedgerService) Transactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	txns, err := s.loadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(txns), nil
}

// Transaction returns one stored transaction.
func (s *LedgerService) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// People returns the person directory.
func (s *LedgerService) People(ctx context.Context) ([]core.Person, error) {
	rows, err := s.repo.LoadPeopleRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load people: %w", err)
	}
	return ledger.NormalizePeople(rows), nil
}

// Counterparties lists the names offered for direction d. An empty direction
// lists everyone.
func (s *LedgerService) Counterparties(ctx context.Context, d core.Direction) ([]string, error) {
	people, err := s.People(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.CounterpartiesFor(people, d), nil
}

// ExpenseSummary compares client expenses with outgoing payments.
func (s *LedgerService) ExpenseSummary(ctx context.Context) (core.ExpenseSummary, error) {
	l, err := s.Load(ctx)
	if err != nil {
		return core.ExpenseSummary{}, err
	}
	return ledger.SummarizeExpenses(l.Expenses, l.Transactions), nil
}

// ClientExpenses returns every client expense.
func (s *LedgerService) ClientExpenses(ctx context.Context) ([]core.ClientExpense, error) {
	rows, err := s.repo.LoadClientExpenseRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load client expenses: %w", err)
	}
	return ledger.NormalizeClientExpenses(rows), nil
}

// PublishRuns returns the latest publish outcomes, newest first. Runs recorded
// by the worker process share the same database.
func (s *LedgerService) PublishRuns(ctx context.Context, limit int) ([]storage.PublishRun, error) {
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.repo.RecentPublishRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load publish runs: %w", err)
	}
	return runs, nil
}

// AddTransaction validates and records a transaction.
func (s *LedgerService) AddTransaction(ctx context.Context, t core.Transaction) (MutationResult, error) {
	t = prepareTransaction(t)
	if err := t.Validate(); err != nil {
		return MutationResult{}, err
	}
	return s.mutate(ctx, ReasonTransactionAdded, func(ctx context.Context) (int64, error) {
		return s.repo.InsertTransaction(ctx, t)
	})
}

// UpdateTransaction replaces the stored transaction with the same id.
func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) (MutationResult, error) {
	if t.ID <= 0 {
		return MutationResult{}, fmt.Errorf("update transaction: %w", core.ErrNotFound)
	}
	t = prepareTransaction(t)
	if err := t.Validate(); err != nil {
		return MutationResult{}, err
	}
	return s.mutate(ctx, ReasonTransactionUpdated, func(ctx context.Context) (int64, error) {
		return t.ID, s.repo.UpdateTransaction(ctx, t)
	})
}

// DeleteTransaction removes a transaction by id.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) (MutationResult, error) {
	return s.mutate(ctx, ReasonTransactionDeleted, func(ctx context.Context) (int64, error) {
		return id, s.repo.DeleteTransaction(ctx, id)
	})
}

// AddPerson adds a counterparty. Names are unique.
func (s *LedgerService) AddPerson(ctx context.Context, p core.Person) (MutationResult, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	if p.Category == "" {
		p.Category = core.CategoryClient
	}
	if err := p.Validate(); err != nil {
		return MutationResult{}, err
	}
	return s.mutate(ctx, ReasonPersonAdded, func(ctx context.Context) (int64, error) {
		return 0, s.repo.InsertPerson(ctx, p)
	})
}

// DeletePerson removes a counterparty nothing references.
func (s *LedgerService) DeletePerson(ctx context.Context, name string) (MutationResult, error) {
	return s.mutate(ctx, ReasonPersonDeleted, func(ctx context.Context) (int64, error) {
		return 0, s.repo.DeletePerson(ctx, name)
	})
}

// AddClientExpense records an expense incurred on behalf of a client.
func (s *LedgerService) AddClientExpense(ctx context.Context, e core.ClientExpense) (MutationResult, error) {
	e.Client = strings.TrimSpace(e.Client)
	e.Category = strings.TrimSpace(e.Category)
	e.Description = strings.TrimSpace(e.Description)
	if e.Quantity == 0 {
		e.Quantity = 1
	}
	if err := e.Validate(); err != nil {
		return MutationResult{}, err
	}
	return s.mutate(ctx, ReasonClientExpenseAdded, func(ctx context.Context) (int64, error) {
		return s.repo.InsertClientExpense(ctx, e)
	})
}

// DeleteClientExpense removes a client expense by id.
func (s *LedgerService) DeleteClientExpense(ctx context.Context, id int64) (MutationResult, error) {
	return s.mutate(ctx, ReasonClientExpenseDeleted, func(ctx context.Context) (int64, error) {
		return id, s.repo.DeleteClientExpense(ctx, id)
	})
}

// Republish regenerates and publishes the summary without a mutation.
func (s *LedgerService) Republish(ctx context.Context, reason string) MutationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MutationResult{Warnings: s.afterCommit(ctx, reason)}
}

// Invalidate drops cached summaries held by this process and discards any
// summary still being computed from an earlier read.
func (s *LedgerService) Invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	if s.summaries != nil {
		s.summaries.Purge()
	}
}

func (s *LedgerService) mutate(ctx context.Context, reason string, write func(context.Context) (int64, error)) (MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := write(ctx)
	if err != nil {
		return MutationResult{}, err
	}
	s.Invalidate()
	s.logger.InfoContext(ctx, "Ledger updated", log.FieldReason, reason, "id", id)

	return MutationResult{ID: id, Warnings: s.afterCommit(ctx, reason)}, nil
}

// afterCommit hands the change to the worker or publishes inline. Failures are
// returned as warnings.
func (s *LedgerService) afterCommit(ctx context.Context, reason string) []string {
	if s.events != nil {
		if err := s.events.PublishLedgerChanged(ctx, reason); err != nil {
			s.logger.WarnContext(ctx, "Failed to announce ledger change",
				log.FieldReason, reason, log.FieldError, err)
			return []string{fmt.Sprintf("Saved, but the summary update could not be queued: %v", err)}
		}
		return nil
	}
	if err := s.Publish(ctx, reason); err != nil {
		return []string{fmt.Sprintf("Saved, but publishing the summary failed: %v", err)}
	}
	return nil
}

// Publish reloads the ledger, renders the summary and publishes it to every
// target. Outcomes are recorded per target. Without a publisher it is a no-op.
func (s *LedgerService) Publish(ctx context.Context, reason string) error {
	if s.publisher == nil || s.renderer == nil {
		return nil
	}

	l, err := s.Load(ctx)
	if err != nil {
		return err
	}
	body, err := s.renderer.RenderBytes(report.Snapshot{
		Transactions: l.Transactions,
		Summary:      ledger.Summarize(l.Transactions),
		Expenses:     ledger.SummarizeExpenses(l.Expenses, l.Transactions),
	})
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	results, pubErr := s.publisher.Publish(ctx, publish.Artifact{
		Name:        s.artifactName,
		ContentType: "text/html; charset=utf-8",
		Body:        body,
		Ledger:      l.Transactions,
	})

	runID := uuid.NewString()
	runs := make([]storage.PublishRun, 0, len(results))
	for _, r := range results {
		run := storage.PublishRun{
			RunID:      runID,
			Reason:     reason,
			Target:     r.Target,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		}
		if r.Err != nil {
			run.Err = r.Err.Error()
		}
		runs = append(runs, run)
	}
	if len(runs) > 0 {
		// Bookkeeping must not be cut short by the caller's deadline.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.repo.RecordPublishRuns(recCtx, runs); err != nil {
			s.logger.WarnContext(ctx, "Failed to record publish runs", log.FieldError, err)
		}
	}

	if pubErr != nil {
		return fmt.Errorf("publish summary: %w", pubErr)
	}
	s.logger.InfoContext(ctx, "Summary regenerated",
		log.FieldReason, reason, log.FieldRecords, len(l.Transactions), "run_id", runID)
	return nil
}

// prepareTransaction applies entry defaults before validation.
func prepareTransaction(t core.Transaction) core.Transaction {
	t.Person = strings.TrimSpace(t.Person)
	t.Description = strings.TrimSpace(t.Description)
	t.Reference = strings.TrimSpace(t.Reference)
	if t.Status == "" {
		t.Status = core.Completed
	}
	if t.Method == "" {
		t.Method = core.Cash
	}
	switch t.Method {
	case core.Cash:
		t.ChequeStatus = ""
	case core.Cheque:
		if t.ChequeStatus == "" {
			t.ChequeStatus = core.ChequeInClearing
		}
	}
	return t
}

// IsUserError reports whether err is a rejection the user can fix.
func IsUserError(err error) bool {
	return errors.Is(err, core.ErrValidation) ||
		errors.Is(err, core.ErrDuplicate) ||
		errors.Is(err, core.ErrInUse) ||
		errors.Is(err, core.ErrNotFound)
}
