package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"paytrack/internal/core"
	"paytrack/internal/ledger"
	"paytrack/internal/log"
	"paytrack/internal/middleware/ratelimit"
	"paytrack/internal/middleware/security"
	"paytrack/internal/middleware/trace"
	"paytrack/internal/services"
	"paytrack/internal/storage"
	appweb "paytrack/web"
)

// Ledger is the service surface the handlers drive.
type Ledger interface {
	Load(ctx context.Context) (services.Ledger, error)
	Summary(ctx context.Context, f ledger.Filter) (core.Summary, error)
	Transactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error)
	Transaction(ctx context.Context, id int64) (core.Transaction, error)
	People(ctx context.Context) ([]core.Person, error)
	Counterparties(ctx context.Context, d core.Direction) ([]string, error)
	ExpenseSummary(ctx context.Context) (core.ExpenseSummary, error)
	ClientExpenses(ctx context.Context) ([]core.ClientExpense, error)
	PublishRuns(ctx context.Context, limit int) ([]storage.PublishRun, error)

	AddTransaction(ctx context.Context, t core.Transaction) (services.MutationResult, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (services.MutationResult, error)
	DeleteTransaction(ctx context.Context, id int64) (services.MutationResult, error)
	AddPerson(ctx context.Context, p core.Person) (services.MutationResult, error)
	DeletePerson(ctx context.Context, name string) (services.MutationResult, error)
	AddClientExpense(ctx context.Context, e core.ClientExpense) (services.MutationResult, error)
	DeleteClientExpense(ctx context.Context, id int64) (services.MutationResult, error)
	Republish(ctx context.Context, reason string) services.MutationResult
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Ledger    Ledger
	Pinger    Pinger
	Logger    *log.Logger
	Title     string
	Currency  string
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	ledger    Ledger
	pinger    Pinger
	logger    *log.Logger
	templates *template.Template
	validate  *validator.Validate
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	title     string
	currency  string

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		ledger:   opts.Ledger,
		pinger:   opts.Pinger,
		logger:   logger.WithComponent(log.ComponentHTTP),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		tracer:   trace.NewMiddleware(security.ClientIP),
		title:    opts.Title,
		currency: opts.Currency,
	}
	if s.title == "" {
		s.title = "Payment Tracker"
	}

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Handler)
	r.Use(log.Middleware(s.logger, trace.RequestID))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssets(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(security.Headers(security.DefaultHeadersConfig()))
		r.Use(s.limiter.Mutations(security.ClientIP))

		r.Get("/", s.handleIndex)
		r.Get("/ui/summary", s.handleSummaryFragment)
		r.Get("/ui/transactions", s.handleTransactionsFragment)
		r.Get("/ui/client-expenses", s.handleClientExpensesFragment)

		r.Route("/api", func(r chi.Router) {
			r.Get("/summary", s.handleSummaryJSON)
			r.Get("/transactions", s.handleTransactionsJSON)
			r.Get("/transactions/{id}", s.handleTransactionJSON)
			r.Get("/people", s.handlePeople)
			r.Get("/client-expenses", s.handleClientExpensesJSON)
			r.Get("/client-expenses/summary", s.handleExpenseSummaryJSON)
			r.Get("/publish-runs", s.handlePublishRunsJSON)
		})

		r.Post("/transactions", s.handleCreateTransaction)
		r.Post("/transactions/{id}", s.handleUpdateTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)

		r.Post("/people", s.handleCreatePerson)
		r.Delete("/people/{name}", s.handleDeletePerson)

		r.Post("/client-expenses", s.handleCreateClientExpense)
		r.Delete("/client-expenses/{id}", s.handleDeleteClientExpense)

		r.Post("/publish", s.handlePublish)
	})
	return r
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string { return core.FormatAmount(s.currency, d) },
		"label": func(v string) string {
			v = strings.ReplaceAll(v, "_", " ")
			if v == "" {
				return v
			}
			return strings.ToUpper(v[:1]) + v[1:]
		},
		"negative": func(d decimal.Decimal) bool { return d.IsNegative() },
	}
}

// Metrics exposes the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.Metrics()
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
				log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
