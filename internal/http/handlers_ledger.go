package http

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"paytrack/internal/core"
	"paytrack/internal/ledger"
	"paytrack/internal/log"
	"paytrack/internal/services"
)

// filterView echoes the raw query back into the filter form.
type filterView struct {
	From, To, Person, Direction, Method, Status, ChequeStatus, Reference string

	// Query is already encoded; the template must not escape it again.
	Query template.URL
}

func newFilterView(q url.Values) filterView {
	return filterView{
		From:         q.Get("from"),
		To:           q.Get("to"),
		Person:       q.Get("person"),
		Direction:    q.Get("direction"),
		Method:       q.Get("method"),
		Status:       q.Get("status"),
		ChequeStatus: q.Get("cheque_status"),
		Reference:    q.Get("ref"),
		Query:        template.URL(q.Encode()),
	}
}

type dashboardData struct {
	Title          string
	Currency       string
	Today          string
	Filter         filterView
	FilterError    string
	Summary        core.Summary
	Transactions   []core.Transaction
	Expenses       core.ExpenseSummary
	ClientExpenses []core.ClientExpense
	People         []core.Person
	Incoming       []string
	Outgoing       []string
	Clients        []string

	Directions     []core.Direction
	Instruments    []core.Instrument
	Statuses       []core.SettlementStatus
	ChequeStatuses []core.ChequeStatus
}

func (s *Server) dashboard(r *http.Request) (dashboardData, error) {
	ctx := r.Context()
	q := r.URL.Query()
	data := dashboardData{
		Title:          s.title,
		Currency:       s.currency,
		Today:          time.Now().Format(core.DateLayout),
		Filter:         newFilterView(q),
		Directions:     core.Directions(),
		Instruments:    core.Instruments(),
		Statuses:       core.SettlementStatuses(),
		ChequeStatuses: core.ChequeStatuses(),
	}

	f, err := parseFilter(q)
	if err != nil {
		data.FilterError = err.Error()
		f = ledger.Filter{}
	}

	all, err := s.ledger.Load(ctx)
	if err != nil {
		return data, err
	}
	data.Transactions = f.Apply(all.Transactions)
	data.Summary = ledger.Summarize(data.Transactions)
	data.Expenses = ledger.SummarizeExpenses(all.Expenses, all.Transactions)
	data.ClientExpenses = all.Expenses
	data.People = all.People
	data.Incoming = ledger.CounterpartiesFor(all.People, core.Incoming)
	data.Outgoing = ledger.CounterpartiesFor(all.People, core.Outgoing)
	data.Clients = data.Outgoing
	return data, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := s.dashboard(r)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	s.render(w, r, "index.html", data)
}

func (s *Server) handleSummaryFragment(w http.ResponseWriter, r *http.Request) {
	data, err := s.dashboard(r)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	s.render(w, r, "summary", data)
}

func (s *Server) handleTransactionsFragment(w http.ResponseWriter, r *http.Request) {
	data, err := s.dashboard(r)
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	s.render(w, r, "transactions", data)
}

func (s *Server) handleSummaryJSON(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	sum, err := s.ledger.Summary(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewHTMXResponse().BodyJSON(toSummaryJSON(sum)).Write(w)
}

func (s *Server) handleTransactionsJSON(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	txns, err := s.ledger.Transactions(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	NewHTMXResponse().BodyJSON(toTransactionsJSON(txns)).Write(w)
}

func (s *Server) handleTransactionJSON(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	t, err := s.ledger.Transaction(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewHTMXResponse().BodyJSON(toTransactionJSON(t)).Write(w)
}

// transactionFromRequest binds, validates and converts a submitted transaction.
func (s *Server) transactionFromRequest(r *http.Request) (core.Transaction, error) {
	p, err := s.parseBody(r)
	if err != nil {
		return core.Transaction{}, err
	}
	form := bindTransactionForm(p)
	if err := s.validateForm(form); err != nil {
		return core.Transaction{}, err
	}
	return form.Transaction(s.currency)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactionFromRequest(r)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	res, err := s.ledger.AddTransaction(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction recorded",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithTransaction(res.ID, t.Person, string(t.Direction), t.Amount.StringFixed(2)).
			ToSlice()...)
	s.writeMutation(w, r, http.StatusCreated, services.ReasonTransactionAdded, "Transaction recorded", res)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	t, err := s.transactionFromRequest(r)
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	t.ID = id

	res, err := s.ledger.UpdateTransaction(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction updated",
		log.FieldOperation, log.OpUpdate, log.FieldTransactionID, id)
	s.writeMutation(w, r, http.StatusOK, services.ReasonTransactionUpdated, "Transaction updated", res)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	res, err := s.ledger.DeleteTransaction(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.FieldOperation, log.OpDelete, log.FieldTransactionID, id)
	s.writeMutation(w, r, http.StatusOK, services.ReasonTransactionDeleted, "Transaction deleted", res)
}

func (s *Server) handlePublishRunsJSON(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			s.writeErrorMessage(w, r, http.StatusUnprocessableEntity, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	runs, err := s.ledger.PublishRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	NewHTMXResponse().BodyJSON(toPublishRunsJSON(runs)).Write(w)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	res := s.ledger.Republish(r.Context(), services.ReasonManual)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Manual republish requested",
		log.FieldOperation, log.OpRepublish, "warnings", len(res.Warnings))
	s.writeMutation(w, r, http.StatusAccepted, services.ReasonManual, "Republish requested", res)
}
