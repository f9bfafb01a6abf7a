package http

import (
	"net/http"

	"paytrack/internal/log"
	"paytrack/internal/services"
)

func (s *Server) handleClientExpensesJSON(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.ledger.ClientExpenses(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	NewHTMXResponse().BodyJSON(toClientExpensesJSON(expenses)).Write(w)
}

func (s *Server) handleExpenseSummaryJSON(w http.ResponseWriter, r *http.Request) {
	sum, err := s.ledger.ExpenseSummary(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewHTMXResponse().BodyJSON(sum).Write(w)
}

func (s *Server) handleClientExpensesFragment(w http.ResponseWriter, r *http.Request) {
	data, err := s.dashboard(r)
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	s.render(w, r, "client_expenses", data)
}

func (s *Server) handleCreateClientExpense(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBody(r)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	form := bindClientExpenseForm(p)
	if err := s.validateForm(form); err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	e, err := form.ClientExpense(s.currency)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	res, err := s.ledger.AddClientExpense(r.Context(), e)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Client expense recorded",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, res.ID,
		log.FieldCounterparty, e.Client,
		log.FieldAmount, e.Total().StringFixed(2))
	s.writeMutation(w, r, http.StatusCreated, services.ReasonClientExpenseAdded, "Expense recorded", res)
}

func (s *Server) handleDeleteClientExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	res, err := s.ledger.DeleteClientExpense(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Client expense deleted",
		log.FieldOperation, log.OpDelete, log.FieldExpenseID, id)
	s.writeMutation(w, r, http.StatusOK, services.ReasonClientExpenseDeleted, "Expense deleted", res)
}
