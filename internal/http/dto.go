package http

import (
	"time"

	"github.com/shopspring/decimal"

	"paytrack/internal/core"
	"paytrack/internal/storage"
)

type mutationJSON struct {
	ID       int64    `json:"id,omitempty"`
	Reason   string   `json:"reason"`
	Warnings []string `json:"warnings"`
}

type transactionJSON struct {
	ID           int64           `json:"id"`
	Date         string          `json:"date"`
	Person       string          `json:"person"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Status       string          `json:"transaction_status"`
	Description  string          `json:"description"`
	Method       string          `json:"payment_method"`
	Reference    string          `json:"reference_number"`
	ChequeStatus string          `json:"cheque_status"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:           t.ID,
		Date:         t.Date.String(),
		Person:       t.Person,
		Amount:       t.Amount,
		Type:         string(t.Direction),
		Status:       string(t.Status),
		Description:  t.Description,
		Method:       string(t.Method),
		Reference:    t.Reference,
		ChequeStatus: string(t.ChequeStatus),
	}
}

func toTransactionsJSON(txns []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

// summaryJSON flattens the keyed breakdowns into nested objects:
// by_method[direction][method] and by_status[direction][status].
type summaryJSON struct {
	Incoming        decimal.Decimal                       `json:"incoming"`
	Outgoing        decimal.Decimal                       `json:"outgoing"`
	PendingIncoming decimal.Decimal                       `json:"pending_incoming"`
	PendingOutgoing decimal.Decimal                       `json:"pending_outgoing"`
	Net             decimal.Decimal                       `json:"net"`
	ByMethod        map[string]map[string]decimal.Decimal `json:"by_method"`
	ByStatus        map[string]map[string]decimal.Decimal `json:"by_status"`
	ByCounterparty  []core.CounterpartyTotal              `json:"by_counterparty"`
	Count           int                                   `json:"count"`
}

func toSummaryJSON(s core.Summary) summaryJSON {
	out := summaryJSON{
		Incoming:        s.Incoming,
		Outgoing:        s.Outgoing,
		PendingIncoming: s.PendingIncoming,
		PendingOutgoing: s.PendingOutgoing,
		Net:             s.Net,
		ByMethod:        make(map[string]map[string]decimal.Decimal),
		ByStatus:        make(map[string]map[string]decimal.Decimal),
		ByCounterparty:  s.ByCounterparty,
		Count:           s.Count,
	}
	if out.ByCounterparty == nil {
		out.ByCounterparty = []core.CounterpartyTotal{}
	}
	for _, d := range core.Directions() {
		methods := make(map[string]decimal.Decimal)
		for _, m := range core.Instruments() {
			methods[string(m)] = s.Method(d, m)
		}
		out.ByMethod[string(d)] = methods

		statuses := make(map[string]decimal.Decimal)
		for _, st := range core.SettlementStatuses() {
			statuses[string(st)] = s.Settlement(d, st)
		}
		out.ByStatus[string(d)] = statuses
	}
	return out
}

type personJSON struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type clientExpenseJSON struct {
	ID          int64           `json:"id"`
	Date        string          `json:"expense_date"`
	Client      string          `json:"expense_person"`
	Category    string          `json:"expense_category"`
	Amount      decimal.Decimal `json:"expense_amount"`
	Quantity    int64           `json:"expense_quantity"`
	Total       decimal.Decimal `json:"total"`
	Description string          `json:"expense_description"`
}

func toClientExpensesJSON(expenses []core.ClientExpense) []clientExpenseJSON {
	out := make([]clientExpenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, clientExpenseJSON{
			ID:          e.ID,
			Date:        e.Date.String(),
			Client:      e.Client,
			Category:    e.Category,
			Amount:      e.Amount,
			Quantity:    e.Quantity,
			Total:       e.Total(),
			Description: e.Description,
		})
	}
	return out
}

type publishRunJSON struct {
	RunID      string    `json:"run_id"`
	Reason     string    `json:"reason"`
	Target     string    `json:"target"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func toPublishRunsJSON(runs []storage.PublishRun) []publishRunJSON {
	out := make([]publishRunJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, publishRunJSON{
			RunID:      run.RunID,
			Reason:     run.Reason,
			Target:     run.Target,
			OK:         run.OK(),
			Error:      run.Err,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
		})
	}
	return out
}
