package core

import "github.com/shopspring/decimal"

// Metric names reported by Summary.Metrics.
const (
	MetricIncoming        = "incoming"
	MetricOutgoing        = "outgoing"
	MetricPendingIncoming = "pending_incoming"
	MetricPendingOutgoing = "pending_outgoing"
	MetricNet             = "net"
)

// MethodKey addresses one cell of the direction × instrument cross-tabulation.
type MethodKey struct {
	Direction Direction
	Method    Instrument
}

// StatusKey addresses one cell of the direction × settlement status breakdown.
type StatusKey struct {
	Direction Direction
	Status    SettlementStatus
}

// CounterpartyTotal holds per-counterparty sums.
type CounterpartyTotal struct {
	Name     string          `json:"name"`
	Incoming decimal.Decimal `json:"incoming"`
	Outgoing decimal.Decimal `json:"outgoing"`
	Net      decimal.Decimal `json:"net"`
	Count    int             `json:"count"`
}

// Summary is the aggregate view of a (possibly filtered) ledger.
// It carries no formatting.
type Summary struct {
	Incoming        decimal.Decimal
	Outgoing        decimal.Decimal
	PendingIncoming decimal.Decimal
	PendingOutgoing decimal.Decimal
	Net             decimal.Decimal

	// ByMethod always holds all four direction × instrument cells.
	ByMethod map[MethodKey]decimal.Decimal
	// ByStatus always holds all four direction × status cells.
	ByStatus       map[StatusKey]decimal.Decimal
	ByCounterparty []CounterpartyTotal
	Count          int
}

// Metrics returns the scalar figures keyed by metric name.
func (s Summary) Metrics() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		MetricIncoming:        s.Incoming,
		MetricOutgoing:        s.Outgoing,
		MetricPendingIncoming: s.PendingIncoming,
		MetricPendingOutgoing: s.PendingOutgoing,
		MetricNet:             s.Net,
	}
}

// Method returns one cross-tabulation cell, zero when absent.
func (s Summary) Method(d Direction, m Instrument) decimal.Decimal {
	if v, ok := s.ByMethod[MethodKey{Direction: d, Method: m}]; ok {
		return v
	}
	return decimal.Zero
}

// Settlement returns one direction × status cell, zero when absent.
func (s Summary) Settlement(d Direction, st SettlementStatus) decimal.Decimal {
	if v, ok := s.ByStatus[StatusKey{Direction: d, Status: st}]; ok {
		return v
	}
	return decimal.Zero
}

// ClientExpenseTotal is the per-client view of expenses against outgoing payments.
type ClientExpenseTotal struct {
	Client    string          `json:"client"`
	Expenses  decimal.Decimal `json:"expenses"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
	Overspent bool            `json:"overspent"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// ExpenseSummary aggregates client expenses.
type ExpenseSummary struct {
	Clients    []ClientExpenseTotal `json:"clients"`
	ByCategory []CategoryAmount     `json:"by_category"`
	Expenses   decimal.Decimal      `json:"expenses"`
	Paid       decimal.Decimal      `json:"paid"`
	Remaining  decimal.Decimal      `json:"remaining"`
}
