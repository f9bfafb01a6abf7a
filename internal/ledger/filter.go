package ledger

import (
	"strings"

	"paytrack/internal/core"
)

// Filter selects a subset of normalized transactions. Zero-valued fields do not
// filter. From and To are inclusive; a record with an unparseable date never
// matches a date-bounded filter. Reference is a case-insensitive substring match.
type Filter struct {
	From         core.Date
	To           core.Date
	Person       string
	Direction    core.Direction
	Method       core.Instrument
	Status       core.SettlementStatus
	ChequeStatus core.ChequeStatus
	Reference    string
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether t is selected by the filter.
func (f Filter) Match(t core.Transaction) bool {
	if !f.From.IsEmpty() || !f.To.IsEmpty() {
		if t.Date.IsEmpty() {
			return false
		}
		if !f.From.IsEmpty() && t.Date.Before(f.From.Time) {
			return false
		}
		if !f.To.IsEmpty() && t.Date.After(f.To.Time) {
			return false
		}
	}
	if f.Person != "" && t.Person != f.Person {
		return false
	}
	if f.Direction != "" && t.Direction != f.Direction {
		return false
	}
	if f.Method != "" && t.Method != f.Method {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.ChequeStatus != "" && t.ChequeStatus != f.ChequeStatus {
		return false
	}
	if f.Reference != "" && !strings.Contains(strings.ToLower(t.Reference), strings.ToLower(f.Reference)) {
		return false
	}
	return true
}

// Apply returns the matching transactions in input order.
func (f Filter) Apply(txns []core.Transaction) []core.Transaction {
	if f.IsZero() {
		return txns
	}
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// CacheKey renders the filter as a stable string for result caching.
func (f Filter) CacheKey() string {
	return strings.Join([]string{
		f.From.String(), f.To.String(), f.Person, string(f.Direction), string(f.Method),
		string(f.Status), string(f.ChequeStatus), strings.ToLower(f.Reference),
	}, "|")
}
