package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"paytrack/internal/core"
)

// Summarize aggregates a normalized ledger. An empty ledger yields all-zero totals.
func Summarize(txns []core.Transaction) core.Summary {
	s := emptySummary()
	byName := map[string]*core.CounterpartyTotal{}

	for _, t := range txns {
		if !t.Direction.IsValid() {
			continue
		}
		s.Count++

		cp, ok := byName[t.Person]
		if !ok {
			cp = &core.CounterpartyTotal{Name: t.Person, Incoming: decimal.Zero, Outgoing: decimal.Zero}
			byName[t.Person] = cp
		}
		cp.Count++

		switch t.Direction {
		case core.Incoming:
			s.Incoming = s.Incoming.Add(t.Amount)
			if t.IsPending() {
				s.PendingIncoming = s.PendingIncoming.Add(t.Amount)
			}
			cp.Incoming = cp.Incoming.Add(t.Amount)
		case core.Outgoing:
			s.Outgoing = s.Outgoing.Add(t.Amount)
			if t.IsPending() {
				s.PendingOutgoing = s.PendingOutgoing.Add(t.Amount)
			}
			cp.Outgoing = cp.Outgoing.Add(t.Amount)
		}

		if t.Method.IsValid() {
			k := core.MethodKey{Direction: t.Direction, Method: t.Method}
			s.ByMethod[k] = s.ByMethod[k].Add(t.Amount)
		}
		if t.Status.IsValid() {
			k := core.StatusKey{Direction: t.Direction, Status: t.Status}
			s.ByStatus[k] = s.ByStatus[k].Add(t.Amount)
		}
	}

	s.Net = s.Incoming.Sub(s.Outgoing)
	s.ByCounterparty = sortedCounterparties(byName)
	return s
}

// SummarizeFiltered aggregates the subset of txns selected by f.
func SummarizeFiltered(txns []core.Transaction, f Filter) core.Summary {
	return Summarize(f.Apply(txns))
}

// Merge combines the summaries of two disjoint subsets. Merge(Summarize(a),
// Summarize(b)) equals Summarize(a ∪ b).
func Merge(a, b core.Summary) core.Summary {
	s := emptySummary()
	s.Incoming = a.Incoming.Add(b.Incoming)
	s.Outgoing = a.Outgoing.Add(b.Outgoing)
	s.PendingIncoming = a.PendingIncoming.Add(b.PendingIncoming)
	s.PendingOutgoing = a.PendingOutgoing.Add(b.PendingOutgoing)
	s.Net = s.Incoming.Sub(s.Outgoing)
	s.Count = a.Count + b.Count

	for k := range s.ByMethod {
		s.ByMethod[k] = a.Method(k.Direction, k.Method).Add(b.Method(k.Direction, k.Method))
	}
	for k := range s.ByStatus {
		s.ByStatus[k] = a.Settlement(k.Direction, k.Status).Add(b.Settlement(k.Direction, k.Status))
	}

	byName := map[string]*core.CounterpartyTotal{}
	for _, list := range [][]core.CounterpartyTotal{a.ByCounterparty, b.ByCounterparty} {
		for _, c := range list {
			cp, ok := byName[c.Name]
			if !ok {
				cp = &core.CounterpartyTotal{Name: c.Name, Incoming: decimal.Zero, Outgoing: decimal.Zero}
				byName[c.Name] = cp
			}
			cp.Incoming = cp.Incoming.Add(c.Incoming)
			cp.Outgoing = cp.Outgoing.Add(c.Outgoing)
			cp.Count += c.Count
		}
	}
	s.ByCounterparty = sortedCounterparties(byName)
	return s
}

func emptySummary() core.Summary {
	s := core.Summary{
		Incoming:        decimal.Zero,
		Outgoing:        decimal.Zero,
		PendingIncoming: decimal.Zero,
		PendingOutgoing: decimal.Zero,
		Net:             decimal.Zero,
		ByMethod:        make(map[core.MethodKey]decimal.Decimal, 4),
		ByStatus:        make(map[core.StatusKey]decimal.Decimal, 4),
		ByCounterparty:  []core.CounterpartyTotal{},
	}
	for _, d := range core.Directions() {
		for _, m := range core.Instruments() {
			s.ByMethod[core.MethodKey{Direction: d, Method: m}] = decimal.Zero
		}
		for _, st := range core.SettlementStatuses() {
			s.ByStatus[core.StatusKey{Direction: d, Status: st}] = decimal.Zero
		}
	}
	return s
}

func sortedCounterparties(byName map[string]*core.CounterpartyTotal) []core.CounterpartyTotal {
	out := make([]core.CounterpartyTotal, 0, len(byName))
	for _, cp := range byName {
		cp.Net = cp.Incoming.Sub(cp.Outgoing)
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
