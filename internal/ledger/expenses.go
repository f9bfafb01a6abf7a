package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"paytrack/internal/core"
)

// SummarizeExpenses totals client expenses per client and sets them against the
// outgoing payments made to the same client. Remaining may go negative; that is
// reported through Overspent and never rejected.
func SummarizeExpenses(expenses []core.ClientExpense, txns []core.Transaction) core.ExpenseSummary {
	spent := map[string]decimal.Decimal{}
	byCategory := map[string]decimal.Decimal{}
	for _, e := range expenses {
		total := e.Total()
		spent[e.Client] = spent[e.Client].Add(total)
		category := strings.TrimSpace(e.Category)
		if category == "" {
			category = "uncategorized"
		}
		byCategory[category] = byCategory[category].Add(total)
	}

	paid := map[string]decimal.Decimal{}
	for _, t := range txns {
		if t.Direction != core.Outgoing {
			continue
		}
		if _, ok := spent[t.Person]; ok {
			paid[t.Person] = paid[t.Person].Add(t.Amount)
		}
	}

	out := core.ExpenseSummary{
		Clients:    make([]core.ClientExpenseTotal, 0, len(spent)),
		ByCategory: make([]core.CategoryAmount, 0, len(byCategory)),
		Expenses:   decimal.Zero,
		Paid:       decimal.Zero,
		Remaining:  decimal.Zero,
	}
	for client, total := range spent {
		p := paid[client]
		remaining := p.Sub(total)
		out.Clients = append(out.Clients, core.ClientExpenseTotal{
			Client:    client,
			Expenses:  total,
			Paid:      p,
			Remaining: remaining,
			Overspent: remaining.IsNegative(),
		})
		out.Expenses = out.Expenses.Add(total)
		out.Paid = out.Paid.Add(p)
	}
	out.Remaining = out.Paid.Sub(out.Expenses)
	sort.Slice(out.Clients, func(i, j int) bool { return out.Clients[i].Client < out.Clients[j].Client })

	for name, amount := range byCategory {
		out.ByCategory = append(out.ByCategory, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out.ByCategory, func(i, j int) bool { return out.ByCategory[i].Name < out.ByCategory[j].Name })
	return out
}

// CounterpartiesFor lists the names offered as counterparty for a direction:
// investors pay the owner, the owner pays clients. People filed under any other
// category are offered for both directions.
func CounterpartiesFor(people []core.Person, d core.Direction) []string {
	want := ""
	switch d {
	case core.Incoming:
		want = core.CategoryInvestor
	case core.Outgoing:
		want = core.CategoryClient
	}
	names := make([]string, 0, len(people))
	for _, p := range people {
		category := strings.ToLower(strings.TrimSpace(p.Category))
		known := category == core.CategoryInvestor || category == core.CategoryClient
		if want == "" || category == want || !known {
			names = append(names, p.Name)
		}
	}
	return names
}
