package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paytrack/internal/core"
)

func TestSummarizeExpenses(t *testing.T) {
	date, _ := core.ParseDate("2024-05-01")
	expenses := []core.ClientExpense{
		{Date: date, Client: "Bob", Category: "travel", Amount: dec("100"), Quantity: 3},
		{Date: date, Client: "Bob", Category: "", Amount: dec("50"), Quantity: 1},
		{Date: date, Client: "Carol", Category: "travel", Amount: dec("20"), Quantity: 2},
	}
	txns := []core.Transaction{
		tx("2024-05-02", "Bob", "200", core.Outgoing, core.Completed, core.Cash),
		tx("2024-05-03", "Bob", "300", core.Outgoing, core.Pending, core.Cash),
		tx("2024-05-03", "Bob", "999", core.Incoming, core.Completed, core.Cash),
		tx("2024-05-04", "Carol", "10", core.Outgoing, core.Completed, core.Cash),
		tx("2024-05-04", "Dan", "70", core.Outgoing, core.Completed, core.Cash),
	}

	s := SummarizeExpenses(expenses, txns)
	require.Len(t, s.Clients, 2)

	bob := s.Clients[0]
	assert.Equal(t, "Bob", bob.Client)
	assert.True(t, bob.Expenses.Equal(dec("350")))
	assert.True(t, bob.Paid.Equal(dec("500")))
	assert.True(t, bob.Remaining.Equal(dec("150")))
	assert.False(t, bob.Overspent)

	carol := s.Clients[1]
	assert.True(t, carol.Expenses.Equal(dec("40")))
	assert.True(t, carol.Remaining.Equal(dec("-30")))
	assert.True(t, carol.Overspent)

	require.Len(t, s.ByCategory, 2)
	assert.Equal(t, "travel", s.ByCategory[0].Name)
	assert.True(t, s.ByCategory[0].Amount.Equal(dec("340")))
	assert.Equal(t, "uncategorized", s.ByCategory[1].Name)

	assert.True(t, s.Expenses.Equal(dec("390")))
	assert.True(t, s.Paid.Equal(dec("510")))
	assert.True(t, s.Remaining.Equal(dec("120")))
}

func TestSummarizeExpensesEmpty(t *testing.T) {
	s := SummarizeExpenses(nil, nil)
	assert.Empty(t, s.Clients)
	assert.Empty(t, s.ByCategory)
	assert.True(t, s.Expenses.IsZero())
	assert.True(t, s.Remaining.IsZero())
}

func TestCounterpartiesFor(t *testing.T) {
	people := []core.Person{
		{Name: "Ivy", Category: core.CategoryInvestor},
		{Name: "Cal", Category: core.CategoryClient},
		{Name: "Vic", Category: "vendor"},
	}

	cases := []struct {
		direction core.Direction
		want      []string
	}{
		{core.Incoming, []string{"Ivy", "Vic"}},
		{core.Outgoing, []string{"Cal", "Vic"}},
		{"", []string{"Ivy", "Cal", "Vic"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.direction), func(t *testing.T) {
			assert.Equal(t, tc.want, CounterpartiesFor(people, tc.direction))
		})
	}
}
