package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paytrack/internal/core"
	"paytrack/internal/ledger"
)

func fixedRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("Payment Tracker", "Rs.")
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC) }
	return r
}

func TestRenderSummary(t *testing.T) {
	txns := ledger.NormalizeTransactions([]ledger.RawRow{
		{"date": "2024-03-01", "person": "Acme", "amount": "1000", "type": "paid_to_me", "transaction_status": "completed"},
		{"date": "2024-03-02", "person": "Bob <script>", "amount": "400", "type": "i_paid", "payment_method": "cheque",
			"reference_number": "CHQ-1", "cheque_status": "in_clearing", "transaction_status": "pending"},
	})
	snap := Snapshot{
		Transactions: txns,
		Summary:      ledger.Summarize(txns),
		Expenses:     ledger.SummarizeExpenses(nil, txns),
	}

	out, err := fixedRenderer(t).RenderBytes(snap)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>Payment Tracker</title>")
	assert.Contains(t, html, "Last updated 2024-03-05 10:30")
	assert.Contains(t, html, `id="net-balance">Rs. 600.00`)
	assert.Contains(t, html, "Received from Acme")
	assert.Contains(t, html, "Paid to Bob &lt;script&gt;")
	assert.Contains(t, html, "Cheque (In Clearing)")
	assert.Contains(t, html, "<td>Pending</td>")
	assert.NotContains(t, html, "<script>")

	// Newest first.
	assert.Less(t, strings.Index(html, "2024-03-02"), strings.Index(html, "2024-03-01"))
}

func TestRenderEmptyLedger(t *testing.T) {
	out, err := fixedRenderer(t).RenderBytes(Snapshot{Summary: ledger.Summarize(nil)})
	require.NoError(t, err)
	assert.Contains(t, string(out), "No transactions recorded yet.")
	assert.Contains(t, string(out), "Rs. 0.00")
}

func TestRenderUndatedRowsLast(t *testing.T) {
	dated, _ := core.ParseDate("2024-01-01")
	txns := []core.Transaction{
		{Person: "Undated", Amount: decimal.NewFromInt(1), Direction: core.Incoming, Status: core.Completed, Method: core.Cash},
		{Date: dated, Person: "Dated", Amount: decimal.NewFromInt(1), Direction: core.Incoming, Status: core.Completed, Method: core.Cash},
	}
	out, err := fixedRenderer(t).RenderBytes(Snapshot{Transactions: txns, Summary: ledger.Summarize(txns)})
	require.NoError(t, err)
	html := string(out)
	assert.Less(t, strings.Index(html, "Received from Dated"), strings.Index(html, "Received from Undated"))
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"in_clearing": "In Clearing",
		"pending":     "Pending",
		"":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, titleCase(in))
	}
}
