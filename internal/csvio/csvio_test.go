package csvio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paytrack/internal/core"
	"paytrack/internal/ledger"
)

const legacyPayments = `date,person,amount,type,status,description,payment_method,reference_number,cheque_status,transaction_status
2024-03-01,Acme,1500,paid_to_me,,,cash,completed,,
2024-03-02,Bob,400,i_paid,completed,rent,cheque,CHQ-1,nan,
,,0,,,,,,,
,Carol,,,,,,,,
`

func TestReadRowsLegacyPayments(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(legacyPayments))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Acme", rows[0]["person"])

	txns := ledger.NormalizeTransactions(rows)
	require.Len(t, txns, 3)
	assert.Equal(t, core.Completed, txns[0].Status)
	assert.Equal(t, "", txns[0].Reference)
	assert.Equal(t, core.ChequeInClearing, txns[1].ChequeStatus)
	assert.Equal(t, "Carol", txns[2].Person)
}

func TestReadRowsTolerantOfShapes(t *testing.T) {
	cases := []struct {
		name string
		in   string
		rows int
	}{
		{"empty stream", "", 0},
		{"header only", "date,person,amount\n", 0},
		{"short row", "date,person,amount\n2024-01-01,Bob\n", 1},
		{"long row", "date,person\n2024-01-01,Bob,extra,cells\n", 1},
		{"bom header", "\ufeffDate, Person\n2024-01-01,Bob\n", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := ReadRows(strings.NewReader(tc.in))
			require.NoError(t, err)
			assert.Len(t, rows, tc.rows)
			if tc.rows > 0 {
				assert.Equal(t, "Bob", rows[0]["person"])
			}
		})
	}
}

func TestReadPeopleWithoutCategoryColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name\nAlice\nBob\nAlice\n"), 0o644))

	people, err := ReadPeople(path)
	require.NoError(t, err)
	assert.Equal(t, []core.Person{
		{Name: "Alice", Category: core.CategoryClient},
		{Name: "Bob", Category: core.CategoryClient},
	}, people)
}

func TestTransactionsExportReimport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "payments.csv")
	require.NoError(t, os.WriteFile(src, []byte(legacyPayments), 0o644))

	first, err := ReadTransactions(src)
	require.NoError(t, err)

	out := filepath.Join(dir, "export", "payments.csv")
	require.NoError(t, WriteTransactions(out, first))

	second, err := ReadTransactions(out)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, ledger.TransactionRow(first[i]), ledger.TransactionRow(second[i]))
	}

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	header := strings.SplitN(string(raw), "\n", 2)[0]
	assert.Equal(t, strings.Join(ledger.TransactionColumns, ","), header)
}

func TestClientExpensesExportReimport(t *testing.T) {
	date, _ := core.ParseDate("2024-06-01")
	in := []core.ClientExpense{{
		Date: date, Client: "Bob", Category: "travel",
		Amount: decimal.RequireFromString("12.50"), Quantity: 2, Description: "taxi, airport",
	}}
	path := filepath.Join(t.TempDir(), "client_expenses.csv")
	require.NoError(t, WriteClientExpenses(path, in))

	got, err := ReadClientExpenses(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "taxi, airport", got[0].Description)
	assert.True(t, got[0].Total().Equal(decimal.RequireFromString("25")))
}

func TestWritePeopleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	in := []core.Person{{Name: "Ivy", Category: core.CategoryInvestor}, {Name: "Cal", Category: core.CategoryClient}}
	require.NoError(t, WritePeople(path, in))

	got, err := ReadPeople(path)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadTransactions(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
