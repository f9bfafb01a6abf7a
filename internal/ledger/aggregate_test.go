package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paytrack/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(date, person, amount string, d core.Direction, st core.SettlementStatus, m core.Instrument) core.Transaction {
	t := core.Transaction{
		Person:    person,
		Amount:    dec(amount),
		Direction: d,
		Status:    st,
		Method:    m,
	}
	if date != "" {
		t.Date, _ = core.ParseDate(date)
	}
	if m == core.Cheque {
		t.ChequeStatus = core.ChequeInClearing
		t.Reference = "CHQ-" + person
	}
	return t
}

func sampleLedger() []core.Transaction {
	return []core.Transaction{
		tx("2024-01-05", "Acme", "1000", core.Incoming, core.Completed, core.Cash),
		tx("2024-01-10", "Bob", "400", core.Outgoing, core.Completed, core.Cash),
		tx("2024-02-01", "Acme", "250.50", core.Incoming, core.Pending, core.Cheque),
		tx("2024-02-15", "Carol", "99.99", core.Outgoing, core.Pending, core.Cheque),
		tx("2024-03-01", "Bob", "10", core.Outgoing, core.Completed, core.Cheque),
		tx("", "Dan", "5", core.Incoming, core.Completed, core.Cash),
	}
}

func TestSummarizeNetBalance(t *testing.T) {
	s := Summarize([]core.Transaction{
		tx("2024-03-01", "Acme", "1000", core.Incoming, core.Completed, core.Cash),
		tx("2024-03-02", "Bob", "400", core.Outgoing, core.Completed, core.Cash),
	})
	assert.True(t, s.Net.Equal(dec("600")), "net = %s", s.Net)
	assert.Equal(t, 2, s.Count)
}

func TestSummarizeEmptyLedger(t *testing.T) {
	for _, in := range [][]core.Transaction{nil, {}} {
		s := Summarize(in)
		for name, v := range s.Metrics() {
			assert.True(t, v.IsZero(), "%s = %s", name, v)
		}
		require.Len(t, s.ByMethod, 4)
		require.Len(t, s.ByStatus, 4)
		for _, v := range s.ByMethod {
			assert.True(t, v.IsZero())
		}
		for _, v := range s.ByStatus {
			assert.True(t, v.IsZero())
		}
		assert.Empty(t, s.ByCounterparty)
		assert.Equal(t, 0, s.Count)
	}
}

func TestSummarizeBreakdowns(t *testing.T) {
	s := Summarize(sampleLedger())

	assert.True(t, s.Incoming.Equal(dec("1255.50")))
	assert.True(t, s.Outgoing.Equal(dec("509.99")))
	assert.True(t, s.PendingIncoming.Equal(dec("250.50")))
	assert.True(t, s.PendingOutgoing.Equal(dec("99.99")))
	assert.True(t, s.Net.Equal(dec("745.51")))

	assert.True(t, s.Method(core.Incoming, core.Cash).Equal(dec("1005")))
	assert.True(t, s.Method(core.Incoming, core.Cheque).Equal(dec("250.50")))
	assert.True(t, s.Method(core.Outgoing, core.Cash).Equal(dec("400")))
	assert.True(t, s.Method(core.Outgoing, core.Cheque).Equal(dec("109.99")))

	assert.True(t, s.Settlement(core.Incoming, core.Completed).Equal(dec("1005")))
	assert.True(t, s.Settlement(core.Outgoing, core.Pending).Equal(dec("99.99")))

	require.Len(t, s.ByCounterparty, 4)
	names := make([]string, 0, len(s.ByCounterparty))
	for _, cp := range s.ByCounterparty {
		names = append(names, cp.Name)
	}
	assert.Equal(t, []string{"Acme", "Bob", "Carol", "Dan"}, names)
	bob := s.ByCounterparty[1]
	assert.True(t, bob.Outgoing.Equal(dec("410")))
	assert.True(t, bob.Net.Equal(dec("-410")))
	assert.Equal(t, 2, bob.Count)
}

func TestSummarizeSkipsUnknownDirection(t *testing.T) {
	s := Summarize([]core.Transaction{
		tx("2024-01-01", "Acme", "100", "", core.Completed, core.Cash),
		tx("2024-01-01", "Acme", "50", core.Incoming, core.Completed, core.Cash),
	})
	assert.True(t, s.Incoming.Equal(dec("50")))
	assert.True(t, s.Outgoing.IsZero())
	assert.Equal(t, 1, s.Count)
}

func TestSummarizeIsAdditive(t *testing.T) {
	all := sampleLedger()
	cases := []struct {
		name string
		f    Filter
	}{
		{"by direction", Filter{Direction: core.Incoming}},
		{"by method", Filter{Method: core.Cheque}},
		{"by status", Filter{Status: core.Pending}},
		{"by person", Filter{Person: "Bob"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var in, out []core.Transaction
			for _, x := range all {
				if tc.f.Match(x) {
					in = append(in, x)
				} else {
					out = append(out, x)
				}
			}
			merged := Merge(Summarize(in), Summarize(out))
			whole := Summarize(all)

			for name, v := range whole.Metrics() {
				assert.True(t, v.Equal(merged.Metrics()[name]), "%s: %s != %s", name, v, merged.Metrics()[name])
			}
			for k, v := range whole.ByMethod {
				assert.True(t, v.Equal(merged.ByMethod[k]), "method %v", k)
			}
			for k, v := range whole.ByStatus {
				assert.True(t, v.Equal(merged.ByStatus[k]), "status %v", k)
			}
			require.Len(t, merged.ByCounterparty, len(whole.ByCounterparty))
			for i := range whole.ByCounterparty {
				assert.Equal(t, whole.ByCounterparty[i].Name, merged.ByCounterparty[i].Name)
				assert.True(t, whole.ByCounterparty[i].Net.Equal(merged.ByCounterparty[i].Net))
			}
			assert.Equal(t, whole.Count, merged.Count)
		})
	}
}

func TestSummarizeFiltered(t *testing.T) {
	from, _ := core.ParseDate("2024-01-01")
	to, _ := core.ParseDate("2024-01-31")
	s := SummarizeFiltered(sampleLedger(), Filter{From: from, To: to})
	assert.Equal(t, 2, s.Count)
	assert.True(t, s.Net.Equal(dec("600")))
}

func TestFilterMatch(t *testing.T) {
	ledger := sampleLedger()
	from, _ := core.ParseDate("2024-02-01")
	to, _ := core.ParseDate("2024-02-15")

	cases := []struct {
		name string
		f    Filter
		want int
	}{
		{"zero filter", Filter{}, 6},
		{"inclusive range", Filter{From: from, To: to}, 2},
		{"open start", Filter{To: to}, 4},
		{"open end", Filter{From: from}, 3},
		{"direction", Filter{Direction: core.Outgoing}, 3},
		{"cheque status", Filter{ChequeStatus: core.ChequeInClearing}, 3},
		{"reference substring", Filter{Reference: "chq-b"}, 1},
		{"combined", Filter{Direction: core.Outgoing, Method: core.Cheque, Status: core.Pending}, 1},
		{"no match", Filter{Person: "Nobody"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, tc.f.Apply(ledger), tc.want)
		})
	}
}

func TestFilterCacheKey(t *testing.T) {
	a := Filter{Person: "Bob", Reference: "ABC"}
	b := Filter{Person: "Bob", Reference: "abc"}
	c := Filter{Person: "Bob"}
	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
	assert.True(t, Filter{}.IsZero())
	assert.False(t, c.IsZero())
}
