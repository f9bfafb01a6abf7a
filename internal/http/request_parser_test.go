package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paytrack/internal/core"
)

func newParser(t *testing.T, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	p := NewRequestBodyParser(req)
	require.NoError(t, p.Parse())
	return p
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		isJSON bool
		want   map[string]string
	}{
		{
			name: "form body",
			body: "person=Alice&amount=1%2C500&description=%20rent%20",
			want: map[string]string{"person": "Alice", "amount": "1,500", "description": "rent", "missing": ""},
		},
		{
			name:   "json body",
			body:   `{"person":"Bob","amount":1500.5,"quantity":2}`,
			isJSON: true,
			want:   map[string]string{"person": "Bob", "amount": "1500.5", "quantity": "2", "missing": ""},
		},
		{
			name: "control characters are dropped",
			body: "description=" + url.QueryEscape("a\x00b\x07c\td"),
			want: map[string]string{"description": "abc\td"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, tt.body)
			assert.Equal(t, tt.isJSON, p.IsJSON())
			for key, want := range tt.want {
				assert.Equal(t, want, p.Get(key), key)
			}
		})
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"person":`))
	p := NewRequestBodyParser(req)
	assert.Error(t, p.Parse())
	assert.Error(t, p.Parse(), "parse result is sticky")
}

func TestTransactionForm_Validation(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())
	valid := TransactionForm{
		Date:   "2024-03-01",
		Person: "Alice",
		Amount: "Rs. 1,000",
		Type:   "incoming",
		Method: "cash",
	}

	tests := []struct {
		name    string
		mutate  func(*TransactionForm)
		wantErr string
	}{
		{name: "valid cash", mutate: func(*TransactionForm) {}},
		{name: "missing date", mutate: func(f *TransactionForm) { f.Date = "" }, wantErr: "date is required"},
		{name: "bad date", mutate: func(f *TransactionForm) { f.Date = "01/03/2024" }, wantErr: "date must be a date"},
		{name: "missing person", mutate: func(f *TransactionForm) { f.Person = "" }, wantErr: "counterparty is required"},
		{name: "bad direction", mutate: func(f *TransactionForm) { f.Type = "sideways" }, wantErr: "direction must be one of"},
		{name: "cheque without reference", mutate: func(f *TransactionForm) { f.Method = "cheque" }, wantErr: "reference number is required for cheque"},
		{
			name:   "cheque with reference",
			mutate: func(f *TransactionForm) { f.Method = "cheque"; f.Reference = "CHQ-1"; f.ChequeStatus = "issued" },
		},
		{name: "bad cheque status", mutate: func(f *TransactionForm) { f.ChequeStatus = "lost" }, wantErr: "cheque status must be one of"},
		{name: "long description", mutate: func(f *TransactionForm) { f.Description = strings.Repeat("x", 501) }, wantErr: "at most 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid
			tt.mutate(&form)
			err := v.Struct(form)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, validationMessage(err), tt.wantErr)
		})
	}
}

func TestTransactionForm_Transaction(t *testing.T) {
	form := TransactionForm{
		Date:         "2024-03-01",
		Person:       "Alice",
		Amount:       "Rs. 1,250.50",
		Type:         "outgoing",
		Status:       "pending",
		Method:       "cash",
		ChequeStatus: "issued",
		Description:  "advance",
	}

	txn, err := form.Transaction("Rs.")
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2024, 3, 1), txn.Date)
	assert.True(t, decimal.RequireFromString("1250.50").Equal(txn.Amount))
	assert.Equal(t, core.Outgoing, txn.Direction)
	assert.Equal(t, core.Pending, txn.Status)
	assert.Empty(t, txn.ChequeStatus, "cheque status is dropped for cash")

	form.Amount = "abc"
	_, err = form.Transaction("Rs.")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestClientExpenseForm_ClientExpense(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		wantQty  int64
		wantErr  bool
	}{
		{name: "default quantity", wantQty: 1},
		{name: "explicit quantity", quantity: "3", wantQty: 3},
		{name: "zero quantity", quantity: "0", wantErr: true},
		{name: "non numeric", quantity: "two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := ClientExpenseForm{Date: "2024-05-02", Client: "Acme", Amount: "Rs. 200", Quantity: tt.quantity}
			e, err := form.ClientExpense("Rs.")
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidQuantity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, e.Quantity)
			assert.True(t, decimal.NewFromInt(200).Equal(e.Amount))
		})
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
		check   func(t *testing.T, f filterCheck)
	}{
		{name: "empty", query: "", check: func(t *testing.T, f filterCheck) { assert.True(t, f.zero) }},
		{name: "all direction means none", query: "direction=all", check: func(t *testing.T, f filterCheck) { assert.True(t, f.zero) }},
		{
			name:  "full",
			query: "from=2024-01-01&to=2024-12-31&person=Alice&direction=INCOMING&method=cheque&status=pending&cheque_status=in_clearing&ref=chq",
			check: func(t *testing.T, f filterCheck) {
				assert.False(t, f.zero)
				assert.Equal(t, "2024-01-01|2024-12-31|Alice|incoming|cheque|pending|in_clearing|chq", f.key)
			},
		},
		{name: "bad date", query: "from=yesterday", wantErr: true},
		{name: "bad direction", query: "direction=up", wantErr: true},
		{name: "bad method", query: "method=card", wantErr: true},
		{name: "bad status", query: "status=done", wantErr: true},
		{name: "bad cheque status", query: "cheque_status=lost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			f, err := parseFilter(q)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrValidation)
				return
			}
			require.NoError(t, err)
			tt.check(t, filterCheck{
				zero: f.IsZero(),
				key: strings.Join([]string{f.From.String(), f.To.String(), f.Person, string(f.Direction),
					string(f.Method), string(f.Status), string(f.ChequeStatus), f.Reference}, "|"),
			})
		})
	}
}

type filterCheck struct {
	zero bool
	key  string
}
