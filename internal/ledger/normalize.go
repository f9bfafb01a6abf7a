// Package ledger turns loosely-typed ledger rows into canonical records and
// aggregates them for display.
//
// Every function in this package is a pure, single-pass transform over its input.
// Nothing here performs I/O or keeps state between calls.
package ledger

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paytrack/internal/core"
)

// Transaction ledger columns.
const (
	ColID                = "id"
	ColDate              = "date"
	ColPerson            = "person"
	ColAmount            = "amount"
	ColType              = "type"
	ColStatus            = "status" // legacy alias of ColTransactionStatus
	ColDescription       = "description"
	ColPaymentMethod     = "payment_method"
	ColReferenceNumber   = "reference_number"
	ColChequeStatus      = "cheque_status"
	ColTransactionStatus = "transaction_status"
)

// Person directory columns.
const (
	ColName     = "name"
	ColCategory = "category"
)

// Client expense ledger columns.
const (
	ColExpenseID          = "id"
	ColExpenseDate        = "expense_date"
	ColExpensePerson      = "expense_person"
	ColExpenseCategory    = "expense_category"
	ColExpenseAmount      = "expense_amount"
	ColExpenseQuantity    = "expense_quantity"
	ColExpenseDescription = "expense_description"
)

// TransactionColumns is the canonical transaction header, in file order.
var TransactionColumns = []string{
	ColDate, ColPerson, ColAmount, ColType, ColStatus, ColDescription,
	ColPaymentMethod, ColReferenceNumber, ColChequeStatus, ColTransactionStatus,
}

// PersonColumns is the canonical person directory header.
var PersonColumns = []string{ColName, ColCategory}

// ExpenseColumns is the canonical client expense header.
var ExpenseColumns = []string{
	ColExpenseDate, ColExpensePerson, ColExpenseCategory,
	ColExpenseAmount, ColExpenseQuantity, ColExpenseDescription,
}

// RawRow is one untyped ledger row: column name to string, number or missing marker.
type RawRow map[string]any

var dateLayouts = []string{
	core.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
}

// NormalizeTransactions canonicalizes a raw ledger. Fully blank rows are dropped;
// every other row is kept and repaired. The output never has more rows than the input.
func NormalizeTransactions(rows []RawRow) []core.Transaction {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		if t, ok := NormalizeTransaction(row); ok {
			out = append(out, t)
		}
	}
	return out
}

// NormalizeTransaction canonicalizes one row. The boolean is false for a blank row
// (no date, no counterparty and a zero amount), which callers should discard.
// A row that cannot be processed at all normalizes to the blank default.
func NormalizeTransaction(row RawRow) (t core.Transaction, keep bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Ledger row could not be normalized, using defaults", "panic", fmt.Sprint(r))
			t, keep = core.Transaction{}, false
		}
	}()

	t = core.Transaction{
		ID:          parseID(row[ColID]),
		Date:        parseDate(text(row[ColDate])),
		Person:      text(row[ColPerson]),
		Amount:      parseAmount(row[ColAmount]),
		Direction:   parseDirection(text(row[ColType])),
		Description: text(row[ColDescription]),
		Reference:   text(row[ColReferenceNumber]),
	}

	status := core.SettlementStatus(fold(text(row[ColTransactionStatus])))
	if !status.IsValid() {
		status = core.SettlementStatus(fold(text(row[ColStatus])))
	}
	method := core.Instrument(fold(text(row[ColPaymentMethod])))
	cheque := parseChequeStatus(text(row[ColChequeStatus]))

	// Status values typed into the reference number field by older dashboards.
	if ref := fold(t.Reference); ref != "" {
		if s := core.SettlementStatus(ref); s.IsValid() {
			if !status.IsValid() {
				status = s
			}
			t.Reference = ""
		} else if c := parseChequeStatus(ref); c.IsValid() {
			if !cheque.IsValid() {
				cheque = c
			}
			t.Reference = ""
		}
	}

	if !status.IsValid() {
		status = core.Completed
	}
	if !method.IsValid() {
		method = core.Cash
	}
	switch method {
	case core.Cash:
		cheque = ""
	case core.Cheque:
		if !cheque.IsValid() {
			cheque = core.ChequeInClearing
		}
	}
	t.Status = status
	t.Method = method
	t.ChequeStatus = cheque

	if t.Date.IsEmpty() && t.Person == "" && t.Amount.IsZero() {
		return core.Transaction{}, false
	}
	return t, true
}

// TransactionRow renders a record back into a canonical row. Normalizing the
// result yields the same record.
func TransactionRow(t core.Transaction) RawRow {
	row := RawRow{
		ColDate:              t.Date.String(),
		ColPerson:            t.Person,
		ColAmount:            t.Amount.String(),
		ColType:              string(t.Direction),
		ColStatus:            string(t.Status),
		ColDescription:       t.Description,
		ColPaymentMethod:     string(t.Method),
		ColReferenceNumber:   t.Reference,
		ColChequeStatus:      string(t.ChequeStatus),
		ColTransactionStatus: string(t.Status),
	}
	if t.ID != 0 {
		row[ColID] = t.ID
	}
	return row
}

// NormalizePeople canonicalizes the person directory. Rows without a name are
// dropped, and so are later rows repeating an earlier name. A missing category
// defaults to client.
func NormalizePeople(rows []RawRow) []core.Person {
	seen := make(map[string]struct{}, len(rows))
	out := make([]core.Person, 0, len(rows))
	for _, row := range rows {
		name := text(row[ColName])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		category := fold(text(row[ColCategory]))
		if category == "" {
			category = core.CategoryClient
		}
		out = append(out, core.Person{Name: name, Category: category})
	}
	return out
}

// PersonRow renders a person into a canonical row.
func PersonRow(p core.Person) RawRow {
	return RawRow{ColName: p.Name, ColCategory: p.Category}
}

// NormalizeClientExpenses canonicalizes client expense rows. Blank rows are
// dropped; an unparseable quantity defaults to 1.
func NormalizeClientExpenses(rows []RawRow) []core.ClientExpense {
	out := make([]core.ClientExpense, 0, len(rows))
	for _, row := range rows {
		if e, ok := normalizeClientExpense(row); ok {
			out = append(out, e)
		}
	}
	return out
}

func normalizeClientExpense(row RawRow) (e core.ClientExpense, keep bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Client expense row could not be normalized, using defaults", "panic", fmt.Sprint(r))
			e, keep = core.ClientExpense{}, false
		}
	}()

	e = core.ClientExpense{
		ID:          parseID(row[ColExpenseID]),
		Date:        parseDate(text(row[ColExpenseDate])),
		Client:      text(row[ColExpensePerson]),
		Category:    text(row[ColExpenseCategory]),
		Amount:      parseAmount(row[ColExpenseAmount]),
		Quantity:    parseQuantity(row[ColExpenseQuantity]),
		Description: text(row[ColExpenseDescription]),
	}
	if e.Date.IsEmpty() && e.Client == "" && e.Amount.IsZero() {
		return core.ClientExpense{}, false
	}
	return e, true
}

// ClientExpenseRow renders a client expense into a canonical row.
func ClientExpenseRow(e core.ClientExpense) RawRow {
	row := RawRow{
		ColExpenseDate:        e.Date.String(),
		ColExpensePerson:      e.Client,
		ColExpenseCategory:    e.Category,
		ColExpenseAmount:      e.Amount.String(),
		ColExpenseQuantity:    strconv.FormatInt(e.Quantity, 10),
		ColExpenseDescription: e.Description,
	}
	if e.ID != 0 {
		row[ColExpenseID] = e.ID
	}
	return row
}

// text coerces a cell to a trimmed string, mapping missing-value markers to "".
func text(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case []byte:
		s = string(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ""
		}
		s = strconv.FormatFloat(f, 'f', -1, 32)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	if isMissingMarker(s) {
		return ""
	}
	return s
}

func isMissingMarker(s string) bool {
	switch strings.ToLower(s) {
	case "nan", "none", "null", "<na>", "nat":
		return true
	}
	return false
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day())
		}
	}
	return core.Date{}
}

func parseAmount(v any) decimal.Decimal {
	var d decimal.Decimal
	switch val := v.(type) {
	case decimal.Decimal:
		d = val
	case int:
		d = decimal.NewFromInt(int64(val))
	case int64:
		d = decimal.NewFromInt(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(val)
	default:
		s := text(v)
		s = strings.TrimPrefix(s, "Rs.")
		s = strings.TrimPrefix(s, "Rs")
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			return decimal.Zero
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// parseQuantity defaults to 1 for junk, values below 1 and values outside int64.
func parseQuantity(v any) int64 {
	d := parseAmount(v)
	if d.LessThan(decimal.NewFromInt(1)) || d.GreaterThan(maxQuantity) {
		return 1
	}
	return d.IntPart()
}

func parseID(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	}
	id, err := strconv.ParseInt(text(v), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parseDirection(s string) core.Direction {
	switch fold(s) {
	case "incoming", "paid_to_me", "received":
		return core.Incoming
	case "outgoing", "i_paid", "paid":
		return core.Outgoing
	default:
		return ""
	}
}

func parseChequeStatus(s string) core.ChequeStatus {
	s = fold(s)
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return core.ChequeStatus(s)
}
