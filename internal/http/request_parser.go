package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"paytrack/internal/core"
	"paytrack/internal/ledger"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser reads a JSON or form-encoded body once.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body as JSON when it looks like an object, otherwise as a
// form.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if strings.HasPrefix(trimmed, "{") {
		p.jsonData = make(map[string]any)
		p.err = json.Unmarshal(p.body, &p.jsonData)
		return p.err
	}
	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a sanitized, trimmed value.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if v, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(v))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// TransactionForm is a submitted transaction before conversion.
type TransactionForm struct {
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Person       string `json:"person" validate:"required,max=100"`
	Amount       string `json:"amount" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=incoming outgoing"`
	Status       string `json:"transaction_status" validate:"omitempty,oneof=completed pending"`
	Method       string `json:"payment_method" validate:"omitempty,oneof=cash cheque"`
	Reference    string `json:"reference_number" validate:"required_if=Method cheque,max=100"`
	ChequeStatus string `json:"cheque_status" validate:"omitempty,oneof=issued in_clearing bounced cleared"`
	Description  string `json:"description" validate:"max=500"`
}

func bindTransactionForm(p *RequestBodyParser) TransactionForm {
	return TransactionForm{
		Date:         p.Get("date"),
		Person:       p.Get("person"),
		Amount:       p.Get("amount"),
		Type:         strings.ToLower(p.Get("type")),
		Status:       strings.ToLower(p.Get("transaction_status")),
		Method:       strings.ToLower(p.Get("payment_method")),
		Reference:    p.Get("reference_number"),
		ChequeStatus: strings.ToLower(p.Get("cheque_status")),
		Description:  p.Get("description"),
	}
}

// Transaction converts a validated form. currency is stripped from the amount.
func (f TransactionForm) Transaction(currency string) (core.Transaction, error) {
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.Transaction{}, core.ErrEmptyDate
	}
	amount, err := core.ParseAmount(stripCurrency(f.Amount, currency))
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		Date:         date,
		Person:       f.Person,
		Amount:       amount,
		Direction:    core.Direction(f.Type),
		Status:       core.SettlementStatus(f.Status),
		Description:  f.Description,
		Method:       core.Instrument(f.Method),
		Reference:    f.Reference,
		ChequeStatus: core.ChequeStatus(f.ChequeStatus),
	}
	if t.Method != core.Cheque {
		t.ChequeStatus = ""
	}
	return t, nil
}

// PersonForm is a submitted counterparty.
type PersonForm struct {
	Name     string `json:"name" validate:"required,max=100"`
	Category string `json:"category" validate:"max=50"`
}

// ClientExpenseForm is a submitted client expense.
type ClientExpenseForm struct {
	Date        string `json:"expense_date" validate:"required,datetime=2006-01-02"`
	Client      string `json:"expense_person" validate:"required,max=100"`
	Category    string `json:"expense_category" validate:"max=50"`
	Amount      string `json:"expense_amount" validate:"required"`
	Quantity    string `json:"expense_quantity" validate:"omitempty,number"`
	Description string `json:"expense_description" validate:"max=500"`
}

func bindClientExpenseForm(p *RequestBodyParser) ClientExpenseForm {
	return ClientExpenseForm{
		Date:        p.Get("expense_date"),
		Client:      p.Get("expense_person"),
		Category:    p.Get("expense_category"),
		Amount:      p.Get("expense_amount"),
		Quantity:    p.Get("expense_quantity"),
		Description: p.Get("expense_description"),
	}
}

func (f ClientExpenseForm) ClientExpense(currency string) (core.ClientExpense, error) {
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.ClientExpense{}, core.ErrEmptyDate
	}
	amount, err := core.ParseAmount(stripCurrency(f.Amount, currency))
	if err != nil {
		return core.ClientExpense{}, err
	}
	qty := int64(1)
	if f.Quantity != "" {
		if qty, err = strconv.ParseInt(f.Quantity, 10, 64); err != nil || qty < 1 {
			return core.ClientExpense{}, core.ErrInvalidQuantity
		}
	}
	return core.ClientExpense{
		Date:        date,
		Client:      f.Client,
		Category:    f.Category,
		Amount:      amount,
		Quantity:    qty,
		Description: f.Description,
	}, nil
}

func stripCurrency(amount, currency string) string {
	amount = strings.TrimSpace(amount)
	if currency != "" {
		amount = strings.TrimSpace(strings.TrimPrefix(amount, currency))
	}
	return amount
}

// validationMessage turns validator errors into one user-facing sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldLabel(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "required_if":
			msgs = append(msgs, field+" is required for cheque payments")
		case "datetime":
			msgs = append(msgs, field+" must be a date (YYYY-MM-DD)")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func fieldLabel(field string) string {
	switch field {
	case "Person":
		return "counterparty"
	case "Type":
		return "direction"
	case "Method":
		return "payment method"
	case "Reference":
		return "reference number"
	case "ChequeStatus":
		return "cheque status"
	case "Client":
		return "client"
	default:
		return strings.ToLower(field)
	}
}

// parseFilter reads the summary and transaction list query parameters.
func parseFilter(q url.Values) (ledger.Filter, error) {
	var f ledger.Filter
	var err error
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if f.From, err = core.ParseDate(v); err != nil {
			return f, fmt.Errorf("%w: from must be a date (YYYY-MM-DD)", core.ErrValidation)
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if f.To, err = core.ParseDate(v); err != nil {
			return f, fmt.Errorf("%w: to must be a date (YYYY-MM-DD)", core.ErrValidation)
		}
	}
	f.Person = strings.TrimSpace(q.Get("person"))
	f.Reference = strings.TrimSpace(q.Get("ref"))

	if v := strings.ToLower(strings.TrimSpace(q.Get("direction"))); v != "" && v != "all" {
		f.Direction = core.Direction(v)
		if !f.Direction.IsValid() {
			return f, core.ErrInvalidDirection
		}
	}
	if v := strings.ToLower(strings.TrimSpace(q.Get("method"))); v != "" {
		f.Method = core.Instrument(v)
		if !f.Method.IsValid() {
			return f, core.ErrInvalidInstrument
		}
	}
	if v := strings.ToLower(strings.TrimSpace(q.Get("status"))); v != "" {
		f.Status = core.SettlementStatus(v)
		if !f.Status.IsValid() {
			return f, core.ErrInvalidStatus
		}
	}
	if v := strings.ToLower(strings.TrimSpace(q.Get("cheque_status"))); v != "" {
		f.ChequeStatus = core.ChequeStatus(v)
		if !f.ChequeStatus.IsValid() {
			return f, core.ErrInvalidCheque
		}
	}
	return f, nil
}
