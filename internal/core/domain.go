package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"

	Completed SettlementStatus = "completed"
	Pending   SettlementStatus = "pending"

	Cash   Instrument = "cash"
	Cheque Instrument = "cheque"

	ChequeIssued     ChequeStatus = "issued"
	ChequeInClearing ChequeStatus = "in_clearing"
	ChequeBounced    ChequeStatus = "bounced"
	ChequeCleared    ChequeStatus = "cleared"

	CategoryInvestor = "investor"
	CategoryClient   = "client"
)

type (
	Direction        string
	SettlementStatus string
	Instrument       string
	ChequeStatus     string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID           int64 // Database ID, zero before insert
		Date         Date
		Person       string // Counterparty, matched to Person.Name by exact name
		Amount       decimal.Decimal
		Direction    Direction
		Status       SettlementStatus
		Description  string
		Method       Instrument
		Reference    string
		ChequeStatus ChequeStatus
	}

	Person struct {
		Name     string
		Category string
	}

	ClientExpense struct {
		ID          int64
		Date        Date
		Client      string
		Category    string
		Amount      decimal.Decimal // Unit amount
		Quantity    int64
		Description string
	}
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("already exists")
	ErrInUse      = errors.New("still referenced")

	ErrEmptyDate          = fmt.Errorf("%w: date is required", ErrValidation)
	ErrEmptyPerson        = fmt.Errorf("%w: counterparty is required", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrInvalidDirection   = fmt.Errorf("%w: invalid direction", ErrValidation)
	ErrInvalidStatus      = fmt.Errorf("%w: invalid settlement status", ErrValidation)
	ErrInvalidInstrument  = fmt.Errorf("%w: invalid payment method", ErrValidation)
	ErrInvalidCheque      = fmt.Errorf("%w: invalid cheque status", ErrValidation)
	ErrMissingReference   = fmt.Errorf("%w: reference number is required for cheque payments", ErrValidation)
	ErrChequeStatusOnCash = fmt.Errorf("%w: cheque status must be empty for cash payments", ErrValidation)
	ErrReferenceIsStatus  = fmt.Errorf("%w: reference number cannot be a status value", ErrValidation)
	ErrEmptyName          = fmt.Errorf("%w: name is required", ErrValidation)
	ErrInvalidQuantity    = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max 500 characters)", ErrValidation)
)

// DateLayout is the canonical on-disk and wire date format.
const DateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in the canonical YYYY-MM-DD layout.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// IsEmpty reports whether the date is absent or was unparseable.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String renders the date as YYYY-MM-DD, or "" when empty.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrEmptyDate
	}
	return nil
}

func (d Direction) IsValid() bool {
	return d == Incoming || d == Outgoing
}

// Label returns the wording used on the dashboard and summary page.
func (d Direction) Label() string {
	switch d {
	case Incoming:
		return "Received from"
	case Outgoing:
		return "Paid to"
	default:
		return ""
	}
}

func (s SettlementStatus) IsValid() bool {
	return s == Completed || s == Pending
}

func (i Instrument) IsValid() bool {
	return i == Cash || i == Cheque
}

func (c ChequeStatus) IsValid() bool {
	switch c {
	case ChequeIssued, ChequeInClearing, ChequeBounced, ChequeCleared:
		return true
	default:
		return false
	}
}

// Directions lists the valid directions in display order.
func Directions() []Direction { return []Direction{Incoming, Outgoing} }

// Instruments lists the valid payment methods in display order.
func Instruments() []Instrument { return []Instrument{Cash, Cheque} }

// SettlementStatuses lists the valid settlement statuses in display order.
func SettlementStatuses() []SettlementStatus { return []SettlementStatus{Completed, Pending} }

// ChequeStatuses lists the valid cheque clearance statuses in lifecycle order.
func ChequeStatuses() []ChequeStatus {
	return []ChequeStatus{ChequeIssued, ChequeInClearing, ChequeBounced, ChequeCleared}
}

// Validate checks a transaction submitted by the user before it is stored.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Person) == "" {
		return ErrEmptyPerson
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Direction.IsValid() {
		return ErrInvalidDirection
	}
	if !t.Status.IsValid() {
		return ErrInvalidStatus
	}
	if !t.Method.IsValid() {
		return ErrInvalidInstrument
	}
	if len(t.Description) > 500 {
		return ErrDescriptionTooLong
	}
	if referenceIsStatus(t.Reference) {
		return ErrReferenceIsStatus
	}
	switch t.Method {
	case Cheque:
		if strings.TrimSpace(t.Reference) == "" {
			return ErrMissingReference
		}
		if !t.ChequeStatus.IsValid() {
			return ErrInvalidCheque
		}
	case Cash:
		if t.ChequeStatus != "" {
			return ErrChequeStatusOnCash
		}
	}
	return nil
}

// referenceIsStatus reports whether ref reads as a settlement or cheque status.
// The normalizer moves such references into the status fields on load.
func referenceIsStatus(ref string) bool {
	f := strings.ToLower(strings.TrimSpace(ref))
	if f == "" {
		return false
	}
	if SettlementStatus(f).IsValid() {
		return true
	}
	return ChequeStatus(strings.NewReplacer(" ", "_", "-", "_").Replace(f)).IsValid()
}

// IsPending reports whether the transaction is still outstanding.
func (t Transaction) IsPending() bool {
	return t.Status == Pending
}

func (p Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Total returns unit amount times quantity.
func (e ClientExpense) Total() decimal.Decimal {
	return e.Amount.Mul(decimal.NewFromInt(e.Quantity))
}

func (e ClientExpense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Client) == "" {
		return ErrEmptyPerson
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if len(e.Description) > 500 {
		return ErrDescriptionTooLong
	}
	return nil
}
