package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"paytrack/internal/core"
)

// SheetsConfig configures the Google Sheets ledger mirror.
type SheetsConfig struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// sheetValues is the slice of the Sheets values API the mirror needs.
type sheetValues interface {
	Clear(ctx context.Context, rng string) error
	Update(ctx context.Context, rng string, rows [][]any) error
}

// SheetsPublisher mirrors the normalized ledger into one sheet, replacing its
// previous contents. The sheet name is prefixed with the current year unless it
// already starts with one.
type SheetsPublisher struct {
	values    sheetValues
	sheetName string
}

// NewSheetsPublisher authenticates with a service account.
func NewSheetsPublisher(ctx context.Context, cfg SheetsConfig) (*SheetsPublisher, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	name := cfg.SheetName
	if name == "" {
		name = "Payments"
	}
	return &SheetsPublisher{
		values:    &googleValues{svc: svc, spreadsheetID: cfg.SpreadsheetID},
		sheetName: yearPrefixedName(name, time.Now().Year()),
	}, nil
}

// newSheetsService initializes a Sheets service from inline JSON or a key file,
// falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg SheetsConfig) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (p *SheetsPublisher) Name() string { return TargetSheets }

// Publish rewrites the sheet with a header row and one row per transaction.
func (p *SheetsPublisher) Publish(ctx context.Context, a Artifact) error {
	all := fmt.Sprintf("%s!A:J", p.sheetName)
	if err := p.values.Clear(ctx, all); err != nil {
		return fmt.Errorf("clear %s: %w", all, err)
	}
	rows := ledgerRows(a.Ledger)
	rng := fmt.Sprintf("%s!A1:J%d", p.sheetName, len(rows))
	if err := p.values.Update(ctx, rng, rows); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

var sheetHeader = []any{
	"Date", "Counterparty", "Direction", "Amount", "Status",
	"Method", "Reference", "Cheque status", "Description", "ID",
}

func ledgerRows(txns []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txns)+1)
	rows = append(rows, sheetHeader)
	for _, t := range txns {
		amount, _ := t.Amount.Float64()
		rows = append(rows, []any{
			t.Date.String(),
			t.Person,
			string(t.Direction),
			amount,
			string(t.Status),
			string(t.Method),
			t.Reference,
			string(t.ChequeStatus),
			t.Description,
			strconv.FormatInt(t.ID, 10),
		})
	}
	return rows
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

type googleValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (g *googleValues) Clear(ctx context.Context, rng string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (g *googleValues) Update(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
