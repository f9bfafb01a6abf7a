// Package report renders the static HTML summary page that is published after
// every ledger mutation.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paytrack/internal/core"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Snapshot is everything the summary page shows, computed from one ledger reload.
type Snapshot struct {
	Transactions []core.Transaction
	Summary      core.Summary
	Expenses     core.ExpenseSummary
}

// Renderer produces the summary artifact.
type Renderer struct {
	tmpl     *template.Template
	title    string
	currency string
	now      func() time.Time
}

// NewRenderer parses the embedded summary template.
func NewRenderer(title, currency string) (*Renderer, error) {
	r := &Renderer{title: title, currency: currency, now: time.Now}
	tmpl, err := template.New("summary.html").Funcs(template.FuncMap{
		"money":  func(d decimal.Decimal) string { return core.FormatAmount(r.currency, d) },
		"label":  func(d core.Direction) string { return d.Label() },
		"title":  titleCase,
		"signed": func(d decimal.Decimal) string { return signClass(d) },
	}).ParseFS(templatesFS, "templates/summary.html")
	if err != nil {
		return nil, fmt.Errorf("parse summary template: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

type pageData struct {
	Title       string
	GeneratedAt string
	Summary     core.Summary
	Methods     []methodRow
	Rows        []core.Transaction
	Expenses    core.ExpenseSummary
}

type methodRow struct {
	Method   string
	Incoming decimal.Decimal
	Outgoing decimal.Decimal
}

// Render writes the summary page for snap to w. Transactions are listed newest
// first; rows without a date go last.
func (r *Renderer) Render(w io.Writer, snap Snapshot) error {
	rows := make([]core.Transaction, len(snap.Transactions))
	copy(rows, snap.Transactions)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Date, rows[j].Date
		if a.IsEmpty() != b.IsEmpty() {
			return b.IsEmpty()
		}
		return a.After(b.Time)
	})

	methods := make([]methodRow, 0, len(core.Instruments()))
	for _, m := range core.Instruments() {
		methods = append(methods, methodRow{
			Method:   titleCase(string(m)),
			Incoming: snap.Summary.Method(core.Incoming, m),
			Outgoing: snap.Summary.Method(core.Outgoing, m),
		})
	}

	data := pageData{
		Title:       r.title,
		GeneratedAt: r.now().Format("2006-01-02 15:04"),
		Summary:     snap.Summary,
		Methods:     methods,
		Rows:        rows,
		Expenses:    snap.Expenses,
	}
	if err := r.tmpl.ExecuteTemplate(w, "summary.html", data); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}

// RenderBytes renders the page into memory.
func (r *Renderer) RenderBytes(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// titleCase turns "in_clearing" into "In Clearing".
func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func signClass(d decimal.Decimal) string {
	switch {
	case d.IsNegative():
		return "negative"
	case d.IsPositive():
		return "positive"
	default:
		return "zero"
	}
}
