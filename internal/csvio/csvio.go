// Package csvio reads and writes the legacy flat-file ledgers.
//
// Reading is lenient: the header decides which columns exist, short
// rows are padded and extra cells are ignored. Values are handed to the ledger
// normalizer untouched.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"paytrack/internal/core"
	"paytrack/internal/ledger"
)

// ReadRows parses a CSV stream into raw rows keyed by header name.
// An empty stream yields no rows and no error.
func ReadRows(r io.Reader) ([]ledger.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var rows []ledger.RawRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := make(ledger.RawRow, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteRows writes rows with the given header. Missing cells are written empty.
func WriteRows(w io.Writer, columns []string, rows []ledger.RawRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			v, ok := row[col]
			if !ok || v == nil {
				rec[i] = ""
				continue
			}
			rec[i] = fmt.Sprint(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTransactions loads and normalizes a payments ledger file.
func ReadTransactions(path string) ([]core.Transaction, error) {
	rows, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ledger.NormalizeTransactions(rows), nil
}

// ReadPeople loads and normalizes a person directory file. Files written before the
// category column existed are accepted; every person then defaults to client.
func ReadPeople(path string) ([]core.Person, error) {
	rows, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ledger.NormalizePeople(rows), nil
}

// ReadClientExpenses loads and normalizes a client expense file.
func ReadClientExpenses(path string) ([]core.ClientExpense, error) {
	rows, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ledger.NormalizeClientExpenses(rows), nil
}

// WriteTransactions writes the canonical payments ledger.
func WriteTransactions(path string, txns []core.Transaction) error {
	rows := make([]ledger.RawRow, len(txns))
	for i, t := range txns {
		rows[i] = ledger.TransactionRow(t)
	}
	return writeFile(path, ledger.TransactionColumns, rows)
}

// WritePeople writes the canonical person directory.
func WritePeople(path string, people []core.Person) error {
	rows := make([]ledger.RawRow, len(people))
	for i, p := range people {
		rows[i] = ledger.PersonRow(p)
	}
	return writeFile(path, ledger.PersonColumns, rows)
}

// WriteClientExpenses writes the canonical client expense ledger.
func WriteClientExpenses(path string, expenses []core.ClientExpense) error {
	rows := make([]ledger.RawRow, len(expenses))
	for i, e := range expenses {
		rows[i] = ledger.ClientExpenseRow(e)
	}
	return writeFile(path, ledger.ExpenseColumns, rows)
}

func readFile(path string) ([]ledger.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, columns []string, rows []ledger.RawRow) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteRows(tmp, columns, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
