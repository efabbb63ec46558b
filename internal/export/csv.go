// Package export serializes survey records into the fixed-column tabular
// format consumed by analysis tooling.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"survey/internal/core"
)

// Columns is the fixed column order of the export.
var Columns = []string{
	"user_id",
	"age",
	"gender",
	"total_income",
	"total_expenses",
	"savings",
	"savings_rate",
	core.Utilities,
	core.Entertainment,
	core.SchoolFees,
	core.Shopping,
	core.Healthcare,
	"submission_date",
}

// Row renders r in Columns order.
func Row(r core.Record) []string {
	row := []string{
		r.ID(),
		strconv.Itoa(r.Age),
		r.Gender,
		FormatAmount(r.TotalIncome()),
		FormatAmount(r.TotalExpenses()),
		FormatAmount(r.Savings()),
		FormatRate(r.SavingsRate()),
	}
	for _, category := range core.CanonicalCategories() {
		row = append(row, FormatAmount(r.Expense(category)))
	}
	return append(row, r.SubmittedAt.Format(core.TimeLayout))
}

// Table returns the header followed by one row per record.
func Table(records []core.Record) [][]string {
	out := make([][]string, 0, len(records)+1)
	out = append(out, append([]string(nil), Columns...))
	for _, r := range records {
		out = append(out, Row(r))
	}
	return out
}

// WriteCSV writes the header and all rows to w in a single write, so a
// failing record never leaves a truncated table behind.
func WriteCSV(w io.Writer, records []core.Record) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(Table(records)); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteFile atomically replaces path with the CSV export of records. The
// data is written to a temporary file in the same directory and renamed
// into place; on failure the destination is left untouched.
func WriteFile(path string, records []core.Record) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, records); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// FormatAmount renders an amount at full precision, always with a decimal
// point (0 renders as "0.0").
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatRate renders a savings rate percentage as exported.
func FormatRate(v float64) string {
	return FormatFixed2(v)
}

// FormatFixed2 renders v rounded half away from zero with exactly 2
// decimals. Used for amounts and averages shown to people.
func FormatFixed2(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// Round2 rounds v to 2 decimals for presentation.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
