package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"survey/internal/core"
)

// ErrHeader is returned when a CSV does not start with the export header.
var ErrHeader = errors.New("unexpected export header")

// ReadCSV parses a table produced by WriteCSV back into raw documents, one
// per row. Derived columns are ignored; they are recomputed on ingestion.
// Cells that are not numbers are kept as text so that ingestion reports them
// as validation failures.
func ReadCSV(r io.Reader) ([]core.Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range Columns {
		if strings.TrimPrefix(header[i], "\ufeff") != name {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrHeader, i+1, header[i], name)
		}
	}

	var docs []core.Document
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(docs)+2, err)
		}
		docs = append(docs, rowDocument(row))
	}
}

func rowDocument(row []string) core.Document {
	doc := core.Document{
		core.KeyGender:         row[2],
		core.KeySubmissionDate: row[12],
	}
	if id := strings.TrimSpace(row[0]); id != "" {
		doc[core.KeyID] = id
	}
	if age, err := strconv.Atoi(strings.TrimSpace(row[1])); err == nil {
		doc[core.KeyAge] = age
	} else {
		doc[core.KeyAge] = row[1]
	}
	doc[core.KeyTotalIncome] = numberCell(row[3])

	expenses := make(map[string]any)
	for i, category := range core.CanonicalCategories() {
		v := numberCell(row[7+i])
		if f, ok := v.(float64); ok && f == 0 {
			continue
		}
		expenses[category] = v
	}
	doc[core.KeyExpenses] = expenses
	return doc
}

func numberCell(s string) any {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}
