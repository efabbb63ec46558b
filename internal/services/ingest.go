package services

import (
	"fmt"

	"survey/internal/core"
)

// Policy decides what a batch load does with a document that fails
// validation.
type Policy string

const (
	// PolicySkip drops invalid documents and reports them.
	PolicySkip Policy = "skip"
	// PolicyAbort fails the whole load on the first invalid document.
	PolicyAbort Policy = "abort"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySkip, PolicyAbort:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown ingest policy %q", s)
	}
}

// RecordError ties a validation failure to the position and id of the
// offending document.
type RecordError struct {
	Index int
	ID    string
	Err   error
}

func (e *RecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record %d (id %s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// LoadReport summarizes a batch decode.
type LoadReport struct {
	Loaded  int
	Skipped []RecordError
}

// DecodeDocuments converts raw documents into records under policy. With
// PolicyAbort the first failure is returned as a *RecordError and no
// records are returned.
func DecodeDocuments(docs []core.Document, policy Policy) ([]core.Record, LoadReport, error) {
	var report LoadReport
	records := make([]core.Record, 0, len(docs))
	for i, doc := range docs {
		rec, err := core.FromDocument(doc)
		if err != nil {
			rerr := RecordError{Index: i, ID: rawID(doc), Err: err}
			if policy == PolicyAbort {
				return nil, report, &rerr
			}
			report.Skipped = append(report.Skipped, rerr)
			continue
		}
		// Records read back from a store are persisted by definition.
		if id := rec.ID(); id != "" {
			_ = rec.MarkPersisted(id)
		}
		records = append(records, rec)
	}
	report.Loaded = len(records)
	return records, report, nil
}

func rawID(doc core.Document) string {
	for _, key := range []string{core.KeyID, core.KeyMongoID} {
		if v, ok := doc[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}
