package memory

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"survey/internal/core"
	"survey/internal/export"
)

func TestMemoryStoreInsertAndList(t *testing.T) {
	ctx := context.Background()
	s := New()

	ref, err := s.Insert(ctx, core.MustRecord(core.Input{
		Age: 30, Gender: "Male", TotalIncome: 1000,
		Expenses: map[string]float64{core.Utilities: 100},
	}))
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected insert: ref=%q err=%v", ref, err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil || len(docs) != 1 {
		t.Fatalf("unexpected list: %v err=%v", docs, err)
	}
	rec, err := core.FromDocument(docs[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID() != "mem:1" || rec.Savings() != 900 {
		t.Fatalf("unexpected record: %v", rec)
	}

	// Listed documents are copies.
	docs[0][core.KeyAge] = -1
	again, _ := s.ListDocuments(ctx)
	if again[0][core.KeyAge] != 30 {
		t.Fatalf("store mutated through listed document: %v", again[0])
	}
}

func TestNewSeedsRecords(t *testing.T) {
	s := New(core.SampleRecords()...)
	if s.Len() != 5 {
		t.Fatalf("expected 5 seeded records, got %d", s.Len())
	}
	docs, _ := s.ListDocuments(context.Background())
	if docs[4][core.KeyID] != "mem:5" {
		t.Fatalf("unexpected id: %v", docs[4][core.KeyID])
	}
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()

	// No file -> empty store
	s, err := NewFromFiles(dir)
	if err != nil || s.Len() != 0 {
		t.Fatalf("expected empty store, len=%d err=%v", s.Len(), err)
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, core.SampleRecords()[:2]); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SeedFile), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	s, err = NewFromFiles(dir)
	if err != nil || s.Len() != 2 {
		t.Fatalf("expected 2 seeded records, len=%d err=%v", s.Len(), err)
	}
	docs, _ := s.ListDocuments(context.Background())
	if docs[0][core.KeyID] != "mem:1" {
		t.Fatalf("seed ids should be reassigned, got %v", docs[0][core.KeyID])
	}

	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte("not,a,survey\n"), 0o644); err != nil {
		t.Fatalf("write bad seed: %v", err)
	}
	if _, err := NewFromFiles(dir); err == nil {
		t.Fatalf("expected error for malformed seed file")
	}
}
