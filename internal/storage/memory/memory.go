package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"survey/internal/core"
	"survey/internal/export"
)

// SeedFile is the export-format CSV NewFromFiles looks for under its base
// directory.
const SeedFile = "seed_responses.csv"

// Store keeps responses in process memory. Ids are "mem:N".
type Store struct {
	mu   sync.Mutex
	docs []core.Document
}

func New(seed ...core.Record) *Store {
	s := &Store{}
	for _, r := range seed {
		s.add(r.Document())
	}
	return s
}

// NewFromFiles seeds the store from base/seed_responses.csv when present.
// A missing file yields an empty store; a malformed one is an error.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	f, err := os.Open(filepath.Join(base, SeedFile))
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	docs, err := export.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	for _, doc := range docs {
		delete(doc, core.KeyID)
		s.add(doc)
	}
	slog.Debug("Seeded memory store", "count", len(docs), "path", f.Name())
	return s, nil
}

// Insert stores the record and returns a synthetic id.
func (s *Store) Insert(_ context.Context, r core.Record) (string, error) {
	return s.add(r.Document()), nil
}

// ListDocuments returns copies of the stored documents in insertion order.
func (s *Store) ListDocuments(_ context.Context) ([]core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Document, len(s.docs))
	for i, doc := range s.docs {
		out[i] = maps.Clone(doc)
	}
	return out, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) add(doc core.Document) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("mem:%d", len(s.docs)+1)
	doc = maps.Clone(doc)
	doc[core.KeyID] = id
	s.docs = append(s.docs, doc)
	return id
}
