package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"survey/internal/core"
	"survey/internal/export"
)

type fakeSheets struct {
	mu      sync.Mutex
	calls   []string
	written [][]interface{}
	fail    bool
	// failWrite rejects only value updates.
	failWrite bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	if f.fail {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
		return
	}

	if f.failWrite && r.Method == http.MethodPut {
		http.Error(w, `{"error":{"code":400,"message":"invalid range"}}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id"}`))
	case r.Method == http.MethodPut:
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, "missing valueInputOption", http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.written = vr.Values
		_ = json.NewEncoder(w).Encode(gsheet.UpdateValuesResponse{UpdatedCells: int64(len(vr.Values) * len(export.Columns))})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, sheet string) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "sheet-id", sheet, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fake
}

func TestPublishWritesExportTable(t *testing.T) {
	c, fake := newTestClient(t, "Responses")

	if err := c.Publish(context.Background(), core.SampleRecords()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(fake.calls) != 2 || !strings.HasPrefix(fake.calls[0], "PUT") || !strings.HasPrefix(fake.calls[1], "POST") {
		t.Fatalf("unexpected calls: %v", fake.calls)
	}
	if !strings.Contains(fake.calls[1], "Responses!A7:Z:clear") {
		t.Errorf("rows below the table not cleared: %s", fake.calls[1])
	}
	if len(fake.written) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(fake.written))
	}
	if fake.written[0][0] != "user_id" || fake.written[1][0] != "sample_1" || fake.written[1][6] != "75.56" {
		t.Errorf("unexpected cells: %v / %v", fake.written[0], fake.written[1])
	}
}

func TestPublishSurfacesAPIErrors(t *testing.T) {
	c, fake := newTestClient(t, "Responses")
	fake.fail = true

	err := c.Publish(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "write sheet Responses") {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestPublishFailedWriteKeepsPreviousTable(t *testing.T) {
	c, fake := newTestClient(t, "Responses")
	fake.failWrite = true

	if err := c.Publish(context.Background(), core.SampleRecords()); err == nil {
		t.Fatal("expected write error")
	}
	for _, call := range fake.calls {
		if strings.HasSuffix(call, ":clear") {
			t.Fatalf("sheet was cleared after a failed write: %v", fake.calls)
		}
	}
}

func TestNewValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, " ", "Responses", []byte("{}")); err == nil {
		t.Error("expected error for missing spreadsheet id")
	}
	if _, err := New(ctx, "id", "", []byte("{}")); err == nil {
		t.Error("expected error for missing sheet name")
	}
	if _, err := New(ctx, "id", "Responses", nil); err == nil {
		t.Error("expected error for missing credentials")
	}
	if _, err := New(ctx, "id", "Responses", []byte("not-json")); err == nil {
		t.Error("expected error for malformed credentials")
	}
}

func TestA1(t *testing.T) {
	tests := map[string]string{
		"Responses":      "Responses!A1",
		"2025 Responses": "'2025 Responses'!A1",
		"Bob's":          "'Bob''s'!A1",
	}
	for sheet, want := range tests {
		if got := a1(sheet, "A1"); got != want {
			t.Errorf("a1(%q) = %q, want %q", sheet, got, want)
		}
	}
}
