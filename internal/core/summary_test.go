package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSummarizeEmpty(t *testing.T) {
	s, ok := Summarize(nil)
	if ok {
		t.Fatalf("expected no data for empty input")
	}
	if s.TotalParticipants != 0 || s.GenderDistribution != nil {
		t.Fatalf("expected zero summary, got %+v", s)
	}
	if _, ok := Summarize([]Record{}); ok {
		t.Fatalf("expected no data for empty slice")
	}
}

func TestSummarize(t *testing.T) {
	records := []Record{
		MustRecord(Input{Age: 20, Gender: "Female", TotalIncome: 1000, Expenses: map[string]float64{Healthcare: 200}}),
		MustRecord(Input{Age: 30, Gender: "Male", TotalIncome: 2000, Expenses: map[string]float64{Shopping: 500}}),
		MustRecord(Input{Age: 40, Gender: "Female", TotalIncome: 3000, Expenses: map[string]float64{Healthcare: 0, Shopping: 100}}),
	}
	s, ok := Summarize(records)
	if !ok {
		t.Fatalf("expected data")
	}
	if s.TotalParticipants != 3 || s.AvgAge != 30 || s.AvgIncome != 2000 {
		t.Fatalf("unexpected averages: %+v", s)
	}
	if s.AvgExpenses != 800.0/3 || s.AvgSavings != (800+1500+2900)/3.0 {
		t.Fatalf("unexpected expense averages: %+v", s)
	}

	if len(s.GenderDistribution) != 2 || s.GenderDistribution.Get("Female") != 2 || s.GenderDistribution.Get("Male") != 1 {
		t.Fatalf("unexpected gender distribution: %+v", s.GenderDistribution)
	}
	if s.GenderDistribution[0].Name != "Female" {
		t.Fatalf("distribution must keep first-appearance order: %+v", s.GenderDistribution)
	}

	// Only one record spent on healthcare; the mean is not diluted by the others.
	if got := s.ExpenseCategories.Get(Healthcare); got != 200 {
		t.Fatalf("healthcare mean = %v, want 200", got)
	}
	if got := s.ExpenseCategories.Get(Shopping); got != 300 {
		t.Fatalf("shopping mean = %v, want 300", got)
	}
	if got := s.ExpenseCategories.Get(SchoolFees); got != 0 {
		t.Fatalf("category without contributors = %v, want 0", got)
	}
	if len(s.ExpenseCategories) != len(CanonicalCategories()) {
		t.Fatalf("expected every canonical category, got %+v", s.ExpenseCategories)
	}
}

func TestSummaryJSON(t *testing.T) {
	records := []Record{
		MustRecord(Input{Age: 30, Gender: "Male", TotalIncome: 100}),
		MustRecord(Input{Age: 30, Gender: "Female", TotalIncome: 100}),
		MustRecord(Input{Age: 30, Gender: "Male", TotalIncome: 100}),
	}
	s, _ := Summarize(records)
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"total_participants", "avg_age", "avg_income", "avg_expenses", "avg_savings", "gender_distribution", "expense_categories"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q in %s", key, b)
		}
	}
	if got := string(decoded["gender_distribution"]); got != `{"Male":2,"Female":1}` {
		t.Fatalf("gender_distribution = %s", got)
	}
	want := `{"utilities":0,"entertainment":0,"school_fees":0,"shopping":0,"healthcare":0}`
	if got := string(decoded["expense_categories"]); got != want {
		t.Fatalf("expense_categories = %s, want %s", got, want)
	}
}

func TestMostRecentFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, offset time.Duration) Record {
		return MustRecord(Input{ID: id, Age: 30, Gender: "F", TotalIncome: 1, SubmittedAt: base.Add(offset)})
	}
	in := []Record{mk("old", 0), mk("new", 2*time.Hour), mk("tie-a", time.Hour), mk("tie-b", time.Hour)}

	got := MostRecentFirst(in)
	want := []string{"new", "tie-a", "tie-b", "old"}
	for i, id := range want {
		if got[i].ID() != id {
			t.Fatalf("position %d = %q, want %q", i, got[i].ID(), id)
		}
	}
	if in[0].ID() != "old" {
		t.Fatal("input slice was reordered")
	}
}
