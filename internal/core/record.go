package core

import (
	"fmt"
	"maps"
	"math"
	"strings"
	"time"
)

// TimeLayout is the textual submission date format used in exports.
const TimeLayout = "2006-01-02 15:04:05"

// Record is one respondent's survey answers plus the metrics derived from them.
//
// Income and expenses are only reachable through methods so that the derived
// totals can never go stale: every constructor and mutator re-derives.
type Record struct {
	Age         int
	Gender      string
	SubmittedAt time.Time

	id        string
	persisted bool
	income    float64
	expenses  map[string]float64
	totals    Totals
}

// Input carries the raw values used to build a Record.
type Input struct {
	ID          string
	Age         int
	Gender      string
	TotalIncome float64
	Expenses    map[string]float64
	SubmittedAt time.Time
}

// NewRecord validates in and returns a Record with derived totals populated.
// A zero SubmittedAt defaults to the current time.
func NewRecord(in Input) (Record, error) {
	if in.Age <= 0 {
		return Record{}, invalid("age", "must be a positive integer")
	}
	gender := strings.TrimSpace(in.Gender)
	if gender == "" {
		return Record{}, invalid("gender", "is required")
	}
	if err := validAmount("total_income", in.TotalIncome); err != nil {
		return Record{}, err
	}
	expenses := make(map[string]float64, len(in.Expenses))
	for category, amount := range in.Expenses {
		category = strings.TrimSpace(category)
		if category == "" {
			return Record{}, invalid("expenses", "category name is empty")
		}
		if err := validAmount("expenses."+category, amount); err != nil {
			return Record{}, err
		}
		expenses[category] = amount
	}
	submitted := in.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	r := Record{
		Age:         in.Age,
		Gender:      gender,
		SubmittedAt: submitted,
		id:          strings.TrimSpace(in.ID),
		income:      in.TotalIncome,
		expenses:    expenses,
	}
	r.rederive()
	return r, nil
}

// MustRecord is NewRecord for fixtures known to be valid.
func MustRecord(in Input) Record {
	r, err := NewRecord(in)
	if err != nil {
		panic(fmt.Sprintf("core: invalid record fixture: %v", err))
	}
	return r
}

func validAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, "must be a finite number")
	}
	if v < 0 {
		return invalid(field, "must not be negative")
	}
	return nil
}

func (r *Record) rederive() {
	r.totals = Derive(r.income, r.expenses)
}

// ID returns the identifier, empty when the record was never persisted.
func (r Record) ID() string { return r.id }

// Persisted reports whether the storage layer has assigned the id.
func (r Record) Persisted() bool { return r.persisted }

// SetID assigns an identifier to a record that has not been persisted yet.
func (r *Record) SetID(id string) error {
	if r.persisted && id != r.id {
		return ErrIDImmutable
	}
	r.id = id
	return nil
}

// MarkPersisted records the storage-assigned id and freezes it.
func (r *Record) MarkPersisted(id string) error {
	if r.persisted && id != r.id {
		return ErrIDImmutable
	}
	r.id = id
	r.persisted = true
	return nil
}

func (r Record) TotalIncome() float64 { return r.income }

// Expenses returns a copy of the expense mapping.
func (r Record) Expenses() map[string]float64 {
	return maps.Clone(r.expenses)
}

// Expense returns the amount for category, 0 when absent.
func (r Record) Expense(category string) float64 {
	return r.expenses[category]
}

// HasExpense reports whether category is present in the mapping.
func (r Record) HasExpense(category string) bool {
	_, ok := r.expenses[category]
	return ok
}

// AddExpense adds or replaces the amount for category.
func (r *Record) AddExpense(category string, amount float64) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return invalid("expenses", "category name is empty")
	}
	if err := validAmount("expenses."+category, amount); err != nil {
		return err
	}
	if r.expenses == nil {
		r.expenses = make(map[string]float64)
	} else {
		// The map may be shared with a copy of this record.
		r.expenses = maps.Clone(r.expenses)
	}
	r.expenses[category] = amount
	r.rederive()
	return nil
}

// RemoveExpense drops category; missing categories are a no-op.
func (r *Record) RemoveExpense(category string) {
	if _, ok := r.expenses[category]; !ok {
		return
	}
	r.expenses = maps.Clone(r.expenses)
	delete(r.expenses, category)
	r.rederive()
}

func (r Record) Totals() Totals         { return r.totals }
func (r Record) TotalExpenses() float64 { return r.totals.TotalExpenses }
func (r Record) Savings() float64       { return r.totals.Savings }
func (r Record) SavingsRate() float64   { return r.totals.SavingsRate }

func (r Record) String() string {
	return fmt.Sprintf("Record(id=%s, age=%d, income=%.2f, savings=%.2f)", r.id, r.Age, r.income, r.totals.Savings)
}
