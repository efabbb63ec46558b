package core

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Count is the number of records sharing a value.
type Count struct {
	Name  string
	Count int
}

// Distribution is a list of counts kept in order of first appearance.
// It marshals to a JSON object preserving that order.
type Distribution []Count

// Get returns the count for name, 0 when absent.
func (d Distribution) Get(name string) int {
	for _, c := range d {
		if c.Name == name {
			return c.Count
		}
	}
	return 0
}

func (d Distribution) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(d), func(i int) (string, any) { return d[i].Name, d[i].Count })
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount float64
}

// CategoryAmounts is an ordered category → amount mapping.
type CategoryAmounts []CategoryAmount

// Get returns the amount for name, 0 when absent.
func (c CategoryAmounts) Get(name string) float64 {
	for _, ca := range c {
		if ca.Name == name {
			return ca.Amount
		}
	}
	return 0
}

func (c CategoryAmounts) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(c), func(i int) (string, any) { return c[i].Name, c[i].Amount })
}

// Summary holds corpus-wide statistics over a collection of records.
type Summary struct {
	TotalParticipants  int             `json:"total_participants"`
	AvgAge             float64         `json:"avg_age"`
	AvgIncome          float64         `json:"avg_income"`
	AvgExpenses        float64         `json:"avg_expenses"`
	AvgSavings         float64         `json:"avg_savings"`
	GenderDistribution Distribution    `json:"gender_distribution"`
	ExpenseCategories  CategoryAmounts `json:"expense_categories"`
}

// Summarize computes the summary statistics of records. The boolean is false
// when records is empty, in which case the Summary is the zero value.
func Summarize(records []Record) (Summary, bool) {
	if len(records) == 0 {
		return Summary{}, false
	}
	n := float64(len(records))
	var age, income, expenses, savings float64
	for _, r := range records {
		age += float64(r.Age)
		income += r.income
		expenses += r.totals.TotalExpenses
		savings += r.totals.Savings
	}
	return Summary{
		TotalParticipants:  len(records),
		AvgAge:             age / n,
		AvgIncome:          income / n,
		AvgExpenses:        expenses / n,
		AvgSavings:         savings / n,
		GenderDistribution: GenderDistribution(records),
		ExpenseCategories:  CategoryMeans(records),
	}, true
}

// GenderDistribution counts records per gender in order of first appearance.
func GenderDistribution(records []Record) Distribution {
	index := make(map[string]int)
	var dist Distribution
	for _, r := range records {
		i, ok := index[r.Gender]
		if !ok {
			i = len(dist)
			index[r.Gender] = i
			dist = append(dist, Count{Name: r.Gender})
		}
		dist[i].Count++
	}
	return dist
}

// CategoryMeans returns, for each canonical category, the mean amount over
// the records that spent something on it. Records with a zero or absent
// amount do not lower the mean; a category nobody spent on reports 0.
func CategoryMeans(records []Record) CategoryAmounts {
	categories := CanonicalCategories()
	out := make(CategoryAmounts, len(categories))
	for i, category := range categories {
		var total float64
		var contributors int
		for _, r := range records {
			if amount := r.Expense(category); amount > 0 {
				total += amount
				contributors++
			}
		}
		out[i] = CategoryAmount{Name: category}
		if contributors > 0 {
			out[i].Amount = total / float64(contributors)
		}
	}
	return out
}

func marshalOrdered(n int, entry func(i int) (string, any)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, v := entry(i)
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MostRecentFirst returns a copy of records ordered by submission time,
// newest first. Records submitted at the same instant keep their order.
func MostRecentFirst(records []Record) []Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b Record) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	return out
}
