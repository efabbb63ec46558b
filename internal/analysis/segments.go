package analysis

import (
	"math"
	"slices"

	"survey/internal/core"
)

// Age group labels. Bins are right-inclusive: (17,25], (25,35], (35,45],
// (45,100].
const (
	Age18to25 = "18-25"
	Age26to35 = "26-35"
	Age36to45 = "36-45"
	Age46Plus = "46+"
)

// Income group labels, split at the income quartiles.
const (
	IncomeLow        = "Low"
	IncomeMediumLow  = "Medium-Low"
	IncomeMediumHigh = "Medium-High"
	IncomeHigh       = "High"
)

// Savings status labels.
const (
	SavingsPositive  = "Positive"
	SavingsNegative  = "Negative"
	SavingsBreakEven = "Break-even"
)

var (
	inf          = math.Inf(1)
	ageLabels    = []string{Age18to25, Age26to35, Age36to45, Age46Plus}
	ageEdges     = []float64{17, 25, 35, 45, 100}
	incomeLabels = []string{IncomeLow, IncomeMediumLow, IncomeMediumHigh, IncomeHigh}
)

// AgeGroup returns the label for age, or false when age is outside (17,100].
func AgeGroup(age int) (string, bool) {
	return bin(float64(age), ageEdges, ageLabels)
}

// IncomeEdges returns the bin edges 0, Q1, Q2, Q3, +Inf over incomes.
func IncomeEdges(incomes []float64) []float64 {
	sorted := slices.Clone(incomes)
	slices.Sort(sorted)
	edges := []float64{0, 0, 0, 0, inf}
	if len(sorted) > 0 {
		edges[1] = quantileSorted(sorted, 0.25)
		edges[2] = quantileSorted(sorted, 0.5)
		edges[3] = quantileSorted(sorted, 0.75)
	}
	return edges
}

// IncomeGroup places income into its quartile bin. Incomes at or below zero
// fall outside every bin.
func IncomeGroup(income float64, edges []float64) (string, bool) {
	return bin(income, edges, incomeLabels)
}

// SavingsStatus classifies the sign of savings.
func SavingsStatus(savings float64) string {
	switch {
	case savings > 0:
		return SavingsPositive
	case savings < 0:
		return SavingsNegative
	default:
		return SavingsBreakEven
	}
}

// bin finds the first (edges[i], edges[i+1]] containing v.
func bin(v float64, edges []float64, labels []string) (string, bool) {
	for i := 0; i+1 < len(edges) && i < len(labels); i++ {
		if v > edges[i] && v <= edges[i+1] {
			return labels[i], true
		}
	}
	return "", false
}

func healthcare(r core.Record) float64 { return r.Expense(core.Healthcare) }
