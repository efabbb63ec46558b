package core

import (
	"maps"
	"slices"
)

// Totals holds the metrics derived from a respondent's income and expenses.
type Totals struct {
	TotalExpenses float64
	Savings       float64
	// SavingsRate is a percentage kept at full precision; round only for display.
	SavingsRate float64
}

// Derive computes total expenses, savings and savings rate.
//
// Savings may be negative when expenses exceed income. A zero income yields a
// savings rate of 0 instead of a division by zero.
func Derive(income float64, expenses map[string]float64) Totals {
	var total float64
	// Sum in key order so repeated calls produce bit-identical results.
	for _, category := range slices.Sorted(maps.Keys(expenses)) {
		total += expenses[category]
	}
	t := Totals{
		TotalExpenses: total,
		Savings:       income - total,
	}
	if income > 0 {
		t.SavingsRate = t.Savings / income * 100
	}
	return t
}
