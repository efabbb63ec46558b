package core

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Form field names used by the survey page.
const (
	FieldAge         = "age"
	FieldGender      = "gender"
	FieldTotalIncome = "total_income"
)

// CheckboxField returns the form field flagging that category was answered.
func CheckboxField(category string) string { return category + "_checkbox" }

// AmountField returns the form field holding the amount for category.
func AmountField(category string) string { return category + "_amount" }

// FromForm builds a Record from survey form values.
//
// A canonical category enters the expense mapping only when its checkbox is
// truthy and its amount is positive. A checked category whose amount is not a
// number is rejected rather than dropped.
func FromForm(form url.Values, now time.Time) (Record, error) {
	ageStr := strings.TrimSpace(form.Get(FieldAge))
	if ageStr == "" {
		return Record{}, invalid(FieldAge, "is required")
	}
	age, err := strconv.Atoi(ageStr)
	if err != nil {
		return Record{}, invalid(FieldAge, "must be a whole number")
	}

	incomeStr := strings.TrimSpace(form.Get(FieldTotalIncome))
	if incomeStr == "" {
		return Record{}, invalid(FieldTotalIncome, "is required")
	}
	income, err := ParseAmount(incomeStr)
	if err != nil {
		return Record{}, invalid(FieldTotalIncome, "must be a number")
	}

	expenses := make(map[string]float64)
	for _, category := range CanonicalCategories() {
		if !truthy(form.Get(CheckboxField(category))) {
			continue
		}
		raw := strings.TrimSpace(form.Get(AmountField(category)))
		if raw == "" {
			continue
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			return Record{}, invalid(AmountField(category), "must be a number")
		}
		if amount > 0 {
			expenses[category] = amount
		}
	}

	return NewRecord(Input{
		Age:         age,
		Gender:      form.Get(FieldGender),
		TotalIncome: income,
		Expenses:    expenses,
		SubmittedAt: now,
	})
}

// ParseAmount parses a decimal amount accepting both dot and comma separators.
func ParseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "off", "no":
		return false
	default:
		return true
	}
}
