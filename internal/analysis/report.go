// Package analysis segments survey records and computes the descriptive
// statistics used by the healthcare market report.
package analysis

import (
	"survey/internal/core"
)

// Group summarizes healthcare spending inside one segment. All records of
// the segment count, including those spending nothing on healthcare.
type Group struct {
	Label            string  `json:"label"`
	Count            int     `json:"count"`
	MeanHealthcare   float64 `json:"mean_healthcare"`
	MedianHealthcare float64 `json:"median_healthcare"`
}

type GenderStats struct {
	Gender         string  `json:"gender"`
	Count          int     `json:"count"`
	MeanIncome     float64 `json:"mean_income"`
	MeanExpenses   float64 `json:"mean_expenses"`
	MeanSavings    float64 `json:"mean_savings"`
	MeanHealthcare float64 `json:"mean_healthcare"`
}

// HighSpenders describes records whose healthcare spending is at or above
// the 75th percentile.
type HighSpenders struct {
	Count          int     `json:"count"`
	AvgAge         float64 `json:"avg_age"`
	AvgIncome      float64 `json:"avg_income"`
	AvgHealthcare  float64 `json:"avg_healthcare"`
	TargetAge      int     `json:"target_age"`
	ThresholdSpend float64 `json:"threshold"`
}

type Healthcare struct {
	Spenders            int          `json:"spenders"`
	SpenderShare        float64      `json:"spender_share_pct"`
	MeanAmongSpenders   float64      `json:"mean_among_spenders"`
	MedianAmongSpenders float64      `json:"median_among_spenders"`
	TotalMarket         float64      `json:"total_market"`
	AvgDisposableIncome float64      `json:"avg_disposable_income"`
	PositiveSavings     int          `json:"positive_savings"`
	PriceLow            float64      `json:"price_low"`
	PriceHigh           float64      `json:"price_high"`
	HighSpenders        HighSpenders `json:"high_spenders"`
	ByAgeGroup          []Group      `json:"by_age_group"`
	ByIncomeGroup       []Group      `json:"by_income_group"`
}

type Report struct {
	Participants                int               `json:"participants"`
	AgeGroups                   core.Distribution `json:"age_groups"`
	IncomeGroups                core.Distribution `json:"income_groups"`
	SavingsStatus               core.Distribution `json:"savings_status"`
	Genders                     []GenderStats     `json:"genders"`
	Healthcare                  Healthcare        `json:"healthcare"`
	IncomeHealthcareCorrelation float64           `json:"income_healthcare_correlation"`
}

// Analyze builds the report. An empty input yields a zero Report with
// empty, non-nil slices.
func Analyze(records []core.Record) Report {
	rep := Report{
		Participants:  len(records),
		AgeGroups:     core.Distribution{},
		IncomeGroups:  core.Distribution{},
		SavingsStatus: core.Distribution{},
		Genders:       []GenderStats{},
		Healthcare: Healthcare{
			ByAgeGroup:    []Group{},
			ByIncomeGroup: []Group{},
		},
	}
	if len(records) == 0 {
		return rep
	}

	incomes := make([]float64, len(records))
	care := make([]float64, len(records))
	savings := make([]float64, len(records))
	for i, r := range records {
		incomes[i] = r.TotalIncome()
		care[i] = healthcare(r)
		savings[i] = r.Savings()
	}

	byAge := segment(records, func(r core.Record) (string, bool) { return AgeGroup(r.Age) }, ageLabels)
	edges := IncomeEdges(incomes)
	byIncome := segment(records, func(r core.Record) (string, bool) { return IncomeGroup(r.TotalIncome(), edges) }, incomeLabels)

	rep.AgeGroups = counts(byAge)
	rep.IncomeGroups = counts(byIncome)
	rep.SavingsStatus = savingsStatus(records)
	rep.Genders = genderStats(records)
	rep.Healthcare = healthcareInsights(records, care, savings)
	rep.Healthcare.ByAgeGroup = groups(byAge)
	rep.Healthcare.ByIncomeGroup = groups(byIncome)
	rep.IncomeHealthcareCorrelation = Pearson(incomes, care)
	return rep
}

type labeled struct {
	label   string
	records []core.Record
}

// segment partitions records by key, keeping the order of labels and
// dropping empty segments and records with no label.
func segment(records []core.Record, key func(core.Record) (string, bool), labels []string) []labeled {
	buckets := make(map[string][]core.Record, len(labels))
	for _, r := range records {
		if label, ok := key(r); ok {
			buckets[label] = append(buckets[label], r)
		}
	}
	var out []labeled
	for _, label := range labels {
		if rs := buckets[label]; len(rs) > 0 {
			out = append(out, labeled{label: label, records: rs})
		}
	}
	return out
}

func counts(segs []labeled) core.Distribution {
	out := make(core.Distribution, 0, len(segs))
	for _, s := range segs {
		out = append(out, core.Count{Name: s.label, Count: len(s.records)})
	}
	return out
}

func groups(segs []labeled) []Group {
	out := make([]Group, 0, len(segs))
	for _, s := range segs {
		care := make([]float64, len(s.records))
		for i, r := range s.records {
			care[i] = healthcare(r)
		}
		out = append(out, Group{
			Label:            s.label,
			Count:            len(s.records),
			MeanHealthcare:   Mean(care),
			MedianHealthcare: Median(care),
		})
	}
	return out
}

func savingsStatus(records []core.Record) core.Distribution {
	order := []string{SavingsPositive, SavingsNegative, SavingsBreakEven}
	n := make(map[string]int, len(order))
	for _, r := range records {
		n[SavingsStatus(r.Savings())]++
	}
	out := core.Distribution{}
	for _, label := range order {
		if n[label] > 0 {
			out = append(out, core.Count{Name: label, Count: n[label]})
		}
	}
	return out
}

// genderStats groups by gender in order of first appearance.
func genderStats(records []core.Record) []GenderStats {
	var order []string
	byGender := make(map[string][]core.Record)
	for _, r := range records {
		if _, seen := byGender[r.Gender]; !seen {
			order = append(order, r.Gender)
		}
		byGender[r.Gender] = append(byGender[r.Gender], r)
	}

	out := make([]GenderStats, 0, len(order))
	for _, g := range order {
		rs := byGender[g]
		var income, expenses, savings, care []float64
		for _, r := range rs {
			income = append(income, r.TotalIncome())
			expenses = append(expenses, r.TotalExpenses())
			savings = append(savings, r.Savings())
			care = append(care, healthcare(r))
		}
		out = append(out, GenderStats{
			Gender:         g,
			Count:          len(rs),
			MeanIncome:     Mean(income),
			MeanExpenses:   Mean(expenses),
			MeanSavings:    Mean(savings),
			MeanHealthcare: Mean(care),
		})
	}
	return out
}

func healthcareInsights(records []core.Record, care, savings []float64) Healthcare {
	var spent []float64
	positive := 0
	for i := range records {
		if care[i] > 0 {
			spent = append(spent, care[i])
		}
		if savings[i] > 0 {
			positive++
		}
	}

	h := Healthcare{
		Spenders:            len(spent),
		SpenderShare:        float64(len(spent)) / float64(len(records)) * 100,
		MeanAmongSpenders:   Mean(spent),
		MedianAmongSpenders: Median(spent),
		AvgDisposableIncome: Mean(savings),
		PositiveSavings:     positive,
	}
	for _, c := range care {
		h.TotalMarket += c
	}
	h.PriceLow = h.MeanAmongSpenders * 0.10
	h.PriceHigh = h.MeanAmongSpenders * 0.25

	threshold := Quantile(care, 0.75)
	var ages []int
	var agesF, income, top []float64
	for i, r := range records {
		if care[i] >= threshold {
			ages = append(ages, r.Age)
			agesF = append(agesF, float64(r.Age))
			income = append(income, r.TotalIncome())
			top = append(top, care[i])
		}
	}
	h.HighSpenders = HighSpenders{
		Count:          len(top),
		AvgAge:         Mean(agesF),
		AvgIncome:      Mean(income),
		AvgHealthcare:  Mean(top),
		TargetAge:      Mode(ages),
		ThresholdSpend: threshold,
	}
	return h
}
