package core

import "fmt"

// SampleRecords returns the demonstration respondents used to seed empty
// stores. Ids are synthesized as sample_1..sample_n.
func SampleRecords() []Record {
	inputs := []Input{
		{Age: 25, Gender: "Female", TotalIncome: 4500, Expenses: map[string]float64{Utilities: 300, Healthcare: 200, Shopping: 600}},
		{Age: 32, Gender: "Male", TotalIncome: 6000, Expenses: map[string]float64{Utilities: 400, Entertainment: 500, Healthcare: 300, Shopping: 800}},
		{Age: 28, Gender: "Female", TotalIncome: 5200, Expenses: map[string]float64{Utilities: 350, SchoolFees: 1200, Healthcare: 250, Shopping: 500}},
		{Age: 35, Gender: "Male", TotalIncome: 7500, Expenses: map[string]float64{Utilities: 450, Entertainment: 600, Healthcare: 400, Shopping: 1000}},
		{Age: 29, Gender: "Other", TotalIncome: 4800, Expenses: map[string]float64{Utilities: 320, Entertainment: 400, Healthcare: 180, Shopping: 650}},
	}
	out := make([]Record, len(inputs))
	for i, in := range inputs {
		in.ID = fmt.Sprintf("sample_%d", i+1)
		out[i] = MustRecord(in)
	}
	return out
}
