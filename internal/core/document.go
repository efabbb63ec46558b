package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Document keys shared with the storage layer.
const (
	KeyID             = "id"
	KeyMongoID        = "_id"
	KeyAge            = "age"
	KeyGender         = "gender"
	KeyTotalIncome    = "total_income"
	KeyExpenses       = "expenses"
	KeySubmissionDate = "submission_date"
)

// Document is the raw shape exchanged with a document store:
// {id?, age, gender, total_income, expenses?: {category: amount}, submission_date?}.
type Document map[string]any

// FromDocument builds a Record from a raw document. Missing or mistyped
// required fields yield a *ValidationError; nothing is coerced silently.
func FromDocument(doc Document) (Record, error) {
	var in Input

	id, err := documentID(doc)
	if err != nil {
		return Record{}, err
	}
	in.ID = id

	rawAge, ok := doc[KeyAge]
	if !ok || rawAge == nil {
		return Record{}, invalid(KeyAge, "is required")
	}
	age, ok := toFloat(rawAge)
	if !ok {
		return Record{}, invalid(KeyAge, fmt.Sprintf("must be a number, got %T", rawAge))
	}
	if age != math.Trunc(age) || age <= 0 || age > math.MaxInt32 {
		return Record{}, invalid(KeyAge, "must be a positive integer")
	}
	in.Age = int(age)

	rawGender, ok := doc[KeyGender]
	if !ok || rawGender == nil {
		return Record{}, invalid(KeyGender, "is required")
	}
	gender, ok := rawGender.(string)
	if !ok {
		return Record{}, invalid(KeyGender, fmt.Sprintf("must be text, got %T", rawGender))
	}
	in.Gender = gender

	rawIncome, ok := doc[KeyTotalIncome]
	if !ok || rawIncome == nil {
		return Record{}, invalid(KeyTotalIncome, "is required")
	}
	income, ok := toFloat(rawIncome)
	if !ok {
		return Record{}, invalid(KeyTotalIncome, fmt.Sprintf("must be a number, got %T", rawIncome))
	}
	in.TotalIncome = income

	expenses, err := documentExpenses(doc[KeyExpenses])
	if err != nil {
		return Record{}, err
	}
	in.Expenses = expenses

	submitted, err := documentTime(doc[KeySubmissionDate])
	if err != nil {
		return Record{}, err
	}
	in.SubmittedAt = submitted

	return NewRecord(in)
}

// Document returns the storable form of r. The id is omitted; the storage
// layer assigns it.
func (r Record) Document() Document {
	return Document{
		KeyAge:            r.Age,
		KeyGender:         r.Gender,
		KeyTotalIncome:    r.income,
		KeyExpenses:       r.Expenses(),
		KeySubmissionDate: r.SubmittedAt,
	}
}

func documentID(doc Document) (string, error) {
	raw, ok := doc[KeyID]
	if !ok || raw == nil {
		raw, ok = doc[KeyMongoID]
	}
	if !ok || raw == nil {
		return "", nil
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case interface{ Hex() string }:
		// Driver object ids: String() adds a type wrapper, Hex() does not.
		return v.Hex(), nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int32, int64, uint32, uint64:
		return fmt.Sprint(v), nil
	default:
		return "", invalid(KeyID, fmt.Sprintf("unsupported type %T", raw))
	}
}

func documentExpenses(raw any) (map[string]float64, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]float64:
		return v, nil
	case Document:
		return expensesFromAny(v)
	case map[string]any:
		return expensesFromAny(v)
	default:
		return nil, invalid(KeyExpenses, fmt.Sprintf("must be a mapping, got %T", raw))
	}
}

func expensesFromAny(m map[string]any) (map[string]float64, error) {
	out := make(map[string]float64, len(m))
	for category, raw := range m {
		amount, ok := toFloat(raw)
		if !ok {
			return nil, invalid(KeyExpenses+"."+category, fmt.Sprintf("must be a number, got %T", raw))
		}
		out[category] = amount
	}
	return out, nil
}

func documentTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return time.Time{}, nil
		}
		for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
			if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
				return t, nil
			}
		}
		return time.Time{}, invalid(KeySubmissionDate, fmt.Sprintf("unrecognized date %q", v))
	default:
		return time.Time{}, invalid(KeySubmissionDate, fmt.Sprintf("unsupported type %T", raw))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
