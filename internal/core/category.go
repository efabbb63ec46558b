package core

// Canonical expense categories. The set of categories a respondent may report
// is open; these five get first-class treatment in statistics and export.
const (
	Utilities     = "utilities"
	Entertainment = "entertainment"
	SchoolFees    = "school_fees"
	Shopping      = "shopping"
	Healthcare    = "healthcare"
)

// CanonicalCategories returns the canonical categories in presentation order.
func CanonicalCategories() []string {
	return []string{Utilities, Entertainment, SchoolFees, Shopping, Healthcare}
}

// CategoryLabel returns a human readable label for a category key.
func CategoryLabel(category string) string {
	switch category {
	case Utilities:
		return "Utilities"
	case Entertainment:
		return "Entertainment"
	case SchoolFees:
		return "School fees"
	case Shopping:
		return "Shopping"
	case Healthcare:
		return "Healthcare"
	default:
		return category
	}
}
