package compare

// Match classifies how close an extracted field came to the reference
type Match string

const (
	MatchExact       Match = "exact"
	MatchFuzzyHigh   Match = "fuzzy_high"
	MatchFuzzyMedium Match = "fuzzy_medium"
	MatchFuzzyLow    Match = "fuzzy_low"
	MatchNone        Match = "no_match"
	MatchMissing     Match = "missing"
	MatchNoReference Match = "no_reference"
	MatchBothEmpty   Match = "both_empty"
)

// Comparison is the field-by-field comparison of one extraction
type Comparison struct {
	Fields           map[string]FieldComparison
	OverallScore     float64
	FieldsMatched    int
	FieldsMissing    int
	FieldsIncorrect  int
	LevenshteinTotal int
}

// FieldComparison represents comparison for a single field
type FieldComparison struct {
	FieldName string
	Expected  string
	Actual    string
	Score     float64 // 0.0 to 1.0
	Distance  int     // Levenshtein distance in runes
	Match     Match
	Notes     string
}
