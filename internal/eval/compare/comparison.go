package compare

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/bookscan/internal/eval/dataset"
	"github.com/lehigh-university-libraries/bookscan/internal/metadata"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// Compared field names, in report order
const (
	FieldTitle  = "title"
	FieldAuthor = "author"
	FieldISBN   = "isbn"
)

var FieldNames = []string{FieldTitle, FieldAuthor, FieldISBN}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Extraction compares extracted fields against a dataset record using
// Levenshtein distance. ISBNs are compared with separators removed.
func Extraction(reference dataset.Record, extracted models.ExtractedFields) *Comparison {
	comparison := &Comparison{
		Fields: make(map[string]FieldComparison, len(FieldNames)),
	}

	pairs := []struct {
		name, expected, actual string
	}{
		{FieldTitle, reference.TitleSource, extracted.Title},
		{FieldAuthor, reference.AuthorSource, extracted.Author},
		{FieldISBN, metadata.CleanISBN(reference.ISBN()), metadata.CleanISBN(extracted.ISBNCandidate)},
	}

	totalScore := 0.0
	for _, p := range pairs {
		fc := Field(p.name, p.expected, p.actual)
		comparison.Fields[p.name] = fc
		totalScore += fc.Score
		comparison.LevenshteinTotal += fc.Distance

		switch {
		case fc.Score > 0.8:
			comparison.FieldsMatched++
		case fc.Match == MatchMissing:
			comparison.FieldsMissing++
		case fc.Match == MatchBothEmpty, fc.Match == MatchNoReference:
		default:
			comparison.FieldsIncorrect++
		}
	}
	comparison.OverallScore = totalScore / float64(len(pairs))

	return comparison
}

// Field compares a single field
func Field(fieldName, expected, actual string) FieldComparison {
	comp := FieldComparison{
		FieldName: fieldName,
		Expected:  expected,
		Actual:    actual,
	}

	expNorm := []rune(normalizeText(expected))
	actNorm := []rune(normalizeText(actual))

	switch {
	case len(expNorm) == 0 && len(actNorm) == 0:
		comp.Score = 0.5
		comp.Match = MatchBothEmpty
		comp.Notes = "Both fields are empty"
		return comp
	case len(expNorm) == 0:
		comp.Distance = len(actNorm)
		comp.Match = MatchNoReference
		comp.Notes = "No reference value (ground truth missing)"
		return comp
	case len(actNorm) == 0:
		comp.Distance = len(expNorm)
		comp.Match = MatchMissing
		comp.Notes = "Field missing from extracted fields"
		return comp
	}

	distance := levenshteinDistance(expNorm, actNorm)
	comp.Distance = distance
	if distance == 0 {
		comp.Score = 1.0
		comp.Match = MatchExact
		comp.Notes = "Exact match"
		return comp
	}

	similarity := 1.0 - float64(distance)/float64(max(len(expNorm), len(actNorm)))
	comp.Score = similarity

	switch {
	case similarity > 0.9:
		comp.Match = MatchFuzzyHigh
	case similarity > 0.7:
		comp.Match = MatchFuzzyMedium
	case similarity > 0.5:
		comp.Match = MatchFuzzyLow
	default:
		comp.Match = MatchNone
	}
	comp.Notes = fmt.Sprintf("Similarity %.1f%%, Levenshtein: %d", similarity*100, distance)

	return comp
}

// normalizeText lowercases, drops punctuation and collapses whitespace
func normalizeText(text string) string {
	text = strings.ToLower(text)
	text = punctuation.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// levenshteinDistance counts rune edits so CJK titles are not over-penalized
func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
