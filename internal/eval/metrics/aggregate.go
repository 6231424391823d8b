package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lehigh-university-libraries/bookscan/internal/eval/compare"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// EvaluationResult represents the results for a single book evaluation
type EvaluationResult struct {
	Barcode        string
	Title          string
	Author         string
	Extracted      models.ExtractedFields
	Comparison     *compare.Comparison
	ProcessingTime time.Duration
	Error          string
}

// AggregateResults represents aggregated evaluation metrics
type AggregateResults struct {
	TotalRecords int
	SuccessCount int
	FailureCount int

	TitleAccuracy  FieldStats
	AuthorAccuracy FieldStats
	ISBNAccuracy   FieldStats

	OverallAccuracy float64

	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration

	Results []EvaluationResult

	EvaluationDate time.Time
	Extractor      string
	SampleSize     int
}

// FieldStats contains statistics for one compared field
type FieldStats struct {
	ExactMatches  int
	FuzzyMatches  int
	NoMatches     int
	MissingFields int
	AverageScore  float64
	Scores        []float64
}

// AggregateEvaluationResults aggregates multiple evaluation results
func AggregateEvaluationResults(results []EvaluationResult, extractor string) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Results:        results,
		EvaluationDate: time.Now(),
		Extractor:      extractor,
		SampleSize:     len(results),
		TitleAccuracy:  FieldStats{Scores: []float64{}},
		AuthorAccuracy: FieldStats{Scores: []float64{}},
		ISBNAccuracy:   FieldStats{Scores: []float64{}},
	}

	totalOverallScore := 0.0
	var totalDuration, successDuration time.Duration

	for _, result := range results {
		totalDuration += result.ProcessingTime

		if result.Error != "" {
			agg.FailureCount++
			continue
		}

		agg.SuccessCount++
		successDuration += result.ProcessingTime

		if result.Comparison == nil {
			continue
		}
		aggregateFieldStats(&agg.TitleAccuracy, result.Comparison.Fields[compare.FieldTitle])
		aggregateFieldStats(&agg.AuthorAccuracy, result.Comparison.Fields[compare.FieldAuthor])
		aggregateFieldStats(&agg.ISBNAccuracy, result.Comparison.Fields[compare.FieldISBN])
		totalOverallScore += result.Comparison.OverallScore
	}

	if agg.SuccessCount > 0 {
		agg.TitleAccuracy.AverageScore = calculateAverage(agg.TitleAccuracy.Scores)
		agg.AuthorAccuracy.AverageScore = calculateAverage(agg.AuthorAccuracy.Scores)
		agg.ISBNAccuracy.AverageScore = calculateAverage(agg.ISBNAccuracy.Scores)
		agg.OverallAccuracy = totalOverallScore / float64(agg.SuccessCount)
		agg.AverageProcessingTime = successDuration / time.Duration(agg.SuccessCount)
	}
	agg.TotalProcessingTime = totalDuration

	return agg
}

func aggregateFieldStats(stats *FieldStats, match compare.FieldComparison) {
	stats.Scores = append(stats.Scores, match.Score)

	switch match.Match {
	case compare.MatchExact:
		stats.ExactMatches++
	case compare.MatchFuzzyHigh, compare.MatchFuzzyMedium, compare.MatchFuzzyLow:
		stats.FuzzyMatches++
	case compare.MatchNone:
		stats.NoMatches++
	case compare.MatchMissing, compare.MatchNoReference, compare.MatchBothEmpty:
		stats.MissingFields++
	}
}

func calculateAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, score := range scores {
		sum += score
	}
	return sum / float64(len(scores))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// PrintSummary writes a human-readable summary of the evaluation
func (a *AggregateResults) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "Extractor evaluation (%s), %s\n", a.Extractor, a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Records: %d  Successful: %d (%.1f%%)  Failed: %d (%.1f%%)\n",
		a.TotalRecords,
		a.SuccessCount, percent(a.SuccessCount, a.TotalRecords),
		a.FailureCount, percent(a.FailureCount, a.TotalRecords))
	fmt.Fprintf(w, "Average processing time: %s  Total: %s\n\n", a.AverageProcessingTime, a.TotalProcessingTime)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Field", "Average", "Exact", "Fuzzy", "No match", "Missing"})
	for _, f := range []struct {
		name  string
		stats FieldStats
	}{
		{"Title", a.TitleAccuracy},
		{"Author", a.AuthorAccuracy},
		{"ISBN", a.ISBNAccuracy},
	} {
		tw.AppendRow(table.Row{
			f.name,
			fmt.Sprintf("%.2f%%", f.stats.AverageScore*100),
			f.stats.ExactMatches,
			f.stats.FuzzyMatches,
			f.stats.NoMatches,
			f.stats.MissingFields,
		})
	}
	tw.AppendFooter(table.Row{"Overall", fmt.Sprintf("%.2f%%", a.OverallAccuracy*100)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	tw.Render()
}

// SaveToJSON saves the aggregate results to a JSON file
func (a *AggregateResults) SaveToJSON(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(a); err != nil {
		return fmt.Errorf("failed to encode results to JSON: %w", err)
	}
	return nil
}

// SaveDetailedReport saves a detailed report with individual results
func (a *AggregateResults) SaveDetailedReport(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	separator := strings.Repeat("=", 80)
	dash := strings.Repeat("-", 80)

	fmt.Fprintf(file, "BOOKSCAN EXTRACTOR EVALUATION REPORT\n")
	fmt.Fprintf(file, "Generated: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Extractor: %s\n", a.Extractor)
	fmt.Fprintf(file, "%s\n\n", separator)

	for i, result := range a.Results {
		fmt.Fprintf(file, "RECORD %d: %s\n", i+1, result.Barcode)
		fmt.Fprintf(file, "%s\n", dash)
		fmt.Fprintf(file, "Title: %s\n", result.Title)
		fmt.Fprintf(file, "Author: %s\n", result.Author)
		fmt.Fprintf(file, "Processing Time: %s\n", result.ProcessingTime)

		if result.Error != "" {
			fmt.Fprintf(file, "ERROR: %s\n", result.Error)
		} else if result.Comparison != nil {
			fmt.Fprintf(file, "\nField Comparisons:\n")
			for _, name := range compare.FieldNames {
				fc := result.Comparison.Fields[name]
				fmt.Fprintf(file, "  %-7s %.2f (%s) - Expected: %s, Actual: %s\n",
					name+":", fc.Score, fc.Match, fc.Expected, fc.Actual)
			}
			fmt.Fprintf(file, "\nOverall Score: %.2f%%\n", result.Comparison.OverallScore*100)
		}

		fmt.Fprintf(file, "\n%s\n\n", separator)
	}

	return nil
}
