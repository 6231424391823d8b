package results

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/bookscan/internal/eval/compare"
	"github.com/lehigh-university-libraries/bookscan/internal/eval/metrics"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

func TestSaveToYAML(t *testing.T) {
	dir := t.TempDir()
	results := []metrics.EvaluationResult{
		{
			Barcode:   "1",
			Title:     "三体",
			Author:    "刘慈欣",
			Extracted: models.ExtractedFields{Title: "三体", Author: "刘慈欣"},
			Comparison: &compare.Comparison{
				Fields: map[string]compare.FieldComparison{
					"title":  {Score: 1},
					"author": {Score: 1},
					"isbn":   {Score: 0.5},
				},
				OverallScore:  0.83,
				FieldsMatched: 2,
			},
		},
		{Barcode: "2", Error: "No OCR text available for title page"},
	}

	path, err := SaveToYAML(dir, "rules", "books.parquet", 2, results)
	if err != nil {
		t.Fatalf("SaveToYAML failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	var spec EvalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("Invalid YAML: %v", err)
	}

	if spec.Config.Extractor != "rules" || spec.Config.SampleSize != 2 {
		t.Errorf("Unexpected config %+v", spec.Config)
	}
	if len(spec.Results) != 1 {
		t.Fatalf("Expected failed results to be skipped, got %d results", len(spec.Results))
	}
	if r := spec.Results[0]; r.ExtractedTitle != "三体" || r.FieldScores["isbn"] != 0.5 {
		t.Errorf("Unexpected result %+v", r)
	}
}
