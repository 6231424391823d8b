package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/bookscan/internal/eval/metrics"
)

// EvalConfig represents the configuration section of the eval YAML
type EvalConfig struct {
	Extractor   string `yaml:"extractor"`
	DatasetPath string `yaml:"datasetpath"`
	SampleSize  int    `yaml:"samplesize"`
	Timestamp   string `yaml:"timestamp"`
}

// EvalResult represents a single evaluation result
type EvalResult struct {
	Identifier       string             `yaml:"identifier"`
	Title            string             `yaml:"title"`
	Author           string             `yaml:"author,omitempty"`
	ExtractedTitle   string             `yaml:"extractedtitle"`
	ExtractedAuthor  string             `yaml:"extractedauthor"`
	ExtractedISBN    string             `yaml:"extractedisbn,omitempty"`
	OverallScore     float64            `yaml:"overallscore"`
	LevenshteinTotal int                `yaml:"levenshteintotal"`
	FieldsMatched    int                `yaml:"fieldsmatched"`
	FieldsMissing    int                `yaml:"fieldsmissing"`
	FieldsIncorrect  int                `yaml:"fieldsincorrect"`
	FieldScores      map[string]float64 `yaml:"fieldscores"`
}

// EvalSpec represents the complete evaluation file
type EvalSpec struct {
	Config  EvalConfig   `yaml:"config"`
	Results []EvalResult `yaml:"results"`
}

// SaveToYAML writes the successful results to dir/<extractor>-<timestamp>.yaml
// and returns the path written.
func SaveToYAML(dir, extractor, datasetPath string, sampleSize int, results []metrics.EvaluationResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	spec := EvalSpec{
		Config: EvalConfig{
			Extractor:   extractor,
			DatasetPath: datasetPath,
			SampleSize:  sampleSize,
			Timestamp:   timestamp,
		},
		Results: make([]EvalResult, 0, len(results)),
	}

	for _, r := range results {
		if r.Error != "" {
			continue
		}

		evalResult := EvalResult{
			Identifier:      r.Barcode,
			Title:           r.Title,
			Author:          r.Author,
			ExtractedTitle:  r.Extracted.Title,
			ExtractedAuthor: r.Extracted.Author,
			ExtractedISBN:   r.Extracted.ISBNCandidate,
		}
		if c := r.Comparison; c != nil {
			evalResult.OverallScore = c.OverallScore
			evalResult.LevenshteinTotal = c.LevenshteinTotal
			evalResult.FieldsMatched = c.FieldsMatched
			evalResult.FieldsMissing = c.FieldsMissing
			evalResult.FieldsIncorrect = c.FieldsIncorrect
			evalResult.FieldScores = make(map[string]float64, len(c.Fields))
			for name, fc := range c.Fields {
				evalResult.FieldScores[name] = fc.Score
			}
		}
		spec.Results = append(spec.Results, evalResult)
	}

	data, err := yaml.Marshal(&spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", extractor, timestamp))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return filename, nil
}
