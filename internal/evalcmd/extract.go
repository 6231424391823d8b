package evalcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookscan/internal/eval/compare"
	"github.com/lehigh-university-libraries/bookscan/internal/eval/dataset"
	"github.com/lehigh-university-libraries/bookscan/internal/eval/metrics"
	"github.com/lehigh-university-libraries/bookscan/internal/eval/results"
	"github.com/lehigh-university-libraries/bookscan/internal/extract"
)

// ExtractorName labels results produced by the rule based field extractor
const ExtractorName = "rules"

// ExtractOptions configures one extractor evaluation run
type ExtractOptions struct {
	DatasetPath  string
	SampleSize   int
	OutputDir    string
	OutputJSON   string
	OutputReport string
}

// NewExtractCmd creates the extract command, which scores the field
// extractor against Institutional Books ground truth.
func NewExtractCmd(logger func() *slog.Logger) *cobra.Command {
	opts := ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Evaluate title, author and ISBN extraction on Institutional Books OCR text",
		Long: `Runs the field extractor over the title page OCR text of each record in an
Institutional Books 1.0 parquet or jsonl file and compares the extracted title,
author and ISBN with the catalog values using Levenshtein similarity.

Dataset: https://huggingface.co/datasets/instdin/institutional-books-1.0`,
		Example: `  # Evaluate 10 records
  bookscan eval extract --dataset ./train-00000-of-09831.parquet --sample 10

  # Evaluate the whole file and keep a JSON copy of the results
  bookscan eval extract --dataset ./books.jsonl --sample -1 --output-json results.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.DatasetPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s\n\nPlease clone the dataset first:\n  git clone https://huggingface.co/datasets/instdin/institutional-books-1.0", opts.DatasetPath)
			}
			_, err := RunExtract(cmd.Context(), opts, cmd.OutOrStdout(), logger())
			return err
		},
	}

	cmd.Flags().StringVar(&opts.DatasetPath, "dataset", "./institutional-books-1.0/data/train-00000-of-09831.parquet", "Path to Institutional Books parquet or jsonl file")
	cmd.Flags().IntVar(&opts.SampleSize, "sample", 10, "Number of records to evaluate (-1 for all)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "evals", "Directory for YAML results")
	cmd.Flags().StringVar(&opts.OutputJSON, "output-json", "", "Optional path for JSON results")
	cmd.Flags().StringVar(&opts.OutputReport, "output-report", "", "Optional path for a detailed text report")

	return cmd
}

// RunExtract loads the sample, evaluates each record and writes the summary
// to out. Stops early, keeping partial results, when ctx is cancelled.
func RunExtract(ctx context.Context, opts ExtractOptions, out io.Writer, logger *slog.Logger) (*metrics.AggregateResults, error) {
	logger.Info("Starting extractor evaluation", "dataset", opts.DatasetPath, "sample_size", opts.SampleSize)

	records, err := dataset.NewLoader(opts.DatasetPath, logger).LoadSample(opts.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	logger.Info("Dataset loaded", "records", len(records))

	evaluated := make([]metrics.EvaluationResult, 0, len(records))
	for i, record := range records {
		if ctx.Err() != nil {
			logger.Warn("Evaluation interrupted", "processed", i, "total", len(records))
			break
		}
		result := evaluateRecord(record)
		evaluated = append(evaluated, result)
		logger.Debug("Record evaluated",
			"index", i+1,
			"barcode", record.BarcodeSource,
			"err", result.Error)
	}

	aggregated := metrics.AggregateEvaluationResults(evaluated, ExtractorName)
	aggregated.PrintSummary(out)

	if opts.OutputJSON != "" {
		if err := aggregated.SaveToJSON(opts.OutputJSON); err != nil {
			logger.Warn("Failed to save JSON results", "err", err)
		}
	}
	if opts.OutputReport != "" {
		if err := aggregated.SaveDetailedReport(opts.OutputReport); err != nil {
			logger.Warn("Failed to save detailed report", "err", err)
		}
	}
	if opts.OutputDir != "" {
		path, err := results.SaveToYAML(opts.OutputDir, ExtractorName, opts.DatasetPath, len(records), aggregated.Results)
		if err != nil {
			return aggregated, err
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		fmt.Fprintf(out, "\nEvaluation results saved to: %s\n", path)
	}

	logger.Info("Evaluation complete", "overall", aggregated.OverallAccuracy)
	return aggregated, nil
}

func evaluateRecord(record dataset.Record) metrics.EvaluationResult {
	start := time.Now()
	result := metrics.EvaluationResult{
		Barcode: record.BarcodeSource,
		Title:   record.TitleSource,
		Author:  record.AuthorSource,
	}

	text := record.TitlePageText()
	if text == "" {
		result.Error = "No OCR text available for title page"
		result.ProcessingTime = time.Since(start)
		return result
	}

	result.Extracted = extract.Fields(text)
	// raw text is already in the dataset
	result.Extracted.RawText = ""
	result.Comparison = compare.Extraction(record, result.Extracted)
	result.ProcessingTime = time.Since(start)
	return result
}
