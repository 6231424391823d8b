package evalcmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookscan/internal/eval/dataset"
	"github.com/lehigh-university-libraries/bookscan/internal/extract"
)

const previewRunes = 500

// NewInspectCmd creates the inspect command
func NewInspectCmd(logger func() *slog.Logger) *cobra.Command {
	var datasetPath string
	var limit int
	var showOCR bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show dataset records next to what the extractor finds in them",
		Example: `  # Inspect the first 5 records
  bookscan eval inspect --dataset ./data.parquet --limit 5

  # Hide the OCR preview
  bookscan eval inspect --dataset ./data.parquet --ocr=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := dataset.NewLoader(datasetPath, logger()).LoadSample(limit)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}
			Inspect(cmd.OutOrStdout(), records, showOCR)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to parquet or jsonl dataset file (required)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of records to inspect (0 for all)")
	cmd.Flags().BoolVar(&showOCR, "ocr", true, "Show OCR text preview")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

// Inspect prints each record's catalog values beside the extracted fields
func Inspect(w io.Writer, records []dataset.Record, showOCR bool) {
	fmt.Fprintf(w, "Loaded %d records\n\n", len(records))

	for i, record := range records {
		text := record.TitlePageText()
		fields := extract.Fields(text)

		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleRounded)
		tw.SetTitle(fmt.Sprintf("Record %d/%d  %s", i+1, len(records), record.BarcodeSource))
		tw.AppendHeader(table.Row{"Field", "Catalog", "Extracted"})
		tw.AppendRows([]table.Row{
			{"Title", record.TitleSource, fields.Title},
			{"Author", record.AuthorSource, fields.Author},
			{"ISBN", strings.Join(record.IdentifiersSource.ISBN, ", "), fields.ISBNCandidate},
			{"Language", record.LanguageSource, ""},
			{"Pages w/ OCR", len(record.TextByPageSource), ""},
		})
		tw.Render()

		if showOCR {
			fmt.Fprintf(w, "OCR text: %d characters, %d words (approx)\n", utf8.RuneCountInString(text), len(strings.Fields(text)))
			preview := text
			if utf8.RuneCountInString(preview) > previewRunes {
				preview = string([]rune(preview)[:previewRunes]) + "\n[... truncated ...]"
			}
			fmt.Fprintln(w, preview)
		}
		fmt.Fprintln(w)
	}
}
