package evalcmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/bookscan/internal/eval/dataset"
)

const sampleJSONL = `{"barcode_src":"A1","title_src":"三体","author_src":"刘慈欣","identifiers_src":{"isbn":["978-7-5366-9293-0"]},"text_by_page_src":["三体\n刘慈欣 著\nISBN 978-7-5366-9293-0"]}
{"barcode_src":"A2","title_src":"Walden","author_src":"Henry David Thoreau","text_by_page_src":["Walden\nby Henry David Thoreau"]}
{"barcode_src":"A3","title_src":"Blank","author_src":"Nobody"}
`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.jsonl")
	if err := os.WriteFile(path, []byte(sampleJSONL), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunExtract(t *testing.T) {
	dir := t.TempDir()
	opts := ExtractOptions{
		DatasetPath:  writeDataset(t),
		SampleSize:   -1,
		OutputDir:    filepath.Join(dir, "evals"),
		OutputJSON:   filepath.Join(dir, "results.json"),
		OutputReport: filepath.Join(dir, "report.txt"),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var out bytes.Buffer
	agg, err := RunExtract(context.Background(), opts, &out, logger)
	if err != nil {
		t.Fatalf("RunExtract failed: %v", err)
	}

	if agg.TotalRecords != 3 || agg.SuccessCount != 2 || agg.FailureCount != 1 {
		t.Errorf("Unexpected counts %+v", agg)
	}
	if agg.TitleAccuracy.ExactMatches != 2 || agg.AuthorAccuracy.ExactMatches != 2 {
		t.Errorf("Expected exact title and author matches, got %+v %+v", agg.TitleAccuracy, agg.AuthorAccuracy)
	}
	if agg.ISBNAccuracy.ExactMatches != 1 {
		t.Errorf("Expected one exact ISBN match, got %+v", agg.ISBNAccuracy)
	}

	if !strings.Contains(out.String(), "Evaluation results saved to:") {
		t.Errorf("Expected YAML path in output:\n%s", out.String())
	}
	for _, path := range []string{opts.OutputJSON, opts.OutputReport} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to be written: %v", path, err)
		}
	}
	entries, err := os.ReadDir(opts.OutputDir)
	if err != nil || len(entries) != 1 {
		t.Errorf("Expected one YAML file in %s, got %v (%v)", opts.OutputDir, entries, err)
	}
}

func TestRunExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg, err := RunExtract(ctx, ExtractOptions{DatasetPath: writeDataset(t), SampleSize: 2}, io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("RunExtract failed: %v", err)
	}
	if agg.TotalRecords != 0 {
		t.Errorf("Expected no records evaluated after cancel, got %d", agg.TotalRecords)
	}
}

func TestRunExtractMissingDataset(t *testing.T) {
	_, err := RunExtract(context.Background(), ExtractOptions{DatasetPath: "/nonexistent/books.jsonl"}, io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Error("Expected error for missing dataset")
	}
}

func TestInspect(t *testing.T) {
	records, err := dataset.NewLoader(writeDataset(t), nil).LoadSample(1)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	Inspect(&out, records, true)
	for _, want := range []string{"Record 1/1", "A1", "刘慈欣", "9787536692930"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Inspect output missing %q:\n%s", want, out.String())
		}
	}
}
