package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookscan/internal/acquisition"
	"github.com/lehigh-university-libraries/bookscan/internal/identify"
	"github.com/lehigh-university-libraries/bookscan/internal/images"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

type scanFlow func(ctx context.Context, o *identify.Orchestrator) (identify.Result, error)

func newScanCmd(a *app) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Identify a single book from the command line",
		Example: `  # Look up an ISBN
  bookscan scan isbn 978-7-5366-9293-0

  # Identify a cover photo and save the result
  bookscan scan image cover.jpg --save

  # Wait up to 30s for a barcode on the rear camera
  bookscan scan barcode --timeout 30s`,
	}
	cmd.PersistentFlags().BoolVar(&save, "save", false, "Save the identified book to the catalog")

	run := func(cmd *cobra.Command, flow scanFlow) error {
		return runScan(cmd.Context(), a, cmd.OutOrStdout(), save, flow)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "isbn <isbn>",
		Short: "Look up metadata for an ISBN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, o *identify.Orchestrator) (identify.Result, error) {
				return o.LookupISBN(ctx, args[0])
			})
		},
	})

	var title, author string
	search := &cobra.Command{
		Use:   "search",
		Short: "Search by title and author",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, o *identify.Orchestrator) (identify.Result, error) {
				return o.SearchTitleAuthor(ctx, title, author)
			})
		},
	}
	search.Flags().StringVar(&title, "title", "", "Book title")
	search.Flags().StringVar(&author, "author", "", "Book author")
	cmd.AddCommand(search)

	var imageURL string
	image := &cobra.Command{
		Use:   "image [file]",
		Short: "Identify a cover or barcode photo from a file or URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (imageURL == "") {
				return errors.New("pass exactly one of a file argument or --url")
			}
			img, err := loadImage(cmd.Context(), args, imageURL)
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, o *identify.Orchestrator) (identify.Result, error) {
				return o.IdentifyImage(ctx, img)
			})
		},
	}
	image.Flags().StringVar(&imageURL, "url", "", "Download the image from this URL")
	cmd.AddCommand(image)

	var facing string
	camera := &cobra.Command{
		Use:   "camera",
		Short: "Capture one frame from the camera and recognize its text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, o *identify.Orchestrator) (identify.Result, error) {
				if _, err := o.OpenCamera(ctx, models.Facing(facing)); err != nil {
					return identify.Result{}, err
				}
				return o.CaptureAndIdentify(ctx)
			})
		},
	}
	camera.Flags().StringVar(&facing, "facing", string(models.FacingEnvironment), "Preferred camera: environment or user")
	cmd.AddCommand(camera)

	var timeout time.Duration
	barcodeCmd := &cobra.Command{
		Use:   "barcode",
		Short: "Scan the camera feed until a barcode is found",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, o *identify.Orchestrator) (identify.Result, error) {
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}
				return o.ScanBarcode(ctx, models.Facing(facing))
			})
		},
	}
	barcodeCmd.Flags().StringVar(&facing, "facing", string(models.FacingEnvironment), "Preferred camera: environment or user")
	barcodeCmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits until interrupted)")
	cmd.AddCommand(barcodeCmd)

	return cmd
}

func loadImage(ctx context.Context, args []string, url string) (models.RawImage, error) {
	if url != "" {
		return images.NewFetcher().Fetch(ctx, url)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return models.RawImage{}, fmt.Errorf("failed to read image: %w", err)
	}
	return acquisition.LoadStillImage(data, filepath.Base(args[0]))
}

func runScan(ctx context.Context, a *app, out io.Writer, save bool, flow scanFlow) error {
	p, err := newPipeline(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer p.Close()

	o, err := p.newOrchestrator()
	if err != nil {
		return err
	}
	defer o.Close()

	result, flowErr := flow(ctx, o)
	printForm(out, o, result)
	if flowErr != nil {
		return flowErr
	}

	if save {
		id, err := o.Save(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved as %s\n", id)
	}
	return nil
}

// printForm renders the entry form and any notes the flow left
func printForm(w io.Writer, o *identify.Orchestrator, result identify.Result) {
	form := o.Form()

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Field", "Value", "Edited"})
	for _, f := range identify.Fields {
		edited := ""
		if form.Edited(f) {
			edited = "yes"
		}
		tw.AppendRow(table.Row{f, form.Get(f), edited})
	}
	if result.Symbol != nil {
		tw.AppendFooter(table.Row{"Barcode", fmt.Sprintf("%s (%s)", result.Symbol.Text, result.Symbol.Symbology)})
	}
	tw.Render()

	for _, n := range o.Notes() {
		fmt.Fprintf(w, "! %s: %s\n", n.Kind, n.Message)
	}
	if len(result.Candidates) > 1 {
		fmt.Fprintf(w, "%d other candidates found\n", len(result.Candidates)-1)
	}
}
