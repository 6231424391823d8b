package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookscan/internal/evalcmd"
)

func newEvalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Field extraction evaluation tools",
		Long: `Evaluation tools for measuring how well title, author and ISBN are
extracted from recognized text, using the Institutional Books 1.0 dataset as
ground truth.`,
	}

	logger := func() *slog.Logger { return a.logger }
	cmd.AddCommand(evalcmd.NewExtractCmd(logger))
	cmd.AddCommand(evalcmd.NewInspectCmd(logger))

	return cmd
}
