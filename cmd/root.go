package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookscan/internal/config"
	"github.com/lehigh-university-libraries/bookscan/internal/logging"
)

// app is the state shared by every subcommand once flags are parsed
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	history *logging.History
}

func NewRootCmd() *cobra.Command {
	a := &app{
		history: logging.NewHistory(logging.DefaultCapacity),
		logger:  slog.Default(),
	}
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "bookscan",
		Short: "Identify books by barcode, cover photo or ISBN and catalog them",
		Long: `Bookscan identifies physical books from a camera, a barcode scan, an
uploaded cover image or a typed ISBN, fills in bibliographic metadata from an
online service and keeps a small catalog of saved books.

Settings come from an optional YAML file and environment variables (a .env
file in the working directory is loaded first).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if configPath == "" {
				configPath = os.Getenv("BOOKSCAN_CONFIG")
			}
			if !cmd.Flags().Changed("log-level") {
				if v := os.Getenv("LOG_LEVEL"); v != "" {
					logLevel = v
				}
			}

			a.logger = logging.New(os.Stderr, logLevel, a.history)
			slog.SetDefault(a.logger)

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (env BOOKSCAN_CONFIG)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error (env LOG_LEVEL)")

	cmd.AddCommand(newScanCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newEvalCmd(a))

	return cmd
}
