package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookscan/internal/handlers"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the book identification API server",
		Long: `Starts the bookscan HTTP API on the specified port.

Each entry form is a session under /api/sessions. Sessions identify books from
an ISBN, a title and author search, an uploaded image, the camera or a barcode
scan, and save the result into the catalog served under /api/books.`,
		Example: `  # Start server on default port 8888
  bookscan serve

  # Start server on custom port
  bookscan serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			handler := handlers.New(p.newOrchestrator, p.books, a.history)
			defer handler.Close()

			mux := http.NewServeMux()
			mux.HandleFunc("/api/sessions", handler.HandleSessions)
			mux.HandleFunc("/api/sessions/", handler.HandleSessionDetail)
			mux.HandleFunc("/api/books", handler.HandleBooks)
			mux.HandleFunc("/api/books/", handler.HandleBookDetail)
			mux.HandleFunc("/api/logs", handler.HandleLogs)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Bookscan API available", "addr", addr, "url", "http://localhost"+addr,
					"ocr_engine", a.cfg.OCR.Engine, "metadata_provider", a.cfg.Metadata.Provider)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
