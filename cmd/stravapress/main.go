// Command stravapress runs the Strava importer: an HTTP server for the
// normal flow, plus one-shot subcommands for scripted imports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stravapress/server/pkg/bootstrap"
	"github.com/stravapress/server/pkg/importer"
	"github.com/stravapress/server/pkg/infrastructure/sentry"
	"github.com/stravapress/server/pkg/media"
	"github.com/stravapress/server/pkg/server"
	"github.com/stravapress/server/pkg/strava"
)

const shutdownTimeout = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:          "stravapress",
		Short:        "Import Strava activities into WordPress",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// Missing .env is fine, production configures via real env vars.
			_ = godotenv.Load()
		},
	}

	root.AddCommand(serveCmd(), importCmd(), disconnectCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// components wires every collaborator on top of an initialized service.
type components struct {
	service      *bootstrap.Service
	tokens       *strava.TokenManager
	orchestrator *importer.Orchestrator
	queue        *importer.Queue
	logger       *slog.Logger
}

func wire(ctx context.Context) (*components, error) {
	service, err := bootstrap.NewService(ctx)
	if err != nil {
		return nil, err
	}
	logger := bootstrap.NewLogger("stravapress")

	if err := sentry.Init(sentry.Config{
		DSN:         service.Config.SentryDSN,
		Environment: service.Config.Environment,
	}, logger); err != nil {
		logger.Warn("Sentry init failed", "error", err)
	}

	tokens := strava.NewTokenManager(service.Settings)
	api := strava.NewClient(tokens)
	sync := media.NewSynchronizer(service.Store)
	orchestrator := importer.NewOrchestrator(api, service.Store, sync, service.Settings)
	queue := importer.NewQueue(orchestrator, service.Config.ImportDelay)

	return &components{
		service:      service,
		tokens:       tokens,
		orchestrator: orchestrator,
		queue:        queue,
		logger:       logger,
	}, nil
}

func (c *components) close() {
	sentry.Flush(2 * time.Second)
	if err := c.service.Close(); err != nil {
		c.logger.Warn("Service close failed", "error", err)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := wire(ctx)
			if err != nil {
				return err
			}
			defer c.close()

			srv := server.New(c.orchestrator, c.queue, c.tokens, c.service.Config.OAuthRedirectURL)
			httpServer := &http.Server{
				Addr:              c.service.Config.ListenAddr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				c.logger.Info("Listening", "addr", httpServer.Addr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			c.logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}

func importCmd() *cobra.Command {
	var reimportDocumentID int64

	cmd := &cobra.Command{
		Use:   "import <activity-id>...",
		Short: "Import one or more activities and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wire(cmd.Context())
			if err != nil {
				return err
			}
			defer c.close()

			if reimportDocumentID > 0 {
				if len(args) != 1 {
					return fmt.Errorf("--document requires exactly one activity id")
				}
				result, err := c.orchestrator.Reimport(cmd.Context(), reimportDocumentID, args[0])
				if err != nil {
					return err
				}
				return printJSON(result)
			}

			items, err := c.queue.Run(cmd.Context(), args)
			if err != nil {
				return err
			}
			if err := printJSON(items); err != nil {
				return err
			}
			for _, item := range items {
				if item.Error != "" {
					return fmt.Errorf("%d of %d imports failed", countFailed(items), len(items))
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&reimportDocumentID, "document", 0, "re-import into this existing document")
	return cmd
}

func disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Deauthorize and clear the stored Strava credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := wire(cmd.Context())
			if err != nil {
				return err
			}
			defer c.close()

			return c.tokens.Disconnect(cmd.Context())
		},
	}
}

func countFailed(items []importer.BatchItem) int {
	failed := 0
	for _, item := range items {
		if item.Error != "" {
			failed++
		}
	}
	return failed
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
