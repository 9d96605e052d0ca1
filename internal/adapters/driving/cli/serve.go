package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/hybridsearch/internal/adapters/driving/api"
	"github.com/custodia-labs/hybridsearch/internal/adapters/driving/mcp"
	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driving"
	"github.com/custodia-labs/hybridsearch/internal/core/services"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

var (
	serveAddr     string
	serveSchedule string
	serveWatch    bool
	serveMCP      bool
	serveIngest   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Starts the HTTP API:

  POST /ingest   start a background rebuild (202, or 409 while one runs)
  POST /query    {"query": "...", "top_k": 5}
  GET  /status   live generation and last run
  GET  /healthz  liveness

The MCP server is mounted at /mcp unless --mcp=false. With a schedule the
index is rebuilt periodically; with --watch, changes under filesystem
sources trigger a refresh of those sources.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config, :8000)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", `cron spec for periodic rebuilds, e.g. "@every 1h"`)
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "refresh filesystem sources when files change")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", true, "mount the MCP server at /mcp")
	serveCmd.Flags().BoolVar(&serveIngest, "ingest", false, "start a rebuild when the server starts")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if searchService == nil || ingestService == nil {
		return errors.New("services not configured")
	}

	addr := settings.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	var opts []api.Option
	opts = append(opts, api.WithDefaultTopK(settings.Search.DefaultTopK))
	if serveMCP {
		mcpServer, err := mcp.NewServer(&mcp.Ports{
			Search:      searchService,
			Ingest:      ingestService,
			DefaultTopK: settings.Search.DefaultTopK,
		})
		if err != nil {
			return err
		}
		opts = append(opts, api.WithMCPHandler(mcpServer.Handler()))
	}

	server, err := api.NewServer(searchService, ingestService, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := newScheduler()
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Stop()

	if serveIngest {
		runID, err := ingestService.Trigger(domain.IngestOptions{Mode: domain.IngestModeRebuild})
		if err != nil {
			logger.Warn("Startup ingest not started: %v", err)
		} else {
			logger.Info("Startup ingest started: %s", runID)
		}
	}

	cmd.Printf("Listening on %s\n", addr)
	return server.Run(ctx, addr)
}

// newScheduler applies the serve flags over the configured schedule and watch settings.
func newScheduler() driving.Scheduler {
	var opts []services.SchedulerOption
	if serveSchedule != "" {
		opts = append(opts, services.WithSchedule(serveSchedule))
	}

	if application != nil {
		if serveWatch {
			opts = append(opts, services.WithWatchers(application.Connectors))
		}
		return application.Scheduler(opts...)
	}

	// Injected services have no connectors to watch.
	if serveSchedule == "" && settings.Ingest.Schedule != "" {
		opts = append(opts, services.WithSchedule(settings.Ingest.Schedule))
	}
	return services.NewScheduler(ingestService, opts...)
}
