package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

var (
	ingestRefresh bool
	ingestSources []string
	ingestJSON    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build a new index generation from the configured sources",
	Long: `Fetches every configured source, chunks and embeds the documents and swaps
the new generation in once it is complete. Queries keep using the previous
generation until then, and a failed run leaves it untouched.

By default the index is rebuilt from scratch. --refresh starts from the live
generation and replaces only the documents fetched in this run.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestRefresh, "refresh", false, "keep documents from sources not fetched in this run")
	ingestCmd.Flags().StringSliceVarP(&ingestSources, "source", "s", nil, "only fetch these source types (jira, confluence, github, filesystem)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the run report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	opts, err := ingestFlags()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if application != nil {
		if err := application.ValidateSources(ctx); err != nil {
			logger.Warn("Source check failed: %v", err)
		}
	}

	report, err := ingestService.Run(ctx, opts)
	if err != nil {
		if report != nil && !ingestJSON {
			printReport(cmd, newPrinter(cmd.OutOrStdout()), report)
		}
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	p := newPrinter(cmd.OutOrStdout())
	cmd.Println(p.render(p.heading, "Ingest complete"))
	printReport(cmd, p, report)
	return nil
}

func ingestFlags() (domain.IngestOptions, error) {
	opts := domain.IngestOptions{Mode: domain.IngestModeRebuild}
	if ingestRefresh {
		opts.Mode = domain.IngestModeRefresh
	}
	for _, name := range ingestSources {
		src := domain.Source(name)
		if !src.IsValid() {
			return opts, fmt.Errorf("%w: unknown source %q", domain.ErrInvalidArgument, name)
		}
		opts.Sources = append(opts.Sources, src)
	}
	return opts, nil
}
