package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live index and the last ingestion run",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	status, err := searchService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	if statusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	p := newPrinter(cmd.OutOrStdout())
	cmd.Println(p.render(p.heading, "Index"))
	if status.GenerationID == "" {
		cmd.Println("  No generation committed yet. Run 'hybridsearch ingest'.")
	} else {
		cmd.Printf("  Generation: %s\n", status.GenerationID)
		cmd.Printf("  Committed:  %s\n", status.CommittedAt.Local().Format(time.DateTime))
		cmd.Printf("  Chunks:     %d\n", status.Chunks)
		cmd.Printf("  Vectors:    %d (%d dimensions)\n", status.Vectors, status.Dimensions)
	}
	if status.Ingesting {
		cmd.Println(p.render(p.warn, "  An ingestion run is in progress."))
	}

	if status.LastIngest != nil {
		cmd.Println()
		cmd.Println(p.render(p.heading, "Last ingest"))
		printReport(cmd, p, status.LastIngest)
	}
	return nil
}

// printReport writes a human-readable ingest report.
func printReport(cmd *cobra.Command, p *printer, r *domain.IngestReport) {
	cmd.Printf("  Run:        %s (%s)\n", r.RunID, r.Mode)
	cmd.Printf("  Duration:   %s\n", r.Duration().Round(time.Millisecond))
	cmd.Printf("  Documents:  %d fetched, %d indexed, %d skipped\n",
		r.DocumentsFetched, r.DocumentsIndexed, r.DocumentsSkipped)
	cmd.Printf("  Chunks:     %d written, %d total\n", r.ChunksIndexed, r.TotalChunks)
	if r.DocumentsRemoved > 0 {
		cmd.Printf("  Removed:    %d deleted documents\n", r.DocumentsRemoved)
	}
	if r.FetchFailures > 0 || r.EmbedFailures > 0 {
		cmd.Println(p.render(p.warn, fmt.Sprintf("  Failures:   %d fetch, %d embedding", r.FetchFailures, r.EmbedFailures)))
	}
	if r.Error != "" {
		cmd.Println(p.render(p.warn, "  Abandoned:  "+r.Error))
	}
}
