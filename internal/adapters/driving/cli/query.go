package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

var (
	queryTopK int
	queryMode string
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search indexed documents",
	Long: `Runs a hybrid query against the live index. Keyword (BM25) candidates are
oversampled and fused with the nearest semantic (vector) chunks by score.

Use --mode text or --mode semantic to consult a single index.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "maximum number of hits (default from config, 5)")
	queryCmd.Flags().StringVarP(&queryMode, "mode", "m", "", "search mode: hybrid, text or semantic")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output hits as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	topK := queryTopK
	if !cmd.Flags().Changed("top-k") {
		topK = settings.Search.DefaultTopK
	}

	hits, err := searchService.Search(cmd.Context(), strings.Join(args, " "), domain.SearchOptions{
		TopK: topK,
		Mode: domain.SearchMode(queryMode),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		return outputHitsJSON(cmd, hits)
	}
	outputHits(cmd, hits)
	return nil
}

func outputHitsJSON(cmd *cobra.Command, hits []domain.Hit) error {
	if hits == nil {
		hits = []domain.Hit{}
	}
	data, err := json.MarshalIndent(map[string][]domain.Hit{"hits": hits}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal hits: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputHits(cmd *cobra.Command, hits []domain.Hit) {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return
	}

	p := newPrinter(cmd.OutOrStdout())
	for i, h := range hits {
		cmd.Printf("  [%d] %s %s\n", i+1,
			p.render(p.source, h.SourceID),
			p.render(p.muted, fmt.Sprintf("(%.4f)", h.Score)))
		cmd.Printf("      %s\n\n", oneLine(h.Snippet))
	}
}

// oneLine collapses whitespace so multi-line snippets stay aligned.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
