package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driving"
)

var (
	_ driving.SearchService = (*mockSearchService)(nil)
	_ driving.IngestService = (*mockIngestService)(nil)
)

type mockSearchService struct {
	hits   []domain.Hit
	status *domain.IndexStatus
	err    error

	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.Hit, error) {
	m.lastQuery = query
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

func (m *mockSearchService) Status(_ context.Context) (*domain.IndexStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.status == nil {
		return &domain.IndexStatus{}, nil
	}
	return m.status, nil
}

type mockIngestService struct {
	mu      sync.Mutex
	report  *domain.IngestReport
	err     error
	runs    []domain.IngestOptions
	trigger []domain.IngestOptions
}

func (m *mockIngestService) Run(_ context.Context, opts domain.IngestOptions) (*domain.IngestReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, opts)
	return m.report, m.err
}

func (m *mockIngestService) Trigger(opts domain.IngestOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.trigger = append(m.trigger, opts)
	return "run-1", nil
}

func (m *mockIngestService) Running() bool { return false }

func (m *mockIngestService) LastReport() *domain.IngestReport { return m.report }

func sampleReport() *domain.IngestReport {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return &domain.IngestReport{
		RunID:            "run-7",
		GenerationID:     "gen-7",
		Mode:             domain.IngestModeRebuild,
		DocumentsFetched: 12,
		DocumentsIndexed: 11,
		DocumentsSkipped: 1,
		ChunksIndexed:    40,
		TotalChunks:      40,
		EmbedFailures:    1,
		StartedAt:        start,
		FinishedAt:       start.Add(3 * time.Second),
	}
}

// setupTestServices injects mocks, points --config at an empty temp dir and
// resets command flags. It returns the output buffer.
func setupTestServices(t *testing.T, search *mockSearchService, ingest *mockIngestService) *bytes.Buffer {
	t.Helper()

	searchService = search
	ingestService = ingest
	configPath = filepath.Join(t.TempDir(), "config.toml")
	envFile = ""

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	t.Cleanup(func() {
		searchService = nil
		ingestService = nil
		application = nil
		configPath = ""
		settings = domain.DefaultSettings()
		rootCmd.SetArgs(nil)

		queryTopK, queryMode, queryJSON = 0, "", false
		ingestRefresh, ingestSources, ingestJSON = false, nil, false
		statusJSON = false
		configForce = false
		queryCmd.Flags().Lookup("top-k").Changed = false
	})
	return buf
}
