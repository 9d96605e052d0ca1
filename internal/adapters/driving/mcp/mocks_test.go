package mcp

import (
	"context"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driving"
)

var (
	_ driving.SearchService = (*mockSearchService)(nil)
	_ driving.IngestService = (*mockIngestService)(nil)
)

// mockSearchService is a mock implementation of driving.SearchService.
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
	if opts.TopK <= 0 {
		return nil, domain.ErrInvalidArgument
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

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	runID  string
	err    error
	report *domain.IngestReport

	triggered []domain.IngestOptions
}

func (m *mockIngestService) Run(_ context.Context, _ domain.IngestOptions) (*domain.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngestService) Trigger(opts domain.IngestOptions) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.triggered = append(m.triggered, opts)
	return m.runID, nil
}

func (m *mockIngestService) Running() bool { return false }

func (m *mockIngestService) LastReport() *domain.IngestReport { return m.report }

func intPtr(v int) *int { return &v }
