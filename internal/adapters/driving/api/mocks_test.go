package api

import (
	"context"
	"sync"

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

	mu       sync.Mutex
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.Hit, error) {
	m.mu.Lock()
	m.lastOpts = opts
	m.mu.Unlock()

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

func (m *mockSearchService) opts() domain.SearchOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

type mockIngestService struct {
	mu        sync.Mutex
	busy      bool
	triggered []domain.IngestOptions
}

func (m *mockIngestService) Run(_ context.Context, _ domain.IngestOptions) (*domain.IngestReport, error) {
	return &domain.IngestReport{}, nil
}

func (m *mockIngestService) Trigger(opts domain.IngestOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return "", domain.ErrIngestInProgress
	}
	m.triggered = append(m.triggered, opts)
	return "run-1", nil
}

func (m *mockIngestService) Running() bool { return false }

func (m *mockIngestService) LastReport() *domain.IngestReport { return nil }
