package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driving"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService answers queries against the live generation.
type SearchService struct {
	index        *Index
	embedder     driven.EmbeddingService // optional
	embedTimeout time.Duration
	ingest       driving.IngestService
}

// NewSearchService creates a new search service.
// The embedder is optional; without it only text search is available.
func NewSearchService(index *Index, embedder driven.EmbeddingService, embedTimeout time.Duration) *SearchService {
	if embedTimeout <= 0 {
		embedTimeout = domain.DefaultEmbedTimeout
	}
	return &SearchService{
		index:        index,
		embedder:     embedder,
		embedTimeout: embedTimeout,
	}
}

// SetIngestService sets the ingest service reported by Status.
func (s *SearchService) SetIngestService(ingest driving.IngestService) {
	s.ingest = ingest
}

// Search returns at most opts.TopK hits, highest score first.
//
// Hybrid mode oversamples keyword candidates, keeps the top_k best of them
// and merges them with the top_k nearest chunks by score. Ties keep
// semantic hits ahead of keyword hits.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Hit, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	topK := opts.TopK
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}

	mode, err := s.effectiveMode(opts.Mode)
	if err != nil {
		return nil, err
	}
	logger.Debug("Mode: %s, top_k: %d", mode, topK)

	if strings.TrimSpace(query) == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.Hit{}, nil
	}

	g := s.index.acquire()
	if g == nil {
		logger.Debug("No live generation, returning no results")
		return []domain.Hit{}, nil
	}
	defer g.release()

	if g.chunks == 0 {
		return []domain.Hit{}, nil
	}

	var hits []domain.Hit
	switch mode {
	case domain.SearchModeText:
		hits, err = g.lexicalHits(ctx, query, topK)
	case domain.SearchModeSemantic:
		hits, err = s.semanticHits(ctx, g, query, topK)
	default:
		hits, err = s.hybridSearch(ctx, g, query, topK)
	}
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Info("Final results: %d", len(hits))
	return hits, nil
}

// effectiveMode resolves the requested mode against the available services.
// An unset mode falls back to text search when no embedder is configured.
func (s *SearchService) effectiveMode(mode domain.SearchMode) (domain.SearchMode, error) {
	if mode == "" {
		if s.embedder == nil {
			return domain.SearchModeText, nil
		}
		return domain.SearchModeHybrid, nil
	}
	if !mode.IsValid() {
		return "", fmt.Errorf("%w: search mode %q", domain.ErrInvalidArgument, mode)
	}
	if mode.RequiresEmbedding() && s.embedder == nil {
		return "", fmt.Errorf("%s search: %w", mode, domain.ErrEmbeddingUnavailable)
	}
	return mode, nil
}

// hybridSearch runs keyword and vector searches in parallel and fuses them.
func (s *SearchService) hybridSearch(ctx context.Context, g *generation, query string, topK int) ([]domain.Hit, error) {
	var lexical, semantic []domain.Hit
	var lexicalErr, semanticErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		lexical, lexicalErr = g.lexicalHits(ctx, query, topK*domain.LexicalOversample)
	}()

	go func() {
		defer wg.Done()
		semantic, semanticErr = s.semanticHits(ctx, g, query, topK)
	}()

	wg.Wait()

	if err := errors.Join(lexicalErr, semanticErr); err != nil {
		return nil, err
	}

	logger.Debug("Hybrid search: merging %d semantic + %d keyword results", len(semantic), len(lexical))
	return fuse(semantic, lexical, topK), nil
}

// semanticHits embeds the query and searches the vector index.
// A failed query embedding fails the query.
func (s *SearchService) semanticHits(ctx context.Context, g *generation, query string, k int) ([]domain.Hit, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	vec, err := s.embedder.Embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrEmbedding, err)
	}
	logger.Debug("Query embedding: %d dimensions", len(vec))

	return g.vectorHits(ctx, vec, k)
}

// fuse concatenates semantic hits with the first topK keyword hits, sorts
// by score descending and keeps topK. The sort is stable so equal scores
// keep semantic hits first.
func fuse(semantic, lexical []domain.Hit, topK int) []domain.Hit {
	lexical = lexical[:min(topK, len(lexical))]

	combined := make([]domain.Hit, 0, len(semantic)+len(lexical))
	combined = append(combined, semantic...)
	combined = append(combined, lexical...)

	slices.SortStableFunc(combined, func(a, b domain.Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return combined[:min(topK, len(combined))]
}

// Status describes the live generation and the ingest state.
func (s *SearchService) Status(_ context.Context) (*domain.IndexStatus, error) {
	status := s.index.Status()
	if s.ingest != nil {
		status.Ingesting = s.ingest.Running()
		status.LastIngest = s.ingest.LastReport()
	}
	return &status, nil
}
