package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driving"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestConfig tunes ingestion runs.
type IngestConfig struct {
	// Workers bounds concurrent embedding calls.
	Workers int

	// EmbedTimeout bounds each embedding call.
	EmbedTimeout time.Duration

	// EmbedAttempts is how many times a chunk embedding is tried.
	EmbedAttempts int
}

// DefaultIngestConfig returns the default ingestion tuning.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Workers:       domain.DefaultIngestWorkers,
		EmbedTimeout:  domain.DefaultEmbedTimeout,
		EmbedAttempts: domain.DefaultEmbedAttempts,
	}
}

// IngestService fetches, normalises, chunks and embeds every configured
// source into a fresh generation, then publishes it. Only one run holds
// the writer slot at a time.
type IngestService struct {
	index      *Index
	connectors []driven.Connector
	registry   driven.NormaliserRegistry
	chunker    driven.Chunker
	embedder   driven.EmbeddingService // optional
	cfg        IngestConfig

	embedPool *ants.Pool
	runPool   *ants.Pool

	writer  sync.Mutex
	running atomic.Bool

	// Background runs use this context so Close can cancel them.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.RWMutex
	last *domain.IngestReport
}

// NewIngestService creates an ingest service.
// The embedder is optional; without it only the lexical index is built.
func NewIngestService(
	index *Index,
	connectors []driven.Connector,
	registry driven.NormaliserRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	cfg IngestConfig,
) (*IngestService, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = domain.DefaultIngestWorkers
	}
	if cfg.EmbedAttempts <= 0 {
		cfg.EmbedAttempts = domain.DefaultEmbedAttempts
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = domain.DefaultEmbedTimeout
	}

	embedPool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	runPool, err := ants.NewPool(1, ants.WithNonblocking(true))
	if err != nil {
		embedPool.Release()
		return nil, fmt.Errorf("create run pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &IngestService{
		index:      index,
		connectors: connectors,
		registry:   registry,
		chunker:    chunker,
		embedder:   embedder,
		cfg:        cfg,
		embedPool:  embedPool,
		runPool:    runPool,
		baseCtx:    ctx,
		cancel:     cancel,
	}, nil
}

// Run ingests in the foreground.
// It fails with domain.ErrIngestInProgress if another run is active.
func (s *IngestService) Run(ctx context.Context, opts domain.IngestOptions) (*domain.IngestReport, error) {
	if !s.writer.TryLock() {
		return nil, domain.ErrIngestInProgress
	}
	defer s.writer.Unlock()

	return s.run(ctx, uuid.NewString(), opts)
}

// Trigger starts a background run and returns its run ID.
func (s *IngestService) Trigger(opts domain.IngestOptions) (string, error) {
	if err := s.baseCtx.Err(); err != nil {
		return "", fmt.Errorf("ingest service closed: %w", err)
	}
	if !s.writer.TryLock() {
		return "", domain.ErrIngestInProgress
	}

	// Running is reported from acceptance, before the pool starts the task.
	s.running.Store(true)
	runID := uuid.NewString()
	s.wg.Add(1)
	err := s.runPool.Submit(func() {
		defer s.wg.Done()
		defer s.writer.Unlock()

		if _, err := s.run(s.baseCtx, runID, opts); err != nil {
			logger.Warn("Background ingest %s failed: %v", runID, err)
		}
	})
	if err != nil {
		s.running.Store(false)
		s.wg.Done()
		s.writer.Unlock()
		if errors.Is(err, ants.ErrPoolOverload) {
			return "", domain.ErrIngestInProgress
		}
		return "", fmt.Errorf("submit ingest: %w", err)
	}
	return runID, nil
}

// Running reports whether a run is active.
func (s *IngestService) Running() bool {
	return s.running.Load()
}

// LastReport returns a copy of the most recent finished run.
func (s *IngestService) LastReport() *domain.IngestReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// Close cancels background runs, waits for them and releases the pools.
func (s *IngestService) Close() error {
	s.cancel()
	s.wg.Wait()
	s.runPool.Release()
	s.embedPool.Release()
	return nil
}

// run performs one ingestion. The caller holds the writer slot.
func (s *IngestService) run(ctx context.Context, runID string, opts domain.IngestOptions) (*domain.IngestReport, error) {
	s.running.Store(true)
	defer s.running.Store(false)

	if opts.Mode == "" {
		opts.Mode = domain.IngestModeRebuild
	}
	report := &domain.IngestReport{
		RunID:     runID,
		Mode:      opts.Mode,
		StartedAt: time.Now().UTC(),
	}

	err := s.ingest(ctx, opts, report)
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Error = err.Error()
		logger.Warn("Ingest %s abandoned, keeping previous generation: %v", runID, err)
	} else {
		logger.Info("Ingest complete: %d documents indexed, %d skipped, %d chunks total (%s)",
			report.DocumentsIndexed, report.DocumentsSkipped, report.TotalChunks,
			report.Duration().Round(time.Millisecond))
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	return report, err
}

func (s *IngestService) ingest(ctx context.Context, opts domain.IngestOptions, report *domain.IngestReport) error {
	if !opts.Mode.IsValid() {
		return fmt.Errorf("%w: ingest mode %q", domain.ErrInvalidArgument, opts.Mode)
	}

	logger.Section("Ingest")
	b, err := s.index.begin(ctx, uuid.NewString(), opts.Mode)
	if err != nil {
		return err
	}
	report.GenerationID = b.id
	logger.Info("Building generation %s (%s)", b.id, opts.Mode)

	if opts.Mode == domain.IngestModeRefresh {
		if err := removeDeleted(ctx, b, opts, report); err != nil {
			b.abort()
			return err
		}
	}

	for _, c := range s.connectors {
		if !opts.Includes(c.Source()) {
			continue
		}
		if err := s.ingestSource(ctx, b, c, report); err != nil {
			b.abort()
			return fmt.Errorf("ingest %s: %w", c.Name(), err)
		}
	}

	g, err := s.index.publish(ctx, b)
	if err != nil {
		return fmt.Errorf("publish generation: %w", err)
	}
	report.TotalChunks = g.chunks
	return nil
}

// removeDeleted drops the documents a refresh was told are gone upstream.
// Documents fetched again later in the run are reinserted.
func removeDeleted(ctx context.Context, b *builder, opts domain.IngestOptions, report *domain.IngestReport) error {
	for _, key := range opts.Deleted {
		if !opts.Includes(key.Source) {
			continue
		}
		removed, err := b.remove(ctx, key)
		if err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		if removed {
			report.DocumentsRemoved++
		}
	}
	return nil
}

// ingestSource drains one connector into the builder. Per-document failures
// are counted and skipped; only cancellation and storage errors are returned.
//
//nolint:gocognit // Orchestration function coordinating two channels
func (s *IngestService) ingestSource(
	ctx context.Context, b *builder, c driven.Connector, report *domain.IngestReport,
) error {
	logger.Info("Fetching %s", c.Name())
	docsCh, errsCh := c.Fetch(ctx)

	for docsCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			report.FetchFailures++
			var fe *domain.FetchError
			if errors.As(err, &fe) && fe.Key.DocumentID != "" {
				report.DocumentsSkipped++
			}
			logger.Warn("Fetch failure in %s: %v", c.Name(), err)

		case raw, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			report.DocumentsFetched++
			if err := s.ingestDocument(ctx, b, &raw, report); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}

// ingestDocument normalises, chunks, embeds and stores one document.
// The document's chunks are written only once every chunk is embedded.
func (s *IngestService) ingestDocument(
	ctx context.Context, b *builder, raw *domain.RawDocument, report *domain.IngestReport,
) error {
	logger.Debug("Processing: %s", raw.Key)

	doc, err := s.registry.Normalise(ctx, raw)
	if err != nil {
		report.DocumentsSkipped++
		logger.Warn("Skipping %s: normalise: %v", raw.Key, err)
		return nil
	}

	chunks, err := s.chunker.Process(doc)
	if err != nil {
		report.DocumentsSkipped++
		logger.Warn("Skipping %s: chunk: %v", raw.Key, err)
		return nil
	}

	embedded, err := s.embedChunks(ctx, chunks)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		report.EmbedFailures++
		report.DocumentsSkipped++
		logger.Warn("Skipping %s: %v", raw.Key, err)
		return nil
	}

	if err := b.replace(ctx, doc.Key, embedded); err != nil {
		return fmt.Errorf("store %s: %w", doc.Key, err)
	}
	report.DocumentsIndexed++
	report.ChunksIndexed += len(embedded)
	return nil
}

// embedChunks embeds every chunk concurrently on the worker pool.
// Without an embedder the chunks are returned without vectors.
func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddedChunk, error) {
	out := make([]domain.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		out[i].Chunk = c
	}
	if s.embedder == nil || len(chunks) == 0 {
		return out, nil
	}

	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i := range out {
		wg.Add(1)
		err := s.embedPool.Submit(func() {
			defer wg.Done()
			out[i].Embedding, errs[i] = s.embed(ctx, out[i].Text)
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit embedding: %w", err)
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	return out, nil
}

// embed embeds one text with a per-call timeout and retries.
func (s *IngestService) embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retryWithBackoff(ctx, s.cfg.EmbedAttempts, retryBaseDelay, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()

		v, err := s.embedder.Embed(callCtx, text)
		if err != nil {
			return err
		}
		if want := s.embedder.Dimensions(); want > 0 && len(v) != want {
			return fmt.Errorf("%w: got %d values, want %d", domain.ErrDimensionMismatch, len(v), want)
		}
		vec = v
		return nil
	})
	return vec, err
}
