package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/postprocessors/chunker"
)

// --- Mock implementations ---

// mockConnector implements driven.Connector for testing.
// When hold is set, Fetch keeps its channels open until hold is closed.
type mockConnector struct {
	source domain.Source

	mu   sync.Mutex
	docs []domain.RawDocument
	errs []error
	hold chan struct{}

	fetched chan struct{} // receives once all documents are sent
}

func newMockConnector(source domain.Source, docs ...domain.RawDocument) *mockConnector {
	return &mockConnector{source: source, docs: docs}
}

func (m *mockConnector) setDocs(docs ...domain.RawDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = docs
}

func (m *mockConnector) Source() domain.Source            { return m.source }
func (m *mockConnector) Name() string                     { return "mock-" + string(m.source) }
func (m *mockConnector) Validate(_ context.Context) error { return nil }
func (m *mockConnector) Close() error                     { return nil }

func (m *mockConnector) Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	m.mu.Lock()
	docs := append([]domain.RawDocument(nil), m.docs...)
	errs := append([]error(nil), m.errs...)
	hold, fetched := m.hold, m.fetched
	m.mu.Unlock()

	docsCh := make(chan domain.RawDocument)
	errsCh := make(chan error)
	go func() {
		defer close(docsCh)
		defer close(errsCh)

		for _, err := range errs {
			select {
			case errsCh <- err:
			case <-ctx.Done():
				return
			}
		}
		for _, d := range docs {
			select {
			case docsCh <- d:
			case <-ctx.Done():
				return
			}
		}
		if fetched != nil {
			fetched <- struct{}{}
		}
		if hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
			}
		}
	}()
	return docsCh, errsCh
}

// mockRegistry implements driven.NormaliserRegistry by passing content through.
// Documents with an unknown MIME type fail to normalise.
type mockRegistry struct{}

func (mockRegistry) Register(_ driven.Normaliser) {}

func (mockRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw.MIMEType != domain.MIMETypePlain {
		return nil, domain.ErrUnsupportedType
	}
	return &domain.Document{
		Key:   raw.Key,
		URI:   raw.URI,
		Title: raw.Title,
		Text:  string(raw.Content),
	}, nil
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Vectors count occurrences of a few letters so that similar texts are close.
type mockEmbeddingService struct {
	failOn string // texts containing this fail to embed
	err    error  // every call fails with this
	calls  atomic.Int32
}

var embedAlphabet = []rune{'a', 'e', 'o', 'x'}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, errors.New("model refused input")
	}
	vec := make([]float32, len(embedAlphabet))
	for i, r := range embedAlphabet {
		vec[i] = float32(strings.Count(text, string(r)))
	}
	return vec, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int              { return len(embedAlphabet) }
func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// --- Test helpers ---

func plainDoc(source domain.Source, id, text string) domain.RawDocument {
	return domain.RawDocument{
		Key:      domain.DocumentKey{Source: source, DocumentID: id},
		URI:      "mock://" + id,
		MIMEType: domain.MIMETypePlain,
		Content:  []byte(text),
	}
}

func newTestIndex(t *testing.T, dataDir string) *Index {
	t.Helper()
	store, err := sqlite.NewGenerations(dataDir)
	require.NoError(t, err)

	idx := NewIndex(store, func(dims int) (driven.VectorIndex, error) {
		return flat.New(dims)
	})
	t.Cleanup(func() { idx.Close() })
	return idx
}

// newTestChunker uses four-word windows sharing two words.
func newTestChunker(t *testing.T) *chunker.Processor {
	t.Helper()
	p, err := chunker.New(chunker.WithMaxWords(4), chunker.WithOverlap(2))
	require.NoError(t, err)
	return p
}

type testEngine struct {
	index    *Index
	ingest   *IngestService
	search   *SearchService
	embedder *mockEmbeddingService
}

func newTestEngine(t *testing.T, embedder *mockEmbeddingService, connectors ...driven.Connector) *testEngine {
	t.Helper()
	idx := newTestIndex(t, "")

	var emb driven.EmbeddingService
	if embedder != nil {
		emb = embedder
	}

	cfg := DefaultIngestConfig()
	cfg.EmbedAttempts = 1
	ingest, err := NewIngestService(idx, connectors, mockRegistry{}, newTestChunker(t), emb, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { ingest.Close() })

	search := NewSearchService(idx, emb, 0)
	search.SetIngestService(ingest)

	return &testEngine{index: idx, ingest: ingest, search: search, embedder: embedder}
}
