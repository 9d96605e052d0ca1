package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/hybridsearch/internal/connectors"
	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/core/services"
	"github.com/custodia-labs/hybridsearch/internal/logger"
	"github.com/custodia-labs/hybridsearch/internal/normalisers"
	"github.com/custodia-labs/hybridsearch/internal/postprocessors/chunker"
)

// App holds the wired services for one process.
type App struct {
	Settings   domain.Settings
	Index      *services.Index
	Search     *services.SearchService
	Ingest     *services.IngestService
	Embedder   driven.EmbeddingService // nil when embeddings are disabled
	Connectors []driven.Connector
}

// Option configures New.
type Option func(*options)

type options struct {
	getenv   func(string) string
	embedder driven.EmbeddingService
	override bool
}

// WithGetenv sets how token and API key variables are resolved.
func WithGetenv(getenv func(string) string) Option {
	return func(o *options) {
		o.getenv = getenv
	}
}

// WithEmbedder replaces the configured embedding provider. Nil disables embeddings.
func WithEmbedder(e driven.EmbeddingService) Option {
	return func(o *options) {
		o.embedder = e
		o.override = true
	}
}

// New builds every service from settings and loads the committed generation.
// Close releases everything New acquired.
func New(ctx context.Context, settings domain.Settings, opts ...Option) (*App, error) {
	o := options{getenv: os.Getenv}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Settings: settings}
	ok := false
	defer func() {
		if !ok {
			a.Close() //nolint:errcheck
		}
	}()

	if o.override {
		a.Embedder = o.embedder
	} else {
		e, err := NewEmbedder(settings.Embedding, o.getenv)
		if err != nil {
			return nil, err
		}
		a.Embedder = e
	}
	if a.Embedder != nil {
		logger.Debug("Embedding model: %s (%d dimensions)", a.Embedder.ModelName(), a.Embedder.Dimensions())
	} else {
		logger.Debug("Embeddings disabled, text search only")
	}

	chunk, err := chunker.New(
		chunker.WithMaxWords(settings.Chunking.MaxWords),
		chunker.WithOverlap(settings.Chunking.Overlap),
	)
	if err != nil {
		return nil, err
	}

	registry := normalisers.Default()

	a.Connectors, err = connectors.Build(ctx, settings.Sources, connectors.Options{
		FetchTimeout: settings.Ingest.FetchTimeout.Std(),
		Getenv:       o.getenv,
	})
	if err != nil {
		return nil, fmt.Errorf("build connectors: %w", err)
	}

	store, err := sqlite.NewGenerations(settings.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open generation store: %w", err)
	}

	a.Index = services.NewIndex(store, func(dimensions int) (driven.VectorIndex, error) {
		idx, err := flat.New(dimensions)
		if err != nil {
			return nil, err
		}
		return idx, nil
	})
	if err := a.Index.Load(ctx); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	a.Ingest, err = services.NewIngestService(a.Index, a.Connectors, registry, chunk, a.Embedder, services.IngestConfig{
		Workers:       settings.Ingest.Workers,
		EmbedTimeout:  settings.Ingest.EmbedTimeout.Std(),
		EmbedAttempts: settings.Ingest.EmbedAttempts,
	})
	if err != nil {
		return nil, err
	}

	a.Search = services.NewSearchService(a.Index, a.Embedder, settings.Embedding.Timeout.Std())
	a.Search.SetIngestService(a.Ingest)

	ok = true
	return a, nil
}

// Scheduler returns a scheduler for the configured schedule and watchers.
func (a *App) Scheduler(opts ...services.SchedulerOption) *services.Scheduler {
	var base []services.SchedulerOption
	if a.Settings.Ingest.Schedule != "" {
		base = append(base, services.WithSchedule(a.Settings.Ingest.Schedule))
	}
	if a.Settings.Ingest.Watch {
		base = append(base, services.WithWatchers(a.Connectors))
	}
	return services.NewScheduler(a.Ingest, append(base, opts...)...)
}

// ValidateSources checks every connector's configuration and reachability.
func (a *App) ValidateSources(ctx context.Context) error {
	var errs []error
	for _, c := range a.Connectors {
		if err := c.Validate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops background runs and releases connectors, indexes and the embedder.
func (a *App) Close() error {
	var errs []error
	if a.Ingest != nil {
		errs = append(errs, a.Ingest.Close())
	}
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	errs = append(errs, connectors.Close(a.Connectors))
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	return errors.Join(errs...)
}
