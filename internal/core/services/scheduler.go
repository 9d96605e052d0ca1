package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driving"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// DefaultWatchDebounce is how long change events are collected before a refresh.
const DefaultWatchDebounce = 2 * time.Second

// Scheduler triggers background ingestion on a cron schedule and when
// watching connectors report changes.
type Scheduler struct {
	ingest   driving.IngestService
	schedule string
	watchers map[domain.Source]driven.Watcher
	debounce time.Duration

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// SchedulerOption configures the scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedule sets a cron spec for periodic rebuilds, e.g. "@every 1h".
func WithSchedule(spec string) SchedulerOption {
	return func(s *Scheduler) {
		s.schedule = spec
	}
}

// WithWatchers enables refresh-on-change for connectors that can watch.
func WithWatchers(connectors []driven.Connector) SchedulerOption {
	return func(s *Scheduler) {
		for _, c := range connectors {
			if w, ok := c.(driven.Watcher); ok {
				s.watchers[c.Source()] = w
			}
		}
	}
}

// WithDebounce sets how long change events are collected before a refresh.
func WithDebounce(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.debounce = d
	}
}

// NewScheduler creates a scheduler.
func NewScheduler(ingest driving.IngestService, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		ingest:   ingest,
		watchers: make(map[domain.Source]driven.Watcher),
		debounce: DefaultWatchDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the cron job and starts watching. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	if s.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.schedule, s.runScheduled); err != nil {
			cancel()
			return fmt.Errorf("%w: schedule %q: %w", domain.ErrInvalidConfiguration, s.schedule, err)
		}
		c.Start()
		s.cron = c
		logger.Info("Scheduled rebuilds: %s", s.schedule)
	}

	if len(s.watchers) > 0 {
		changes, err := s.startWatchers(ctx)
		if err != nil {
			cancel()
			if s.cron != nil {
				s.cron.Stop()
				s.cron = nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.refreshOnChange(ctx, changes)
		}()
	}

	s.cancel = cancel
	s.running = true
	return nil
}

// Stop stops the cron job and the watchers and waits for them to exit.
// Runs already handed to the ingest service are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
}

func (s *Scheduler) runScheduled() {
	runID, err := s.ingest.Trigger(domain.IngestOptions{Mode: domain.IngestModeRebuild})
	if err != nil {
		if errors.Is(err, domain.ErrIngestInProgress) {
			logger.Info("Scheduled rebuild skipped: ingest already running")
			return
		}
		logger.Warn("Scheduled rebuild failed to start: %v", err)
		return
	}
	logger.Info("Scheduled rebuild started: %s", runID)
}

type sourceChange struct {
	source domain.Source
	change domain.RawDocumentChange
}

// startWatchers fans every watcher's events into one channel.
func (s *Scheduler) startWatchers(ctx context.Context) (<-chan sourceChange, error) {
	out := make(chan sourceChange)
	var fanIn sync.WaitGroup

	for src, w := range s.watchers {
		ch, err := w.Watch(ctx)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", src, err)
		}
		logger.Info("Watching %s for changes", src)

		fanIn.Add(1)
		go func() {
			defer fanIn.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case c, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- sourceChange{source: src, change: c}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		fanIn.Wait()
		close(out)
	}()
	return out, nil
}

// refreshOnChange collects changes and triggers a refresh of the changed
// sources once no new change has arrived for the debounce interval.
// Documents whose last change was a deletion are passed to the refresh so
// their chunks are dropped. A refresh that cannot start because a run is
// active is retried.
func (s *Scheduler) refreshOnChange(ctx context.Context, changes <-chan sourceChange) {
	pending := make(map[domain.Source]bool)
	deleted := make(map[domain.DocumentKey]bool)
	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case c, ok := <-changes:
			if !ok {
				return
			}
			logger.Debug("Change in %s: %s %s", c.source, c.change.Type, c.change.URI)
			pending[c.source] = true
			if c.change.Type == domain.ChangeDeleted {
				deleted[c.change.Key] = true
			} else {
				delete(deleted, c.change.Key)
			}
			timer.Reset(s.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			sources := slices.Sorted(maps.Keys(pending))
			runID, err := s.ingest.Trigger(domain.IngestOptions{
				Mode:    domain.IngestModeRefresh,
				Sources: sources,
				Deleted: slices.SortedFunc(maps.Keys(deleted), compareKeys),
			})
			if err != nil {
				logger.Debug("Refresh deferred: %v", err)
				timer.Reset(s.debounce)
				continue
			}
			logger.Info("Refresh started for %v: %s", sources, runID)
			clear(pending)
			clear(deleted)
		}
	}
}

func compareKeys(a, b domain.DocumentKey) int {
	return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.DocumentID, b.DocumentID))
}
