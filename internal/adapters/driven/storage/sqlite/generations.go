package sqlite

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
)

// Ensure Generations implements the interface.
var _ driven.GenerationStore = (*Generations)(nil)

const (
	generationsDir = "generations"
	currentFile    = "CURRENT"
	dbExt          = ".db"
)

// Generations manages generation databases under a data directory.
// With an empty directory every generation lives in memory.
type Generations struct {
	mu          sync.Mutex
	dir         string
	current     string
	committedAt time.Time
}

// NewGenerations creates the generation store.
func NewGenerations(dataDir string) (*Generations, error) {
	g := &Generations{dir: dataDir}
	if dataDir == "" {
		return g, nil
	}

	if err := os.MkdirAll(filepath.Join(dataDir, generationsDir), 0700); err != nil {
		return nil, fmt.Errorf("creating generations directory: %w", err)
	}
	return g, nil
}

// InMemory reports whether generations are kept in memory.
func (g *Generations) InMemory() bool {
	return g.dir == ""
}

func (g *Generations) dbPath(id string) string {
	return filepath.Join(g.dir, generationsDir, id+dbExt)
}

// Create makes an empty generation.
func (g *Generations) Create(_ context.Context, id string) (driven.GenerationIndex, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: generation id %q", domain.ErrInvalidInput, id)
	}
	if g.InMemory() {
		return Open("")
	}

	path := g.dbPath(id)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("generation %s already exists", id)
	}
	return Open(path)
}

// Open reopens a committed generation from disk.
func (g *Generations) Open(_ context.Context, id string) (driven.GenerationIndex, error) {
	if g.InMemory() {
		return nil, fmt.Errorf("generation %s: %w", id, domain.ErrNotFound)
	}

	path := g.dbPath(id)
	if _, err := os.Stat(path); err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("generation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("checking generation %s: %w", id, err)
	}
	return Open(path)
}

// Current returns the committed generation.
func (g *Generations) Current() (string, time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.InMemory() {
		if g.current == "" {
			return "", time.Time{}, domain.ErrNotFound
		}
		return g.current, g.committedAt, nil
	}

	f, err := os.Open(filepath.Join(g.dir, currentFile))
	if err != nil {
		if isMissing(err) {
			return "", time.Time{}, domain.ErrNotFound
		}
		return "", time.Time{}, fmt.Errorf("reading %s: %w", currentFile, err)
	}
	defer f.Close()

	// CURRENT holds the id on the first line and the commit time on the second.
	sc := bufio.NewScanner(f)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("reading %s: %w", currentFile, err)
	}
	if len(lines) == 0 || lines[0] == "" {
		return "", time.Time{}, domain.ErrNotFound
	}

	var at time.Time
	if len(lines) > 1 {
		at, _ = time.Parse(time.RFC3339Nano, lines[1])
	}
	return lines[0], at, nil
}

// Commit atomically records id as the committed generation.
func (g *Generations) Commit(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC()
	if g.InMemory() {
		g.current = id
		g.committedAt = now
		return nil
	}

	tmp := filepath.Join(g.dir, currentFile+".tmp")
	content := id + "\n" + now.Format(time.RFC3339Nano) + "\n"
	if err := os.WriteFile(tmp, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", currentFile, err)
	}
	if err := os.Rename(tmp, filepath.Join(g.dir, currentFile)); err != nil {
		return fmt.Errorf("replacing %s: %w", currentFile, err)
	}
	return nil
}

// Remove deletes a generation database and its WAL files.
func (g *Generations) Remove(id string) error {
	if g.InMemory() || id == "" {
		return nil
	}

	path := g.dbPath(id)
	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !isMissing(err) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("removing generation %s: %w", id, err)
	}
	return nil
}

// Prune removes every generation file except the committed one.
func (g *Generations) Prune() error {
	if g.InMemory() {
		return nil
	}

	current, _, err := g.Current()
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	entries, err := os.ReadDir(filepath.Join(g.dir, generationsDir))
	if err != nil {
		return fmt.Errorf("listing generations: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, dbExt) {
			continue
		}
		id := strings.TrimSuffix(name, dbExt)
		if id == current {
			continue
		}
		if err := g.Remove(id); err != nil {
			return err
		}
	}
	return nil
}
