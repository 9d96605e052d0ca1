// Package filesystem provides a connector for local directories of text files.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// Ensure Connector implements the interfaces.
var (
	_ driven.Connector = (*Connector)(nil)
	_ driven.Watcher   = (*Connector)(nil)
)

// DefaultMaxFileSize skips files larger than this many bytes.
const DefaultMaxFileSize = 10 << 20

// extensionMIMETypes covers extensions the mime package does not know
// consistently across platforms.
var extensionMIMETypes = map[string]string{
	".md":       domain.MIMETypeMarkdown,
	".markdown": domain.MIMETypeMarkdown,
	".txt":      domain.MIMETypePlain,
	".text":     domain.MIMETypePlain,
	".rst":      "text/x-rst",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
}

// Connector reads every visible file under a root directory.
type Connector struct {
	name        string
	rootPath    string
	mimeTypes   []string
	maxFileSize int64

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// Option configures the connector.
type Option func(*Connector)

// WithMIMETypes restricts fetched files to these types.
func WithMIMETypes(types []string) Option {
	return func(c *Connector) {
		c.mimeTypes = slices.Clone(types)
	}
}

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(c *Connector) {
		c.maxFileSize = n
	}
}

// New creates a filesystem connector.
func New(name, rootPath string, opts ...Option) *Connector {
	c := &Connector{
		name:        name,
		rootPath:    rootPath,
		mimeTypes:   []string{domain.MIMETypePlain, domain.MIMETypeMarkdown, domain.MIMETypeHTML},
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns the source this connector reads.
func (c *Connector) Source() domain.Source {
	return domain.SourceFilesystem
}

// Name returns the configured display name.
func (c *Connector) Name() string {
	if c.name == "" {
		return string(domain.SourceFilesystem)
	}
	return c.name
}

// Validate checks the root exists and is a readable directory.
func (c *Connector) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return domain.ErrConnectorClosed
	}

	info, err := os.Stat(c.rootPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: path does not exist: %s", domain.ErrInvalidConfiguration, c.rootPath)
		}
		return fmt.Errorf("stat %s: %w", c.rootPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: path is not a directory: %s", domain.ErrInvalidConfiguration, c.rootPath)
	}

	f, err := os.Open(c.rootPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.rootPath, err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s: %w", c.rootPath, err)
	}
	return nil
}

// Fetch walks the root and emits every visible file with an accepted type.
func (c *Connector) Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := c.Validate(ctx); err != nil {
			if ctx.Err() == nil {
				errs <- domain.NewFetchError(domain.DocumentKey{Source: domain.SourceFilesystem}, err)
			}
			return
		}

		walkErr := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				return c.send(ctx, errs, domain.NewFetchError(c.key(path), err))
			}
			if path != c.rootPath && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			doc, ok, err := c.read(path)
			if err != nil {
				return c.send(ctx, errs, domain.NewFetchError(c.key(path), err))
			}
			if !ok {
				return nil
			}

			select {
			case docs <- doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if walkErr != nil && ctx.Err() == nil {
			logger.Warn("Walk %s stopped: %v", c.rootPath, walkErr)
		}
	}()

	return docs, errs
}

// send delivers a per-file error without blocking past cancellation.
func (c *Connector) send(ctx context.Context, errs chan<- error, err error) error {
	select {
	case errs <- err:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// read loads one file. ok is false when the file is skipped by type or size.
func (c *Connector) read(path string) (domain.RawDocument, bool, error) {
	mimeType := detectMIMEType(path)
	if !slices.Contains(c.mimeTypes, mimeType) {
		return domain.RawDocument{}, false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.RawDocument{}, false, err
	}
	if c.maxFileSize > 0 && info.Size() > c.maxFileSize {
		logger.Debug("Skipping %s: %d bytes exceeds limit", path, info.Size())
		return domain.RawDocument{}, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, false, err
	}

	return domain.RawDocument{
		Key:      c.key(path),
		URI:      path,
		Title:    filepath.Base(path),
		MIMEType: mimeType,
		Content:  content,
	}, true, nil
}

// key uses the slash-separated path relative to the root as document id.
func (c *Connector) key(path string) domain.DocumentKey {
	rel, err := filepath.Rel(c.rootPath, path)
	if err != nil {
		rel = path
	}
	return domain.DocumentKey{Source: domain.SourceFilesystem, DocumentID: filepath.ToSlash(rel)}
}

// Watch emits a change for every created, written, removed or renamed
// visible file under the root. New directories are watched as they appear.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ErrConnectorClosed
	}
	if c.watcher != nil {
		return nil, errors.New("filesystem: already watching")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := addTree(w, c.rootPath); err != nil {
		w.Close()
		return nil, err
	}
	c.watcher = w

	changes := make(chan domain.RawDocumentChange)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && !isHidden(filepath.Base(event.Name)) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := addTree(w, event.Name); err != nil {
							logger.Warn("Watch %s: %v", event.Name, err)
						}
						continue
					}
				}
				change := c.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("Watch error in %s: %v", c.rootPath, err)
			}
		}
	}()

	return changes, nil
}

// handleFsEvent maps an fsnotify event to a change, or nil when the event
// is not relevant (directories, hidden paths, chmod, filtered types).
func (c *Connector) handleFsEvent(event fsnotify.Event) *domain.RawDocumentChange {
	rel, err := filepath.Rel(c.rootPath, event.Name)
	if err != nil || isHidden(rel) {
		return nil
	}

	var changeType domain.ChangeType
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		changeType = domain.ChangeDeleted
	case event.Has(fsnotify.Create):
		changeType = domain.ChangeCreated
	case event.Has(fsnotify.Write):
		changeType = domain.ChangeUpdated
	default:
		return nil
	}

	if changeType != domain.ChangeDeleted {
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
	}
	if !slices.Contains(c.mimeTypes, detectMIMEType(event.Name)) {
		return nil
	}

	return &domain.RawDocumentChange{
		Type: changeType,
		Key:  c.key(event.Name),
		URI:  event.Name,
	}
}

// Close stops watching.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.watcher != nil {
		err := c.watcher.Close()
		c.watcher = nil
		return err
	}
	return nil
}

func (c *Connector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// addTree watches dir and every visible directory below it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// detectMIMEType maps a file name to a MIME type without parameters.
func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return domain.MIMETypePlain
	}
	if t, ok := extensionMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}

// isHidden reports whether any element of a path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
