package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func collect(t *testing.T, c *Connector) ([]domain.RawDocument, []error) {
	t.Helper()
	docsCh, errsCh := c.Fetch(context.Background())

	var docs []domain.RawDocument
	var errs []error
	for docsCh != nil || errsCh != nil {
		select {
		case d, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			docs = append(docs, d)
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			errs = append(errs, err)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key.DocumentID < docs[j].Key.DocumentID })
	return docs, errs
}

func TestNew(t *testing.T) {
	c := New("", "/tmp/docs")
	assert.Equal(t, domain.SourceFilesystem, c.Source())
	assert.Equal(t, "filesystem", c.Name())
	assert.Equal(t, "runbooks", New("runbooks", "/tmp").Name())
}

func TestFetch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "intro.txt"), "hello")
	writeFile(t, filepath.Join(root, "guides", "setup.md"), "# Setup")
	writeFile(t, filepath.Join(root, "guides", "page.html"), "<p>hi</p>")
	writeFile(t, filepath.Join(root, ".hidden.txt"), "secret")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(root, "image.png"), "binary")

	docs, errs := collect(t, New("docs", root))
	require.Empty(t, errs)
	require.Len(t, docs, 3)

	assert.Equal(t, "guides/page.html", docs[0].Key.DocumentID)
	assert.Equal(t, domain.MIMETypeHTML, docs[0].MIMEType)

	assert.Equal(t, "guides/setup.md", docs[1].Key.DocumentID)
	assert.Equal(t, domain.MIMETypeMarkdown, docs[1].MIMEType)

	intro := docs[2]
	assert.Equal(t, domain.DocumentKey{Source: domain.SourceFilesystem, DocumentID: "intro.txt"}, intro.Key)
	assert.Equal(t, filepath.Join(root, "intro.txt"), intro.URI)
	assert.Equal(t, "intro.txt", intro.Title)
	assert.Equal(t, domain.MIMETypePlain, intro.MIMEType)
	assert.Equal(t, []byte("hello"), intro.Content)
}

func TestFetch_Options(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "small.txt"), "ok")
	writeFile(t, filepath.Join(root, "large.txt"), "this file is too large")
	writeFile(t, filepath.Join(root, "notes.md"), "# notes")

	docs, errs := collect(t, New("", root,
		WithMIMETypes([]string{domain.MIMETypePlain}),
		WithMaxFileSize(10),
	))
	require.Empty(t, errs)
	require.Len(t, docs, 1)
	assert.Equal(t, "small.txt", docs[0].Key.DocumentID)
}

func TestFetch_MissingRoot(t *testing.T) {
	docs, errs := collect(t, New("", "/non/existent/path"))
	assert.Empty(t, docs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrUpstreamFetch)
	assert.Contains(t, errs[0].Error(), "does not exist")
}

func TestFetch_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docsCh, errsCh := New("", root).Fetch(ctx)
	for range docsCh {
	}
	for range errsCh {
	}
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	writeFile(t, file, "content")

	tests := []struct {
		name    string
		path    string
		wantMsg string
	}{
		{name: "directory", path: root},
		{name: "missing", path: "/non/existent/path/12345", wantMsg: "does not exist"},
		{name: "file", path: file, wantMsg: "not a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New("", tt.path).Validate(context.Background())
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, New("", root).Validate(ctx))

	closed := New("", root)
	require.NoError(t, closed.Close())
	assert.ErrorIs(t, closed.Validate(context.Background()), domain.ErrConnectorClosed)
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"file", "text/plain"},
		{"notes.txt", "text/plain"},
		{"doc.md", "text/markdown"},
		{"DOC.MARKDOWN", "text/markdown"},
		{"page.html", "text/html"},
		{"code.go", "text/x-go"},
		{"config.Yaml", "text/yaml"},
		{"data.json", "application/json"},
		{"file.zzzzunknown", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, detectMIMEType(tt.filename))
		})
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{".hidden", true},
		{"dir/.git/config", true},
		{"/home/user/.ssh/id_rsa", true},
		{"visible.txt", false},
		{"dir/file.txt", false},
		{"./file.txt", false},
		{"../file.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isHidden(tt.path))
		})
	}
}

func TestHandleFsEvent(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		create   bool
		dir      bool
		op       fsnotify.Op
		wantType domain.ChangeType
		wantNil  bool
	}{
		{name: "create", file: "new.txt", create: true, op: fsnotify.Create, wantType: domain.ChangeCreated},
		{name: "write", file: "doc.md", create: true, op: fsnotify.Write, wantType: domain.ChangeUpdated},
		{name: "write and chmod", file: "doc.md", create: true, op: fsnotify.Write | fsnotify.Chmod, wantType: domain.ChangeUpdated},
		{name: "remove", file: "gone.txt", op: fsnotify.Remove, wantType: domain.ChangeDeleted},
		{name: "rename", file: "old.txt", op: fsnotify.Rename, wantType: domain.ChangeDeleted},
		{name: "chmod only", file: "doc.txt", create: true, op: fsnotify.Chmod, wantNil: true},
		{name: "directory", file: "sub", dir: true, op: fsnotify.Create, wantNil: true},
		{name: "hidden", file: ".secret.txt", create: true, op: fsnotify.Create, wantNil: true},
		{name: "filtered type", file: "image.png", create: true, op: fsnotify.Create, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			path := filepath.Join(root, tt.file)
			switch {
			case tt.dir:
				require.NoError(t, os.Mkdir(path, 0755))
			case tt.create:
				writeFile(t, path, "content")
			}

			change := New("", root).handleFsEvent(fsnotify.Event{Name: path, Op: tt.op})
			if tt.wantNil {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.wantType, change.Type)
			assert.Equal(t, path, change.URI)
			assert.Equal(t, tt.file, change.Key.DocumentID)
		})
	}
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	c := New("", root)
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := c.Watch(ctx)
	require.NoError(t, err)

	_, err = c.Watch(ctx)
	assert.Error(t, err, "second watch is rejected")

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	// Give the watcher time to pick up the new directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(sub, "new.md"), "# new")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case change, ok := <-changes:
			require.True(t, ok, "channel closed early")
			if change.Key.DocumentID == "sub/new.md" {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for change in new directory")
		}
	}
}

func TestWatch_AfterClose(t *testing.T) {
	c := New("", t.TempDir())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Watch(context.Background())
	assert.ErrorIs(t, err, domain.ErrConnectorClosed)
}
