package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"strings"
	"unicode"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.GenerationIndex = (*Store)(nil)

// Store is one index generation: chunk snapshot plus FTS5 index.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the generation database at path.
// An empty path creates a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		// WAL mode lets queries read while a run is writing.
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == "" {
		// Every new connection to :memory: is a new empty database.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_chunks.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// Insert stores chunks and their embeddings in one transaction.
func (s *Store) Insert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, document_id, sequence_index, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, string(c.Source), c.DocumentID,
			c.SequenceIndex, c.Text, float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteDocument removes every chunk of the document from both tables.
func (s *Store) DeleteDocument(ctx context.Context, key domain.DocumentKey) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE source = ? AND document_id = ?",
		string(key.Source), key.DocumentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks of %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}
	return int(n), nil
}

// Search runs a BM25-ranked full-text query.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]driven.LexicalHit, error) {
	match := matchExpression(query)
	if match == "" || limit <= 0 {
		return []driven.LexicalHit{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.source, c.document_id,
		       snippet(chunks_fts, 0, '[', ']', '...', 12),
		       bm25(chunks_fts)
		FROM chunks_fts
		JOIN chunks c ON c.position = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY bm25(chunks_fts), c.position
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]driven.LexicalHit, 0, limit)
	for rows.Next() {
		var h driven.LexicalHit
		var source string
		var rank float64
		if err := rows.Scan(&h.ChunkID, &source, &h.Key.DocumentID, &h.Snippet, &rank); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		h.Key.Source = domain.Source(source)
		// bm25() is lower-is-better; flip it so every score sorts descending.
		h.Score = -rank
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}
	return hits, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Scan calls fn for every chunk in insertion order.
// Returning an error from fn stops the scan and returns that error.
func (s *Store) Scan(ctx context.Context, fn func(domain.EmbeddedChunk) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, id, source, document_id, sequence_index, text, embedding
		FROM chunks
		ORDER BY position
	`)
	if err != nil {
		return fmt.Errorf("scanning chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.EmbeddedChunk
		var source string
		var blob []byte
		if err := rows.Scan(&c.Position, &c.ID, &source, &c.DocumentID,
			&c.SequenceIndex, &c.Text, &blob); err != nil {
			return fmt.Errorf("scanning chunk row: %w", err)
		}
		c.Source = domain.Source(source)
		c.Embedding = bytesToFloat32Slice(blob)
		if err := fn(c); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}
	return nil
}

// matchExpression turns free text into an FTS5 query: every word becomes a
// quoted term and terms are OR-ed. Words are split on the same letter and
// digit classes as the unicode61 tokenizer, so FTS5 operators and
// punctuation in user input are never interpreted.
func matchExpression(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsMark(r)
	})

	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

// float32SliceToBytes encodes floats as little-endian IEEE-754 values.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// isMissing reports errors that mean a database file is absent.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
