// Package sqlite stores index generations in SQLite.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Each generation is one database holding:
//
//   - chunks: source, document_id, sequence_index, text and the embedding
//     as little-endian IEEE-754 float32 values
//   - chunks_fts: an FTS5 external-content index over chunk text using the
//     unicode61 tokenizer, ranked with the built-in bm25() function
//
// # Schema
//
// The schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// With a data directory, generations live at <data_dir>/generations/<id>.db and
// <data_dir>/CURRENT names the committed one. Without a data directory every
// generation is an in-memory database and nothing survives a restart.
//
// # Thread Safety
//
// All operations are thread-safe. File databases run in WAL mode so readers
// never block on the writer.
package sqlite
