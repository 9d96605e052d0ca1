// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Connector: Fetches raw documents from one source
//   - Normaliser: Turns raw documents into plain text
//   - GenerationStore: Creates, opens and commits index generations
//   - LexicalIndex: Keyword search over chunk text (SQLite FTS5, BM25)
//   - VectorIndex: Exhaustive nearest neighbour search over embeddings
//   - SettingsStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it only text
//     search is available and ingestion stores chunks without vectors.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
