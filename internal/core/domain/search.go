package domain

// DefaultTopK is the number of hits returned when a caller does not ask.
const DefaultTopK = 5

// LexicalOversample is the factor applied to top_k for the keyword
// candidate list, so fusion has enough candidates to re-rank.
const LexicalOversample = 2

// SearchMode selects which indexes a query consults.
type SearchMode string

// Available search modes.
const (
	// SearchModeHybrid fuses lexical and vector results.
	SearchModeHybrid SearchMode = "hybrid"

	// SearchModeText uses only the lexical index.
	SearchModeText SearchMode = "text"

	// SearchModeSemantic uses only the vector index.
	SearchModeSemantic SearchMode = "semantic"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	switch m {
	case SearchModeHybrid, SearchModeText, SearchModeSemantic:
		return true
	default:
		return false
	}
}

// RequiresEmbedding returns true if this mode needs an embedding provider.
func (m SearchMode) RequiresEmbedding() bool {
	return m == SearchModeHybrid || m == SearchModeSemantic
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// SearchOptions configures a query.
type SearchOptions struct {
	// TopK bounds the number of hits. Must be positive.
	TopK int

	// Mode defaults to SearchModeHybrid when empty.
	Mode SearchMode
}

// Hit is a query-time result. It is never persisted.
type Hit struct {
	// SourceID is "source:document_id".
	SourceID string `json:"source_id"`

	// Snippet is a text excerpt of the matching chunk.
	Snippet string `json:"snippet"`

	// Score is comparable across hit kinds; higher is more relevant.
	Score float64 `json:"score"`
}
