package domain

import "time"

// IngestMode selects how a run treats the live generation.
type IngestMode string

const (
	// IngestModeRebuild starts from an empty generation.
	// Nothing from earlier runs survives.
	IngestModeRebuild IngestMode = "rebuild"

	// IngestModeRefresh starts from a copy of the live generation,
	// removes the documents listed as deleted and replaces the documents
	// fetched in this run.
	IngestModeRefresh IngestMode = "refresh"
)

// IsValid returns true if the mode is recognised.
func (m IngestMode) IsValid() bool {
	return m == IngestModeRebuild || m == IngestModeRefresh
}

// IngestOptions configures one ingestion run.
type IngestOptions struct {
	// Mode defaults to IngestModeRebuild.
	Mode IngestMode

	// Sources restricts the run to these sources. Empty means all.
	Sources []Source

	// Deleted lists documents known to be gone upstream. A refresh removes
	// them before fetching; a rebuild ignores them.
	Deleted []DocumentKey
}

// Includes reports whether a source takes part in the run.
func (o IngestOptions) Includes(s Source) bool {
	if len(o.Sources) == 0 {
		return true
	}
	for _, src := range o.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// IngestReport summarises a finished ingestion run.
type IngestReport struct {
	RunID        string     `json:"run_id"`
	GenerationID string     `json:"generation_id"`
	Mode         IngestMode `json:"mode"`

	// DocumentsFetched counts documents delivered by connectors.
	DocumentsFetched int `json:"documents_fetched"`

	// DocumentsIndexed counts documents whose chunks were written.
	DocumentsIndexed int `json:"documents_indexed"`

	// DocumentsSkipped counts fetch, normalise and embedding failures.
	DocumentsSkipped int `json:"documents_skipped"`

	// DocumentsRemoved counts deleted documents dropped by a refresh.
	DocumentsRemoved int `json:"documents_removed"`

	// ChunksIndexed counts chunks written in this run.
	ChunksIndexed int `json:"chunks_indexed"`

	// TotalChunks is the chunk count of the committed generation.
	TotalChunks int `json:"total_chunks"`

	FetchFailures int `json:"fetch_failures"`
	EmbedFailures int `json:"embed_failures"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Error is set when the run was abandoned and the previous generation kept.
	Error string `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *IngestReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IndexStatus describes the live generation.
type IndexStatus struct {
	GenerationID string        `json:"generation_id,omitempty"`
	Chunks       int           `json:"chunks"`
	Vectors      int           `json:"vectors"`
	Dimensions   int           `json:"dimensions"`
	CommittedAt  time.Time     `json:"committed_at,omitzero"`
	Ingesting    bool          `json:"ingesting"`
	LastIngest   *IngestReport `json:"last_ingest,omitempty"`
}
