package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query string `json:"query"`
	// TopK is a pointer so an explicit 0 is rejected rather than defaulted.
	TopK *int   `json:"top_k,omitempty"`
	Mode string `json:"mode,omitempty"`
}

// QueryResponse is the body returned by POST /query.
type QueryResponse struct {
	Hits []domain.Hit `json:"hits"`
}

// IngestRequest is the optional body of POST /ingest.
type IngestRequest struct {
	Mode    string   `json:"mode,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// IngestResponse is returned when a run starts.
type IngestResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	topK := s.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	hits, err := s.search.Search(r.Context(), req.Query, domain.SearchOptions{
		TopK: topK,
		Mode: domain.SearchMode(req.Mode),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if hits == nil {
		hits = []domain.Hit{}
	}

	writeJSON(w, http.StatusOK, QueryResponse{Hits: hits})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, err)
		return
	}

	opts, err := ingestOptions(req)
	if err != nil {
		writeError(w, err)
		return
	}

	runID, err := s.ingest.Trigger(opts)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Info("Ingest %s started via API", runID)
	writeJSON(w, http.StatusAccepted, IngestResponse{Status: "indexing started", RunID: runID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.search.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ingestOptions(req IngestRequest) (domain.IngestOptions, error) {
	opts := domain.IngestOptions{Mode: domain.IngestModeRebuild}
	if req.Mode != "" {
		opts.Mode = domain.IngestMode(req.Mode)
		if !opts.Mode.IsValid() {
			return opts, fmt.Errorf("%w: ingest mode %q", domain.ErrInvalidArgument, req.Mode)
		}
	}
	for _, name := range req.Sources {
		src := domain.Source(name)
		if !src.IsValid() {
			return opts, fmt.Errorf("%w: unknown source %q", domain.ErrInvalidArgument, name)
		}
		opts.Sources = append(opts.Sources, src)
	}
	return opts, nil
}

// decodeBody decodes a JSON body. Unknown fields are rejected.
// When optional is set an empty body leaves v untouched.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: request body: %w", domain.ErrInvalidArgument, err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIngestInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmbedding):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response: %v", err)
	}
}
