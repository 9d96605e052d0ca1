package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// Defaults shared by the config loader and the CLI.
const (
	DefaultServerAddr      = ":8000"
	DefaultMaxWords        = 300
	DefaultOverlap         = 50
	DefaultDimensions      = 768
	DefaultIngestWorkers   = 4
	DefaultEmbedAttempts   = 3
	DefaultFetchTimeout    = 30 * time.Second
	DefaultEmbedTimeout    = 30 * time.Second
	DefaultSourceLimit     = 100
	DefaultJiraQuery       = "project = MYPROJECT"
	DefaultConfluenceSpace = "MYSPACE"
)

// EmbeddingProvider identifies the service that turns text into vectors.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderOllama is a local Ollama instance.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"

	// EmbeddingProviderOpenAI is the OpenAI API or a compatible server.
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"

	// EmbeddingProviderHash is a deterministic offline embedder.
	EmbeddingProviderHash EmbeddingProvider = "hash"

	// EmbeddingProviderNone disables vector search.
	EmbeddingProviderNone EmbeddingProvider = "none"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderOllama, EmbeddingProviderOpenAI, EmbeddingProviderHash, EmbeddingProviderNone:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == EmbeddingProviderOpenAI
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProvider) Description() string {
	switch p {
	case EmbeddingProviderOllama:
		return "Ollama (local)"
	case EmbeddingProviderOpenAI:
		return "OpenAI (cloud)"
	case EmbeddingProviderHash:
		return "Hash (offline, deterministic)"
	case EmbeddingProviderNone:
		return "Disabled"
	default:
		return unknownDescription
	}
}

// Duration is a time.Duration that reads and writes as "30s" in config files.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfiguration, string(text))
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library value.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Settings is the full application configuration.
type Settings struct {
	Server    ServerSettings    `toml:"server"`
	Storage   StorageSettings   `toml:"storage"`
	Chunking  ChunkingSettings  `toml:"chunking"`
	Search    SearchSettings    `toml:"search"`
	Embedding EmbeddingSettings `toml:"embedding"`
	Ingest    IngestSettings    `toml:"ingest"`
	Sources   []SourceSettings  `toml:"sources" validate:"dive"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Addr string `toml:"addr" validate:"required"`
}

// StorageSettings configures where generations live.
type StorageSettings struct {
	// DataDir holds generation databases. Empty keeps everything in memory.
	DataDir string `toml:"data_dir"`
}

// ChunkingSettings configures the word-window chunker.
type ChunkingSettings struct {
	MaxWords int `toml:"max_words" validate:"gt=0"`
	Overlap  int `toml:"overlap" validate:"gte=0,ltfield=MaxWords"`
}

// SearchSettings holds query defaults.
type SearchSettings struct {
	DefaultTopK int `toml:"default_top_k" validate:"gt=0"`
}

// EmbeddingSettings configures the embedding provider.
type EmbeddingSettings struct {
	Provider   EmbeddingProvider `toml:"provider" validate:"required"`
	Model      string            `toml:"model"`
	BaseURL    string            `toml:"base_url" validate:"omitempty,url"`
	Dimensions int               `toml:"dimensions" validate:"gt=0"`
	Timeout    Duration          `toml:"timeout"`
	APIKeyEnv  string            `toml:"api_key_env"`
}

// IngestSettings configures ingestion runs.
type IngestSettings struct {
	Workers       int      `toml:"workers" validate:"gt=0,lte=64"`
	FetchTimeout  Duration `toml:"fetch_timeout"`
	EmbedTimeout  Duration `toml:"embed_timeout"`
	EmbedAttempts int      `toml:"embed_attempts" validate:"gt=0"`

	// Schedule is a cron spec for periodic rebuilds, e.g. "@every 1h".
	Schedule string `toml:"schedule"`

	// Watch triggers a refresh when filesystem sources change.
	Watch bool `toml:"watch"`
}

// SourceSettings configures one connector.
type SourceSettings struct {
	Type     Source   `toml:"type" validate:"required,oneof=jira confluence github filesystem"`
	Name     string   `toml:"name"`
	BaseURL  string   `toml:"base_url" validate:"required_if=Type jira,required_if=Type confluence,omitempty,url"`
	Username string   `toml:"username"`
	TokenEnv string   `toml:"token_env"`
	Query    string   `toml:"query"`
	Space    string   `toml:"space"`
	Repos    []string `toml:"repos" validate:"required_if=Type github"`
	Path     string   `toml:"path" validate:"required_if=Type filesystem"`
	Limit    int      `toml:"limit" validate:"gte=0"`
}

// DisplayName returns Name, or the source type when unnamed.
func (s SourceSettings) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type.String()
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Addr: DefaultServerAddr},
		Chunking: ChunkingSettings{
			MaxWords: DefaultMaxWords,
			Overlap:  DefaultOverlap,
		},
		Search: SearchSettings{DefaultTopK: DefaultTopK},
		Embedding: EmbeddingSettings{
			Provider:   EmbeddingProviderOllama,
			Dimensions: DefaultDimensions,
			Timeout:    Duration(DefaultEmbedTimeout),
		},
		Ingest: IngestSettings{
			Workers:       DefaultIngestWorkers,
			FetchTimeout:  Duration(DefaultFetchTimeout),
			EmbedTimeout:  Duration(DefaultEmbedTimeout),
			EmbedAttempts: DefaultEmbedAttempts,
		},
	}
}
