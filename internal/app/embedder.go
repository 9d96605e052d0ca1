package app

import (
	"fmt"
	"os"

	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/embedding/hash"
	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
)

// defaultAPIKeyEnv is read when embedding.api_key_env is not set.
const defaultAPIKeyEnv = "OPENAI_API_KEY"

// NewEmbedder creates the configured embedding provider.
// It returns nil, nil when embeddings are disabled.
func NewEmbedder(cfg domain.EmbeddingSettings, getenv func(string) string) (driven.EmbeddingService, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	switch cfg.Provider {
	case domain.EmbeddingProviderNone:
		return nil, nil

	case domain.EmbeddingProviderOllama:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout.Std(),
			Dimensions: cfg.Dimensions,
		}), nil

	case domain.EmbeddingProviderOpenAI:
		keyEnv := cfg.APIKeyEnv
		if keyEnv == "" {
			keyEnv = defaultAPIKeyEnv
		}
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     getenv(keyEnv),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout.Std(),
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}
		return svc, nil

	case domain.EmbeddingProviderHash:
		svc, err := hash.NewEmbeddingService(cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("create hash embedder: %w", err)
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrInvalidConfiguration, cfg.Provider)
	}
}
