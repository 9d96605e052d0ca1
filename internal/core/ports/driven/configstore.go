package driven

import "github.com/custodia-labs/hybridsearch/internal/core/domain"

// SettingsStore provides access to application configuration.
// Implementations handle persistence (e.g., TOML files) and validation.
type SettingsStore interface {
	// Load reads and validates the settings.
	// A missing file yields domain.DefaultSettings().
	Load() (*domain.Settings, error)

	// Save validates and persists the settings.
	Save(s *domain.Settings) error

	// Path returns the configuration file path.
	Path() string
}
