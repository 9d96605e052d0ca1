package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
)

// Ensure SettingsStore implements the interface.
var _ driven.SettingsStore = (*SettingsStore)(nil)

// DefaultFileName is the settings file inside the config directory.
const DefaultFileName = "config.toml"

// DefaultDirName is the config directory under the user's home.
const DefaultDirName = ".hybridsearch"

// SettingsStore reads and writes domain.Settings as TOML.
type SettingsStore struct {
	mu       sync.Mutex
	filePath string
	validate *validator.Validate
}

// NewSettingsStore creates a store for the given file.
// If path is empty, defaults to ~/.hybridsearch/config.toml.
func NewSettingsStore(path string) (*SettingsStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName, DefaultFileName)
	}

	return &SettingsStore{
		filePath: path,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Load reads the settings file over domain.DefaultSettings().
// A missing file is not an error.
func (s *SettingsStore) Load() (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := domain.DefaultSettings()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &settings, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s: %s", domain.ErrInvalidConfiguration, s.filePath, strict.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("%w: %s:%d:%d: %s", domain.ErrInvalidConfiguration, s.filePath, row, col, decodeErr.Error())
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfiguration, s.filePath, err)
	}

	if err := s.check(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save validates the settings and writes them with restricted permissions.
func (s *SettingsStore) Save(settings *domain.Settings) error {
	if settings == nil {
		return fmt.Errorf("%w: nil settings", domain.ErrInvalidInput)
	}
	if err := s.check(settings); err != nil {
		return err
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	// Write with restricted permissions
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Path returns the configuration file path.
func (s *SettingsStore) Path() string {
	return s.filePath
}

// check runs struct validation plus the rules tags cannot express.
func (s *SettingsStore) check(settings *domain.Settings) error {
	if err := s.validate.Struct(settings); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}

	if !settings.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q",
			domain.ErrInvalidConfiguration, settings.Embedding.Provider)
	}

	seen := make(map[string]bool, len(settings.Sources))
	for _, src := range settings.Sources {
		name := src.DisplayName()
		if seen[name] {
			return fmt.Errorf("%w: duplicate source name %q", domain.ErrInvalidConfiguration, name)
		}
		seen[name] = true
	}
	return nil
}

// describe renders one validation failure using the TOML-ish field path.
func describe(fe validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Settings."))
	if fe.Param() != "" {
		return fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s fails %s", field, fe.Tag())
}
