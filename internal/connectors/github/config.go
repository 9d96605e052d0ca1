package github

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// Config holds the configuration for a GitHub source.
type Config struct {
	// Name is the display name.
	Name string

	// Repos lists "owner/name" repositories.
	Repos []Repo

	// Limit caps issues per repository. Zero uses the default.
	Limit int

	// Token is a personal access token.
	Token string

	// BaseURL points at GitHub Enterprise. Empty uses api.github.com.
	BaseURL string

	// Timeout bounds each request.
	Timeout time.Duration
}

// Repo is a repository reference.
type Repo struct {
	Owner string
	Name  string
}

// String renders "owner/name".
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo parses "owner/name".
func ParseRepo(s string) (Repo, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("%w: github repository %q, want owner/name", domain.ErrInvalidConfiguration, s)
	}
	return Repo{Owner: owner, Name: name}, nil
}

// ParseConfig builds a Config from source settings.
func ParseConfig(src domain.SourceSettings, token string, timeout time.Duration) (*Config, error) {
	if len(src.Repos) == 0 {
		return nil, fmt.Errorf("%w: github source needs at least one repository", domain.ErrInvalidConfiguration)
	}

	cfg := &Config{
		Name:    src.DisplayName(),
		Limit:   src.Limit,
		Token:   token,
		BaseURL: src.BaseURL,
		Timeout: timeout,
	}
	if cfg.Limit <= 0 {
		cfg.Limit = domain.DefaultSourceLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	for _, r := range src.Repos {
		repo, err := ParseRepo(r)
		if err != nil {
			return nil, err
		}
		cfg.Repos = append(cfg.Repos, repo)
	}
	return cfg, nil
}
