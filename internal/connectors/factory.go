package connectors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/hybridsearch/internal/connectors/atlassian"
	"github.com/custodia-labs/hybridsearch/internal/connectors/filesystem"
	"github.com/custodia-labs/hybridsearch/internal/connectors/github"
	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
)

// Options carries settings shared by every connector.
type Options struct {
	// FetchTimeout bounds each upstream request.
	FetchTimeout time.Duration

	// MIMETypes restricts which local files are read. Empty keeps the
	// filesystem connector's defaults.
	MIMETypes []string

	// Getenv resolves token_env names. Defaults to os.Getenv.
	Getenv func(string) string
}

// Build creates one connector per source. On error every connector built
// so far is closed.
func Build(ctx context.Context, sources []domain.SourceSettings, opts Options) ([]driven.Connector, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	built := make([]driven.Connector, 0, len(sources))
	for _, src := range sources {
		c, err := build(ctx, src, opts)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("source %s: %w", src.DisplayName(), err), Close(built))
		}
		built = append(built, c)
	}
	return built, nil
}

// Close closes every connector and joins their errors.
func Close(connectors []driven.Connector) error {
	var errs []error
	for _, c := range connectors {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, src domain.SourceSettings, opts Options) (driven.Connector, error) {
	token, err := resolveToken(src, opts.Getenv)
	if err != nil {
		return nil, err
	}

	switch src.Type {
	case domain.SourceJira, domain.SourceConfluence:
		client, err := atlassian.NewClient(atlassian.Config{
			BaseURL:  src.BaseURL,
			Username: src.Username,
			Token:    token,
			Timeout:  opts.FetchTimeout,
		})
		if err != nil {
			return nil, err
		}
		if src.Type == domain.SourceJira {
			return atlassian.NewJira(src.Name, client, src.Query, src.Limit), nil
		}
		return atlassian.NewConfluence(src.Name, client, src.Space, src.Limit), nil

	case domain.SourceGitHub:
		cfg, err := github.ParseConfig(src, token, opts.FetchTimeout)
		if err != nil {
			return nil, err
		}
		client, err := github.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return github.New(cfg, client), nil

	case domain.SourceFilesystem:
		if src.Path == "" {
			return nil, fmt.Errorf("%w: filesystem source needs a path", domain.ErrInvalidConfiguration)
		}
		var fsOpts []filesystem.Option
		if len(opts.MIMETypes) > 0 {
			fsOpts = append(fsOpts, filesystem.WithMIMETypes(opts.MIMETypes))
		}
		return filesystem.New(src.Name, src.Path, fsOpts...), nil

	default:
		return nil, fmt.Errorf("%w: source type %q", domain.ErrUnsupportedType, src.Type)
	}
}

// resolveToken reads the secret named by token_env. A named but unset
// variable is a configuration error.
func resolveToken(src domain.SourceSettings, getenv func(string) string) (string, error) {
	if src.TokenEnv == "" {
		return "", nil
	}
	token := getenv(src.TokenEnv)
	if token == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", domain.ErrInvalidConfiguration, src.TokenEnv)
	}
	return token, nil
}
