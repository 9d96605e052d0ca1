package github

import (
	"context"
	"fmt"
	"sync"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches issues from GitHub repositories.
type Connector struct {
	config *Config
	client *Client
	mu     sync.Mutex
	closed bool
}

// New creates a new GitHub connector.
func New(config *Config, client *Client) *Connector {
	return &Connector{
		config: config,
		client: client,
	}
}

// Source returns the source this connector reads.
func (c *Connector) Source() domain.Source {
	return domain.SourceGitHub
}

// Name returns the configured display name.
func (c *Connector) Name() string {
	if c.config.Name == "" {
		return string(domain.SourceGitHub)
	}
	return c.config.Name
}

// Validate checks the token by making an authenticated API call.
func (c *Connector) Validate(ctx context.Context) error {
	if c.isClosed() {
		return domain.ErrConnectorClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.client.ValidateCredentials(ctx); err != nil {
		if IsUnauthorized(err) {
			return fmt.Errorf("github: invalid or expired token: %w", err)
		}
		return fmt.Errorf("github: validation failed: %w", err)
	}
	return nil
}

// Fetch streams every issue of every configured repository.
func (c *Connector) Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)

	go func() {
		defer close(docs)
		defer close(errs)

		if c.isClosed() {
			sendErr(ctx, errs, domain.NewFetchError(domain.DocumentKey{Source: domain.SourceGitHub}, domain.ErrConnectorClosed))
			return
		}

		for _, repo := range c.config.Repos {
			if ctx.Err() != nil {
				return
			}
			c.fetchRepo(ctx, repo, docs, errs)
		}
	}()

	return docs, errs
}

func (c *Connector) fetchRepo(ctx context.Context, repo Repo, docs chan<- domain.RawDocument, errs chan<- error) {
	logger.Debug("Listing issues of %s", repo)

	issues, err := c.client.ListIssues(ctx, repo, c.config.Limit)
	if err != nil {
		if ctx.Err() == nil {
			sendErr(ctx, errs, domain.NewFetchError(
				domain.DocumentKey{Source: domain.SourceGitHub},
				fmt.Errorf("list issues of %s: %w", repo, err),
			))
		}
		return
	}

	for _, issue := range issues {
		var comments []*gh.IssueComment
		if issue.GetComments() > 0 {
			comments, err = c.client.ListComments(ctx, repo, issue.GetNumber())
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("Comments of %s#%d unavailable: %v", repo, issue.GetNumber(), err)
				comments = nil
			}
		}

		select {
		case docs <- issueDocument(repo, issue, comments):
		case <-ctx.Done():
			return
		}
	}
}

func sendErr(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Connector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
