package atlassian

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"sync"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// Ensure JiraConnector implements the interface.
var _ driven.Connector = (*JiraConnector)(nil)

// JiraConnector fetches the issues matched by a JQL query.
type JiraConnector struct {
	name   string
	client *Client
	jql    string
	limit  int

	mu     sync.Mutex
	closed bool
}

// NewJira creates a Jira connector. An empty jql uses domain.DefaultJiraQuery
// and a non-positive limit uses domain.DefaultSourceLimit.
func NewJira(name string, client *Client, jql string, limit int) *JiraConnector {
	if jql == "" {
		jql = domain.DefaultJiraQuery
	}
	if limit <= 0 {
		limit = domain.DefaultSourceLimit
	}
	return &JiraConnector{name: name, client: client, jql: jql, limit: limit}
}

type jiraSearchResponse struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
	Issues     []jiraIssue `json:"issues"`
}

type jiraIssue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
	} `json:"fields"`
	RenderedFields struct {
		Description string `json:"description"`
	} `json:"renderedFields"`
}

// Source returns the source this connector reads.
func (c *JiraConnector) Source() domain.Source {
	return domain.SourceJira
}

// Name returns the configured display name.
func (c *JiraConnector) Name() string {
	if c.name == "" {
		return string(domain.SourceJira)
	}
	return c.name
}

// Validate checks the credentials against the current-user endpoint.
func (c *JiraConnector) Validate(ctx context.Context) error {
	if c.isClosed() {
		return domain.ErrConnectorClosed
	}
	var me struct {
		Name string `json:"name"`
	}
	if err := c.client.getJSON(ctx, "/rest/api/2/myself", nil, &me); err != nil {
		return fmt.Errorf("jira: validate: %w", err)
	}
	return nil
}

// Fetch streams issues page by page until the limit or the end of results.
func (c *JiraConnector) Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)

	go func() {
		defer close(docs)
		defer close(errs)

		if c.isClosed() {
			sendErr(ctx, errs, domain.NewFetchError(domain.DocumentKey{Source: domain.SourceJira}, domain.ErrConnectorClosed))
			return
		}

		fetched := 0
		for fetched < c.limit {
			page, err := c.search(ctx, fetched, min(maxPageSize, c.limit-fetched))
			if err != nil {
				if ctx.Err() == nil {
					sendErr(ctx, errs, domain.NewFetchError(domain.DocumentKey{Source: domain.SourceJira}, err))
				}
				return
			}

			for _, issue := range page.Issues {
				if fetched == c.limit {
					break
				}
				fetched++
				if issue.Key == "" {
					sendErr(ctx, errs, domain.NewFetchError(
						domain.DocumentKey{Source: domain.SourceJira, DocumentID: issue.ID},
						errors.New("issue without key"),
					))
					continue
				}
				select {
				case docs <- c.document(issue):
				case <-ctx.Done():
					return
				}
			}

			if len(page.Issues) == 0 || page.StartAt+len(page.Issues) >= page.Total {
				break
			}
		}
		logger.Debug("Jira %s: %d issues", c.Name(), fetched)
	}()

	return docs, errs
}

func (c *JiraConnector) search(ctx context.Context, startAt, maxResults int) (*jiraSearchResponse, error) {
	query := url.Values{}
	query.Set("jql", c.jql)
	query.Set("startAt", strconv.Itoa(startAt))
	query.Set("maxResults", strconv.Itoa(maxResults))
	query.Set("fields", "summary,description")
	query.Set("expand", "renderedFields")

	var resp jiraSearchResponse
	if err := c.client.getJSON(ctx, "/rest/api/2/search", query, &resp); err != nil {
		return nil, fmt.Errorf("jira search: %w", err)
	}
	return &resp, nil
}

// document renders the summary as a heading above the description.
// The rendered description is HTML; the raw one is escaped as text.
func (c *JiraConnector) document(issue jiraIssue) domain.RawDocument {
	body := issue.RenderedFields.Description
	if body == "" && issue.Fields.Description != "" {
		body = "<pre>" + html.EscapeString(issue.Fields.Description) + "</pre>"
	}
	content := "<h1>" + html.EscapeString(issue.Fields.Summary) + "</h1>\n" + body

	return domain.RawDocument{
		Key:      domain.DocumentKey{Source: domain.SourceJira, DocumentID: issue.Key},
		URI:      c.client.BaseURL() + "/browse/" + issue.Key,
		Title:    issue.Fields.Summary,
		MIMEType: domain.MIMETypeHTML,
		Content:  []byte(content),
	}
}

// Close releases resources.
func (c *JiraConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *JiraConnector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func sendErr(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}
