package atlassian

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"sync"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// Ensure ConfluenceConnector implements the interface.
var _ driven.Connector = (*ConfluenceConnector)(nil)

// ConfluenceConnector fetches the pages of one space.
type ConfluenceConnector struct {
	name   string
	client *Client
	space  string
	limit  int

	mu     sync.Mutex
	closed bool
}

// NewConfluence creates a Confluence connector. An empty space uses
// domain.DefaultConfluenceSpace and a non-positive limit uses
// domain.DefaultSourceLimit.
func NewConfluence(name string, client *Client, space string, limit int) *ConfluenceConnector {
	if space == "" {
		space = domain.DefaultConfluenceSpace
	}
	if limit <= 0 {
		limit = domain.DefaultSourceLimit
	}
	return &ConfluenceConnector{name: name, client: client, space: space, limit: limit}
}

type confluenceContentResponse struct {
	Results []confluencePage `json:"results"`
	Start   int              `json:"start"`
	Limit   int              `json:"limit"`
	Size    int              `json:"size"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

type confluencePage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// Source returns the source this connector reads.
func (c *ConfluenceConnector) Source() domain.Source {
	return domain.SourceConfluence
}

// Name returns the configured display name.
func (c *ConfluenceConnector) Name() string {
	if c.name == "" {
		return string(domain.SourceConfluence)
	}
	return c.name
}

// Validate checks the space exists and is readable with the credentials.
func (c *ConfluenceConnector) Validate(ctx context.Context) error {
	if c.isClosed() {
		return domain.ErrConnectorClosed
	}
	var space struct {
		Key string `json:"key"`
	}
	if err := c.client.getJSON(ctx, "/rest/api/space/"+url.PathEscape(c.space), nil, &space); err != nil {
		return fmt.Errorf("confluence: validate space %s: %w", c.space, err)
	}
	return nil
}

// Fetch streams the space's pages with their storage-format bodies.
func (c *ConfluenceConnector) Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)

	go func() {
		defer close(docs)
		defer close(errs)

		if c.isClosed() {
			sendErr(ctx, errs, domain.NewFetchError(domain.DocumentKey{Source: domain.SourceConfluence}, domain.ErrConnectorClosed))
			return
		}

		fetched := 0
		for fetched < c.limit {
			page, err := c.list(ctx, fetched, min(maxPageSize, c.limit-fetched))
			if err != nil {
				if ctx.Err() == nil {
					sendErr(ctx, errs, domain.NewFetchError(domain.DocumentKey{Source: domain.SourceConfluence}, err))
				}
				return
			}

			for _, p := range page.Results {
				if fetched == c.limit {
					break
				}
				fetched++
				select {
				case docs <- c.document(p):
				case <-ctx.Done():
					return
				}
			}

			if len(page.Results) == 0 || page.Links.Next == "" {
				break
			}
		}
		logger.Debug("Confluence %s: %d pages", c.Name(), fetched)
	}()

	return docs, errs
}

func (c *ConfluenceConnector) list(ctx context.Context, start, limit int) (*confluenceContentResponse, error) {
	query := url.Values{}
	query.Set("spaceKey", c.space)
	query.Set("type", "page")
	query.Set("expand", "body.storage")
	query.Set("start", strconv.Itoa(start))
	query.Set("limit", strconv.Itoa(limit))

	var resp confluenceContentResponse
	if err := c.client.getJSON(ctx, "/rest/api/content", query, &resp); err != nil {
		return nil, fmt.Errorf("confluence list pages: %w", err)
	}
	return &resp, nil
}

func (c *ConfluenceConnector) document(p confluencePage) domain.RawDocument {
	uri := c.client.BaseURL() + "/pages/viewpage.action?pageId=" + url.QueryEscape(p.ID)
	if p.Links.WebUI != "" {
		uri = c.client.BaseURL() + p.Links.WebUI
	}
	content := "<h1>" + html.EscapeString(p.Title) + "</h1>\n" + p.Body.Storage.Value

	return domain.RawDocument{
		Key:      domain.DocumentKey{Source: domain.SourceConfluence, DocumentID: p.ID},
		URI:      uri,
		Title:    p.Title,
		MIMEType: domain.MIMETypeHTML,
		Content:  []byte(content),
	}
}

// Close releases resources.
func (c *ConfluenceConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *ConfluenceConnector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
