package atlassian

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

const (
	// DefaultTimeout bounds each request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond is the token bucket rate shared by a client.
	DefaultRequestsPerSecond = 5

	// maxPageSize is the largest page requested from either API.
	maxPageSize = 50

	maxErrorBody = 512
)

// Config holds connection settings shared by the Jira and Confluence
// connectors.
type Config struct {
	// BaseURL is the site URL, e.g. https://example.atlassian.net.
	// Confluence Cloud sites include the /wiki prefix.
	BaseURL string

	// Username and Token are the basic auth credentials.
	Username string
	Token    string

	// Timeout bounds each request (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond throttles requests (default: 5).
	RequestsPerSecond float64
}

// Client performs authenticated, rate-limited JSON requests.
type Client struct {
	baseURL  string
	username string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: atlassian base url %q", domain.ErrInvalidConfiguration, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	return &Client{
		baseURL:  base,
		username: cfg.Username,
		token:    cfg.Token,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// BaseURL returns the site URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getJSON sends a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.token != "" {
		req.SetBasicAuth(c.username, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("atlassian: status %d", e.StatusCode)
	}
	return fmt.Sprintf("atlassian: status %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps statuses onto domain errors.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthRequired
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return nil
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
