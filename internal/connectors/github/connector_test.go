package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// newTestConnector serves a fake GitHub API and returns a connector for
// acme/api pointed at it.
func newTestConnector(t *testing.T, limit int, mux *http.ServeMux) *Connector {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClientWithHTTPClient(srv.Client(), srv.URL, 1000)
	require.NoError(t, err)

	cfg := &Config{Name: "gh", Repos: []Repo{{Owner: "acme", Name: "api"}}, Limit: limit}
	return New(cfg, client)
}

func issuesMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"number":4,"title":"Old bug","state":"closed","comments":0}]`)
			return
		}
		next := fmt.Sprintf("<http://%s/repos/acme/api/issues?page=2>; rel=\"next\"", r.Host)
		w.Header().Set("Link", next)
		fmt.Fprint(w, `[
			{"number":1,"title":"Login fails","body":"Users see a 500.","state":"open",
			 "html_url":"https://github.com/acme/api/issues/1","comments":2,
			 "user":{"login":"alice"},"labels":[{"name":"bug"},{"name":"auth"}]},
			{"number":3,"title":"Fix login","state":"open","pull_request":{"url":"x"}},
			{"number":2,"title":"Docs","state":"open","comments":1}
		]`)
	})
	mux.HandleFunc("/repos/acme/api/issues/1/comments", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"body":"Seen on staging.","user":{"login":"bob"}},{"body":"Fixed in 1.2","user":{"login":"carol"}}]`)
	})
	mux.HandleFunc("/repos/acme/api/issues/2/comments", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	})
	return mux
}

func drain(t *testing.T, c *Connector) ([]domain.RawDocument, []error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	docsCh, errsCh := c.Fetch(ctx)
	var docs []domain.RawDocument
	var errs []error
	for docsCh != nil || errsCh != nil {
		select {
		case d, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			docs = append(docs, d)
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			errs = append(errs, err)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key.DocumentID < docs[j].Key.DocumentID })
	return docs, errs
}

func TestParseRepo(t *testing.T) {
	repo, err := ParseRepo(" acme/api ")
	require.NoError(t, err)
	assert.Equal(t, Repo{Owner: "acme", Name: "api"}, repo)
	assert.Equal(t, "acme/api", repo.String())

	for _, bad := range []string{"", "acme", "/api", "acme/", "a/b/c"} {
		_, err := ParseRepo(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration, bad)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(domain.SourceSettings{
		Type:  domain.SourceGitHub,
		Repos: []string{"acme/api", "acme/web"},
	}, "tok", 0)
	require.NoError(t, err)
	assert.Equal(t, "github", cfg.Name)
	assert.Equal(t, domain.DefaultSourceLimit, cfg.Limit)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Len(t, cfg.Repos, 2)

	_, err = ParseConfig(domain.SourceSettings{Type: domain.SourceGitHub}, "", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestFetch(t *testing.T) {
	c := newTestConnector(t, 10, issuesMux(t))

	docs, errs := drain(t, c)
	require.Empty(t, errs)
	require.Len(t, docs, 3, "pull requests are skipped, pages are followed")

	first := docs[0]
	assert.Equal(t, domain.DocumentKey{Source: domain.SourceGitHub, DocumentID: "acme/api#1"}, first.Key)
	assert.Equal(t, "https://github.com/acme/api/issues/1", first.URI)
	assert.Equal(t, "Login fails", first.Title)
	assert.Equal(t, domain.MIMETypeMarkdown, first.MIMEType)

	body := string(first.Content)
	assert.True(t, strings.HasPrefix(body, "# Login fails\n"))
	assert.Contains(t, body, "Author: alice")
	assert.Contains(t, body, "Labels: bug, auth")
	assert.Contains(t, body, "Users see a 500.")
	assert.Contains(t, body, "**bob**: Seen on staging.")
	assert.Contains(t, body, "**carol**: Fixed in 1.2")

	second := docs[1]
	assert.Equal(t, "acme/api#2", second.Key.DocumentID)
	assert.NotContains(t, string(second.Content), "## Comments", "comment failure keeps the issue")
	assert.Equal(t, "github://acme/api/issues/2", second.URI)

	assert.Equal(t, "acme/api#4", docs[2].Key.DocumentID)
}

func TestClient_ListIssues_FollowsPages(t *testing.T) {
	var pages []string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/issues", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		if page == "" {
			w.Header().Set("Link", fmt.Sprintf("<http://%s/repos/acme/api/issues?page=2>; rel=\"next\"", r.Host))
			fmt.Fprint(w, `[{"number":1,"title":"One"}]`)
			return
		}
		fmt.Fprint(w, `[{"number":2,"title":"Two"}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClientWithHTTPClient(srv.Client(), srv.URL, 1000)
	require.NoError(t, err)

	issues, err := client.ListIssues(context.Background(), Repo{Owner: "acme", Name: "api"}, 10)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, 2, issues[1].GetNumber())
	assert.Equal(t, []string{"", "2"}, pages)
}

func TestFetch_Limit(t *testing.T) {
	c := newTestConnector(t, 1, issuesMux(t))

	docs, errs := drain(t, c)
	require.Empty(t, errs)
	require.Len(t, docs, 1)
	assert.Equal(t, "acme/api#1", docs[0].Key.DocumentID)
}

func TestFetch_ListFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/issues", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	c := newTestConnector(t, 10, mux)

	docs, errs := drain(t, c)
	assert.Empty(t, docs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrUpstreamFetch)
	assert.True(t, IsNotFound(errs[0]))

	var fe *domain.FetchError
	require.ErrorAs(t, errs[0], &fe)
	assert.Empty(t, fe.Key.DocumentID, "repository failures are not document failures")
}

func TestValidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Bad credentials"}`)
			return
		}
		fmt.Fprint(w, `{"login":"bot"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	authed, err := NewClient(context.Background(), &Config{Token: "tok", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	assert.NoError(t, New(&Config{}, authed).Validate(context.Background()))

	anon, err := NewClient(context.Background(), &Config{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	err = New(&Config{}, anon).Validate(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.Contains(t, err.Error(), "invalid or expired token")
}

func TestClose(t *testing.T) {
	c := newTestConnector(t, 10, issuesMux(t))
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Validate(context.Background()), domain.ErrConnectorClosed)
	docs, errs := drain(t, c)
	assert.Empty(t, docs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrConnectorClosed)
}

func TestRateLimiter_Update(t *testing.T) {
	r := NewRateLimiter(1000)
	reset := time.Now().Add(time.Hour).Unix()

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("X-RateLimit-Remaining", "42")
	resp.Header.Set("X-RateLimit-Limit", "5000")
	resp.Header.Set("X-RateLimit-Reset", fmt.Sprint(reset))
	r.Update(resp)

	remaining, limit, resetAt := r.Snapshot()
	assert.Equal(t, 42, remaining)
	assert.Equal(t, 5000, limit)
	assert.Equal(t, reset, resetAt.Unix())

	// Below the reserve, Wait holds until reset or cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestErrors(t *testing.T) {
	assert.True(t, IsUnauthorized(&APIError{StatusCode: http.StatusUnauthorized}))
	assert.False(t, IsUnauthorized(&APIError{StatusCode: http.StatusForbidden}))
	assert.True(t, IsRateLimited(fmt.Errorf("wrapped: %w", &RateLimitError{})))
	assert.ErrorIs(t, &RateLimitError{}, domain.ErrRateLimited)
}
