// Package atlassian implements connectors for Jira issues and Confluence
// pages over the REST API.
//
// Both connectors share a Client that authenticates with basic auth
// (username and API token), throttles requests with a token bucket and
// bounds each request with a timeout. Content is emitted as HTML and turned
// into text by the html normaliser.
//
// Jira issues come from a JQL search with rendered fields expanded, so the
// description arrives as HTML. Confluence pages come from the content
// endpoint with body.storage expanded. Both page through results until the
// configured limit is reached.
package atlassian
