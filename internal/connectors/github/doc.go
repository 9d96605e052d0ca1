// Package github implements a connector for GitHub issues.
//
// For each configured repository ("owner/name") the connector lists issues
// in every state, newest update first, up to the configured limit. Pull
// requests returned by the issues endpoint are skipped. Each issue becomes
// one markdown document holding its title, body and comments.
//
// # Rate Limiting
//
// Requests go through a token bucket of about 1.2 requests per second. The
// connector also tracks the X-RateLimit-Remaining and X-RateLimit-Reset
// headers and waits for the reset when the remaining quota drops below a
// small reserve.
//
// # Documents
//
// Document ids are "owner/repo#number". URIs are the issue's HTML URL.
// A failed comment listing yields the issue without comments; a failed
// issue listing is reported as a repository-level fetch failure.
package github
