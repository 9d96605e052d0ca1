package github

import (
	"fmt"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// issueDocument renders an issue and its comments as markdown.
func issueDocument(repo Repo, issue *gh.Issue, comments []*gh.IssueComment) domain.RawDocument {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", issue.GetTitle())

	meta := []string{"State: " + issue.GetState()}
	if login := issue.GetUser().GetLogin(); login != "" {
		meta = append(meta, "Author: "+login)
	}
	if len(issue.Labels) > 0 {
		labels := make([]string, len(issue.Labels))
		for i, l := range issue.Labels {
			labels[i] = l.GetName()
		}
		meta = append(meta, "Labels: "+strings.Join(labels, ", "))
	}
	if issue.Milestone != nil {
		meta = append(meta, "Milestone: "+issue.Milestone.GetTitle())
	}
	b.WriteString(strings.Join(meta, " | "))
	b.WriteString("\n\n")

	if body := strings.TrimSpace(issue.GetBody()); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	if len(comments) > 0 {
		b.WriteString("## Comments\n\n")
		for _, c := range comments {
			fmt.Fprintf(&b, "**%s**: %s\n\n", c.GetUser().GetLogin(), strings.TrimSpace(c.GetBody()))
		}
	}

	uri := issue.GetHTMLURL()
	if uri == "" {
		uri = buildIssueURI(repo, issue.GetNumber())
	}

	return domain.RawDocument{
		Key:      issueKey(repo, issue.GetNumber()),
		URI:      uri,
		Title:    issue.GetTitle(),
		MIMEType: domain.MIMETypeMarkdown,
		Content:  []byte(b.String()),
	}
}

func issueKey(repo Repo, number int) domain.DocumentKey {
	return domain.DocumentKey{
		Source:     domain.SourceGitHub,
		DocumentID: fmt.Sprintf("%s#%d", repo, number),
	}
}

// buildIssueURI creates a URI for an issue without an HTML URL.
func buildIssueURI(repo Repo, number int) string {
	return fmt.Sprintf("github://%s/issues/%d", repo, number)
}
