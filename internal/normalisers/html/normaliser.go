package html

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Elements whose content is never readable text.
const dropSelector = "script, style, noscript, svg, template, iframe, head"

// blockElements start a new line in the extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true, "section": true,
	"article": true, "header": true, "footer": true, "ul": true, "ol": true,
	"td": true, "th": true, "dd": true, "dt": true,
}

// Normaliser handles HTML documents, including Confluence storage format
// and Jira rendered fields.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{domain.MIMETypeHTML, "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts an HTML document to plain text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", raw.Key, err)
	}

	title := raw.Title
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		title = titleFromURI(raw.URI)
	}

	doc.Find(dropSelector).Remove()

	return &domain.Document{
		Key:       raw.Key,
		URI:       raw.URI,
		Title:     title,
		Text:      extractText(doc.Selection),
		FetchedAt: time.Now(),
	}, nil
}

// extractText returns the visible text, one trimmed line per block element.
func extractText(sel *goquery.Selection) string {
	var sb strings.Builder
	for _, node := range sel.Nodes {
		writeText(&sb, node)
	}

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func writeText(sb *strings.Builder, node *xhtml.Node) {
	switch node.Type {
	case xhtml.TextNode:
		sb.WriteString(node.Data)
		return
	case xhtml.ElementNode:
		if blockElements[node.Data] {
			sb.WriteByte('\n')
			defer sb.WriteByte('\n')
		}
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
}

// titleFromURI derives a title from the last path element.
func titleFromURI(uri string) string {
	name := filepath.Base(uri)
	if name == "." || name == "/" {
		return ""
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}
