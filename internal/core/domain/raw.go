package domain

// Well-known MIME types emitted by connectors.
const (
	MIMETypeHTML     = "text/html"
	MIMETypePlain    = "text/plain"
	MIMETypeMarkdown = "text/markdown"
)

// RawDocument represents opaque bytes fetched by a connector.
// It is the connector's output before normalisation.
type RawDocument struct {
	// Key identifies the document within its source.
	Key DocumentKey

	// URI is the original location (file path, URL, etc).
	URI string

	// Title is the human-readable title, if the source has one.
	Title string

	// MIMEType is the content type (e.g., "text/html").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// ChangeType represents the type of document change.
type ChangeType int

const (
	// ChangeCreated indicates a new document.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified document.
	ChangeUpdated

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// String returns the change name used in log lines.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// RawDocumentChange represents a change event from a watching connector.
type RawDocumentChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Key is the affected document.
	Key DocumentKey

	// URI is the location that changed.
	URI string
}
