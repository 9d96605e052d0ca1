// Package chunker splits document text into overlapping word windows.
package chunker

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

// DefaultMaxWords is the default number of words per chunk.
const DefaultMaxWords = domain.DefaultMaxWords

// DefaultOverlap is the default number of words shared by adjacent chunks.
const DefaultOverlap = domain.DefaultOverlap

// Chunk returns the word windows of text.
//
// Window i starts at word i*(maxWords-overlap) and holds at most maxWords
// words; windows are produced while the start is inside the text. Text with
// fewer than maxWords words yields exactly one window, and empty text yields
// none. The returned sequence can be ranged over any number of times.
func Chunk(text string, maxWords, overlap int) (iter.Seq[string], error) {
	if err := validate(maxWords, overlap); err != nil {
		return nil, err
	}

	step := maxWords - overlap
	return func(yield func(string) bool) {
		words := strings.Fields(text)
		if len(words) == 0 {
			return
		}
		if len(words) < maxWords {
			yield(strings.Join(words, " "))
			return
		}
		for start := 0; start < len(words); start += step {
			end := min(start+maxWords, len(words))
			if !yield(strings.Join(words[start:end], " ")) {
				return
			}
		}
	}, nil
}

func validate(maxWords, overlap int) error {
	if maxWords <= 0 {
		return fmt.Errorf("%w: max_words must be positive, got %d", domain.ErrInvalidConfiguration, maxWords)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrInvalidConfiguration, overlap)
	}
	if overlap >= maxWords {
		return fmt.Errorf("%w: overlap %d must be less than max_words %d",
			domain.ErrInvalidConfiguration, overlap, maxWords)
	}
	return nil
}

// ChunkID returns the stable identifier of a document's n-th chunk.
func ChunkID(key domain.DocumentKey, sequence int) string {
	name := "hybridsearch:chunk:" + key.String() + "#" + strconv.Itoa(sequence)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Processor turns documents into chunks with a fixed window configuration.
type Processor struct {
	maxWords int
	overlap  int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxWords sets the window size in words.
func WithMaxWords(n int) Option {
	return func(p *Processor) {
		p.maxWords = n
	}
}

// WithOverlap sets how many words adjacent windows share.
func WithOverlap(n int) Option {
	return func(p *Processor) {
		p.overlap = n
	}
}

// New creates a processor. It fails with domain.ErrInvalidConfiguration
// when the overlap is not smaller than the window.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		maxWords: DefaultMaxWords,
		overlap:  DefaultOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := validate(p.maxWords, p.overlap); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// MaxWords returns the window size.
func (p *Processor) MaxWords() int {
	return p.maxWords
}

// Overlap returns the window overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the document text into chunks in sequence order.
func (p *Processor) Process(doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	windows, err := Chunk(doc.Text, p.maxWords, p.overlap)
	if err != nil {
		return nil, err
	}

	var chunks []domain.Chunk
	for text := range windows {
		seq := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:            ChunkID(doc.Key, seq),
			Source:        doc.Key.Source,
			DocumentID:    doc.Key.DocumentID,
			Text:          text,
			SequenceIndex: seq,
		})
	}
	return chunks, nil
}
