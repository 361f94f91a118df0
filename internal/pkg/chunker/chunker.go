// Package chunker splits extracted page text into retrievable fragment
// drafts with deterministic, reproducible identifiers.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultChunkSize is the maximum fragment length in runes.
const DefaultChunkSize = 1000

// DefaultMinContent is the minimum trimmed page length worth indexing.
// Shorter pages add index noise without retrieval value.
const DefaultMinContent = 20

// digestRunes is how many leading runes of a fragment's text feed its
// identifier digest.
const digestRunes = 64

// Page is one page of extracted text. Number is the 1-based source page.
type Page struct {
	Number int
	Text   string
}

// Draft is a fragment before embedding: text, provenance, and its
// derived identifier.
type Draft struct {
	ID           string
	Text         string
	PageNumber   int
	OrdinalIndex int
}

// Splitter chunks pages with fixed bounds.
type Splitter struct {
	chunkSize  int
	minContent int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum fragment length in runes.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithMinContent sets the minimum trimmed page length to index.
func WithMinContent(n int) Option {
	return func(s *Splitter) {
		if n >= 0 {
			s.minContent = n
		}
	}
}

// New creates a Splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		minContent: DefaultMinContent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split produces ordered fragment drafts for a document. Pages below the
// minimum-content threshold are skipped; long pages are divided into
// chunkSize-rune pieces. Identical input always yields identical ordinals
// and identifiers, which is what makes repeat ingestion idempotent.
func (s *Splitter) Split(documentID string, pages []Page) []Draft {
	var drafts []Draft
	ordinal := 0
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if len([]rune(text)) < s.minContent {
			continue
		}
		for _, piece := range splitRunes(text, s.chunkSize) {
			drafts = append(drafts, Draft{
				ID:           FragmentID(documentID, ordinal, piece),
				Text:         piece,
				PageNumber:   page.Number,
				OrdinalIndex: ordinal,
			})
			ordinal++
		}
	}
	return drafts
}

// FragmentID derives a fragment identifier from the document id, the
// fragment's ordinal position, and a short digest of its leading text.
// Pure function: no counters, no randomness.
func FragmentID(documentID string, ordinal int, text string) string {
	runes := []rune(text)
	if len(runes) > digestRunes {
		runes = runes[:digestRunes]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	return fmt.Sprintf("%s-%04d-%s", documentID, ordinal, hex.EncodeToString(sum[:])[:8])
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	var pieces []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}
