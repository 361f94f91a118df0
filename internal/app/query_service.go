package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docindex/internal/model"
)

// DefaultTopK is a reasonable starting point for single-answer grounding.
const DefaultTopK = 3

// previewRunes bounds the text preview returned with each source.
const previewRunes = 200

// QueryService answers one question against the indexed corpus: embed
// the question, similarity-search the index, assemble the answer
// context. It never calls the answer-generation service itself; the
// assembled context string is the entire contract with it.
type QueryService struct {
	index    FragmentStore
	embedder Embedder
}

type QueryInput struct {
	Scope      model.OwnerScope
	Question   string
	TopK       int
	DocumentID string
}

// Source is one retrieval hit, usable both for context assembly and for
// presenting citations.
type Source struct {
	Rank          int       `json:"rank"`
	Score         float64   `json:"score"`
	DocumentID    string    `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	PageNumber    int       `json:"page_number"`
	TextPreview   string    `json:"text_preview"`
	CreatedAt     time.Time `json:"created_at"`
}

type QueryResult struct {
	Context        string        `json:"answer_context"`
	Sources        []Source      `json:"sources"`
	ProcessingTime time.Duration `json:"-"`
}

func NewQueryService(index FragmentStore, embedder Embedder) *QueryService {
	return &QueryService{index: index, embedder: embedder}
}

// Query embeds the question and returns the top-k fragments with the
// assembled context. Zero matches is a valid result with an empty
// context, not an error.
func (s *QueryService) Query(ctx context.Context, input QueryInput) (*QueryResult, error) {
	started := time.Now()

	if input.Scope.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant", model.ErrValidation)
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", model.ErrValidation)
	}
	topK := input.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(ctx, vector, topK, model.FragmentFilter{
		TenantID:   input.Scope.TenantID,
		DocumentID: input.DocumentID,
	})
	if err != nil {
		return nil, err
	}

	sources := make([]Source, len(hits))
	var builder strings.Builder
	for i, hit := range hits {
		sources[i] = Source{
			Rank:          i + 1,
			Score:         hit.Score,
			DocumentID:    hit.DocumentID,
			DocumentTitle: hit.DocumentTitle,
			PageNumber:    hit.PageNumber,
			TextPreview:   preview(hit.Text),
			CreatedAt:     hit.CreatedAt,
		}
		if i > 0 {
			builder.WriteString("\n\n")
		}
		fmt.Fprintf(&builder, "source %d, page %d\n%s", i+1, hit.PageNumber, hit.Text)
	}

	return &QueryResult{
		Context:        builder.String(),
		Sources:        sources,
		ProcessingTime: time.Since(started),
	}, nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes])
}
