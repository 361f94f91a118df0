package model

import "time"

// Fragment is one retrievable unit of a document's text. Fragments are
// created in a single batch per ingested document and never mutated; the
// vector index is their system of record.
type Fragment struct {
	ID            string    `json:"fragment_id"`
	DocumentID    string    `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	TenantID      string    `json:"tenant_id"`
	Text          string    `json:"text"`
	Embedding     []float32 `json:"-"`
	PageNumber    int       `json:"page_number"`
	OrdinalIndex  int       `json:"ordinal_index"`
	ContentHash   string    `json:"content_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

// ScoredFragment is a similarity-search hit.
type ScoredFragment struct {
	Fragment
	Score float64 `json:"score"`
}

// FragmentFilter restricts index reads. Zero-value fields are not applied;
// TenantID must always be set by callers to preserve tenant isolation.
type FragmentFilter struct {
	TenantID    string
	DocumentID  string
	OrdinalZero bool
}

// DocumentSummary is the listing row derived from a document's
// ordinal-zero fragment. There is no separate document table.
type DocumentSummary struct {
	DocumentID  string    `json:"document_id"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}
