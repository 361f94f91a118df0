package model

import "time"

// Document lifecycle event actions.
const (
	EventDocumentIngested = "ingested"
	EventDocumentDeleted  = "deleted"
)

// DocumentEvent is the queue payload published after a document's
// fragments are written to or removed from the index.
type DocumentEvent struct {
	Action        string    `json:"action"`
	TenantID      string    `json:"tenant_id"`
	UserID        string    `json:"user_id,omitempty"`
	DocumentID    string    `json:"document_id"`
	Title         string    `json:"title"`
	FragmentCount int       `json:"fragment_count"`
	OccurredAt    time.Time `json:"occurred_at"`
}
