package app

import (
	"context"
	"time"

	"docindex/internal/model"
)

// Embedder produces fixed-dimension vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// FragmentStore is the vector index holding fragment rows. A successful
// InsertBatch must be visible to the very next Search.
type FragmentStore interface {
	InsertBatch(ctx context.Context, fragments []model.Fragment) error
	Search(ctx context.Context, vector []float32, topK int, filter model.FragmentFilter) ([]model.ScoredFragment, error)
	List(ctx context.Context, filter model.FragmentFilter) ([]model.Fragment, error)
	HasDocument(ctx context.Context, tenantID, documentID string) (bool, error)
	DeleteByDocumentID(ctx context.Context, tenantID, documentID string) (int, error)
}

// ObjectStore holds original document bytes and signs access to them.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Remove(ctx context.Context, bucket, key string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// EventPublisher emits document lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event model.DocumentEvent) error
}

// AuditLog reads the persisted document lifecycle history.
type AuditLog interface {
	ListByTenant(tenantID string, limit int) ([]model.DocumentAudit, error)
}

// IngestLocker serializes ingestions per document id.
type IngestLocker interface {
	Acquire(ctx context.Context, tenantID, documentID string) (bool, error)
	Release(ctx context.Context, tenantID, documentID string) error
}
