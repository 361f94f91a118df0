package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docindex/internal/model"
	"docindex/internal/platform/qdrant"
)

// Payload field names in the vector index.
const (
	fieldFragmentID    = "fragment_id"
	fieldDocumentID    = "document_id"
	fieldDocumentTitle = "document_title"
	fieldTenantID      = "tenant_id"
	fieldText          = "text"
	fieldPageNumber    = "page_number"
	fieldOrdinalIndex  = "ordinal_index"
	fieldContentHash   = "content_hash"
	fieldCreatedAt     = "created_at"
)

// scrollPageSize bounds one scroll request; Scroll pages past it.
const scrollPageSize = 1000

// pointNamespace is the UUIDv5 namespace for mapping fragment ids to
// Qdrant point ids. Qdrant only accepts UUIDs or unsigned ints, so the
// deterministic fragment id is hashed into a deterministic UUID: a
// retried batch write overwrites instead of duplicating.
var pointNamespace = uuid.MustParse("6f1f36a4-4c5e-4b6f-9a65-3a1d26a8dcd2")

// FragmentRepository is the system of record for fragments, backed by
// the vector index.
type FragmentRepository struct {
	index *qdrant.Client
}

func NewFragmentRepository(index *qdrant.Client) *FragmentRepository {
	return &FragmentRepository{index: index}
}

// InsertBatch writes a document's complete fragment set in one call.
func (r *FragmentRepository) InsertBatch(ctx context.Context, fragments []model.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	points := make([]qdrant.Point, len(fragments))
	for i, f := range fragments {
		points[i] = qdrant.Point{
			ID:     PointID(f.ID),
			Vector: f.Embedding,
			Payload: map[string]any{
				fieldFragmentID:    f.ID,
				fieldDocumentID:    f.DocumentID,
				fieldDocumentTitle: f.DocumentTitle,
				fieldTenantID:      f.TenantID,
				fieldText:          f.Text,
				fieldPageNumber:    f.PageNumber,
				fieldOrdinalIndex:  f.OrdinalIndex,
				fieldContentHash:   f.ContentHash,
				fieldCreatedAt:     f.CreatedAt.UTC().Format(time.RFC3339),
			},
		}
	}
	return r.index.Upsert(ctx, points)
}

// Search returns the top-k fragments by cosine similarity under the
// given filter.
func (r *FragmentRepository) Search(ctx context.Context, vector []float32, topK int, filter model.FragmentFilter) ([]model.ScoredFragment, error) {
	hits, err := r.index.Search(ctx, vector, topK, indexFilter(filter))
	if err != nil {
		return nil, err
	}
	scored := make([]model.ScoredFragment, 0, len(hits))
	for _, h := range hits {
		scored = append(scored, model.ScoredFragment{
			Fragment: fragmentFromPayload(h.Payload),
			Score:    h.Score,
		})
	}
	return scored, nil
}

// List returns fragments matching the filter, without vectors.
func (r *FragmentRepository) List(ctx context.Context, filter model.FragmentFilter) ([]model.Fragment, error) {
	points, err := r.index.Scroll(ctx, indexFilter(filter), scrollPageSize)
	if err != nil {
		return nil, err
	}
	fragments := make([]model.Fragment, 0, len(points))
	for _, p := range points {
		fragments = append(fragments, fragmentFromPayload(p.Payload))
	}
	return fragments, nil
}

// HasDocument reports whether any fragment of the document exists.
func (r *FragmentRepository) HasDocument(ctx context.Context, tenantID, documentID string) (bool, error) {
	points, err := r.index.Scroll(ctx, indexFilter(model.FragmentFilter{
		TenantID:    tenantID,
		DocumentID:  documentID,
		OrdinalZero: true,
	}), 1)
	if err != nil {
		return false, err
	}
	return len(points) > 0, nil
}

// DeleteByDocumentID removes every fragment of the document in one
// batched delete call and returns how many were removed. A per-fragment
// delete loop could leave the document half-gone; the single call
// cannot.
func (r *FragmentRepository) DeleteByDocumentID(ctx context.Context, tenantID, documentID string) (int, error) {
	points, err := r.index.Scroll(ctx, indexFilter(model.FragmentFilter{
		TenantID:   tenantID,
		DocumentID: documentID,
	}), scrollPageSize)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}
	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	if err := r.index.DeletePoints(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// PointID maps a fragment id to its deterministic index point id.
func PointID(fragmentID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(fragmentID)).String()
}

func indexFilter(filter model.FragmentFilter) qdrant.Filter {
	f := qdrant.Filter{}
	if filter.TenantID != "" {
		f[fieldTenantID] = filter.TenantID
	}
	if filter.DocumentID != "" {
		f[fieldDocumentID] = filter.DocumentID
	}
	if filter.OrdinalZero {
		f[fieldOrdinalIndex] = 0
	}
	return f
}

func fragmentFromPayload(payload map[string]any) model.Fragment {
	f := model.Fragment{
		ID:            stringField(payload, fieldFragmentID),
		DocumentID:    stringField(payload, fieldDocumentID),
		DocumentTitle: stringField(payload, fieldDocumentTitle),
		TenantID:      stringField(payload, fieldTenantID),
		Text:          stringField(payload, fieldText),
		ContentHash:   stringField(payload, fieldContentHash),
		PageNumber:    intField(payload, fieldPageNumber),
		OrdinalIndex:  intField(payload, fieldOrdinalIndex),
	}
	if raw := stringField(payload, fieldCreatedAt); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.CreatedAt = t
		}
	}
	return f
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func intField(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
