package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docindex/internal/model"
)

func TestPointID_DeterministicUUID(t *testing.T) {
	fragmentID := "a3f8c2e19b7d45f6a3f8c2e19b7d45f6-0007-1a2b3c4d"

	a := PointID(fragmentID)
	b := PointID(fragmentID)
	assert.Equal(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())

	other := PointID("a3f8c2e19b7d45f6a3f8c2e19b7d45f6-0008-1a2b3c4d")
	assert.NotEqual(t, a, other)
}

func TestIndexFilter(t *testing.T) {
	f := indexFilter(model.FragmentFilter{TenantID: "t1", DocumentID: "doc1", OrdinalZero: true})
	assert.Equal(t, "t1", f[fieldTenantID])
	assert.Equal(t, "doc1", f[fieldDocumentID])
	assert.Equal(t, 0, f[fieldOrdinalIndex])

	f = indexFilter(model.FragmentFilter{TenantID: "t1"})
	assert.Len(t, f, 1)
}

func TestFragmentFromPayload(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	payload := map[string]any{
		fieldFragmentID:    "frag-1",
		fieldDocumentID:    "doc-1",
		fieldDocumentTitle: "Handbook",
		fieldTenantID:      "t1",
		fieldText:          "fragment text",
		fieldContentHash:   "abc123",
		// JSON decoding turns numbers into float64.
		fieldPageNumber:   float64(4),
		fieldOrdinalIndex: float64(9),
		fieldCreatedAt:    createdAt.Format(time.RFC3339),
	}

	f := fragmentFromPayload(payload)
	assert.Equal(t, "frag-1", f.ID)
	assert.Equal(t, "doc-1", f.DocumentID)
	assert.Equal(t, "Handbook", f.DocumentTitle)
	assert.Equal(t, "t1", f.TenantID)
	assert.Equal(t, 4, f.PageNumber)
	assert.Equal(t, 9, f.OrdinalIndex)
	assert.True(t, createdAt.Equal(f.CreatedAt))
}

func TestFragmentFromPayload_MissingFields(t *testing.T) {
	f := fragmentFromPayload(map[string]any{})
	assert.Empty(t, f.ID)
	assert.Zero(t, f.PageNumber)
	assert.True(t, f.CreatedAt.IsZero())
}
