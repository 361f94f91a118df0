package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docindex/internal/model"
	"docindex/internal/pkg/pdfextract"
)

type ingestHarness struct {
	svc     *IngestService
	index   *memIndex
	embed   *stubEmbedder
	objects *memObjects
	events  *memEvents
	locks   *memLocks
}

func newIngestHarness(t *testing.T, opts IngestOptions, pages []pdfextract.Page) *ingestHarness {
	t.Helper()
	h := &ingestHarness{
		index:   &memIndex{},
		embed:   &stubEmbedder{},
		objects: &memObjects{},
		events:  &memEvents{},
		locks:   newMemLocks(),
	}
	h.svc = NewIngestService(h.index, h.embed, h.objects, h.locks, h.events, opts)
	h.svc.extract = func(data []byte) ([]pdfextract.Page, error) {
		return pages, nil
	}
	return h
}

func testScope(t *testing.T) model.OwnerScope {
	t.Helper()
	return scopeForTenant(t, "t1")
}

func scopeForTenant(t *testing.T, tenantID string) model.OwnerScope {
	t.Helper()
	scope, err := model.NewOwnerScope(tenantID, "u1", "", false)
	require.NoError(t, err)
	return scope
}

func testPages() []pdfextract.Page {
	return []pdfextract.Page{
		{Number: 1, Text: strings.Repeat("first page content with plenty of words ", 5)},
		{Number: 2, Text: strings.Repeat("second page content with plenty of words ", 5)},
	}
}

func TestIngest_Success(t *testing.T) {
	h := newIngestHarness(t, IngestOptions{StoreOriginals: true}, testPages())

	result, err := h.svc.Ingest(context.Background(), IngestInput{
		Scope: testScope(t),
		Title: "Employee Handbook",
		Data:  []byte("%PDF-fake-bytes"),
	})
	require.NoError(t, err)

	assert.Len(t, result.DocumentID, 32)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, result.FragmentsCreated)
	require.Len(t, h.index.fragments, 2)

	for i, f := range h.index.fragments {
		assert.Equal(t, result.DocumentID, f.DocumentID)
		assert.Equal(t, "t1", f.TenantID)
		assert.Equal(t, "Employee Handbook", f.DocumentTitle)
		assert.Equal(t, i, f.OrdinalIndex)
		assert.Equal(t, i+1, f.PageNumber)
		assert.NotNil(t, f.Embedding)
		assert.Contains(t, f.ID, result.DocumentID)
	}

	require.Len(t, h.objects.uploads, 1)
	assert.Equal(t, "tenant-t1", h.objects.uploads[0].Bucket)
	assert.Equal(t, "users/u1/"+result.DocumentID+".pdf", h.objects.uploads[0].Key)
	assert.Equal(t, "application/pdf", h.objects.uploads[0].ContentType)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, model.EventDocumentIngested, h.events.events[0].Action)
	assert.Equal(t, 2, h.events.events[0].FragmentCount)

	assert.Empty(t, h.locks.held)
	assert.Len(t, h.locks.released, 1)
}

func TestIngest_DocumentIDDeterministic(t *testing.T) {
	data := []byte("%PDF-same-bytes")

	h1 := newIngestHarness(t, IngestOptions{}, testPages())
	r1, err := h1.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: data})
	require.NoError(t, err)

	h2 := newIngestHarness(t, IngestOptions{}, testPages())
	r2, err := h2.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: data})
	require.NoError(t, err)

	assert.Equal(t, r1.DocumentID, r2.DocumentID)
	require.Len(t, h2.index.fragments, len(h1.index.fragments))
	for i := range h1.index.fragments {
		assert.Equal(t, h1.index.fragments[i].ID, h2.index.fragments[i].ID)
	}
}

func TestIngest_DuplicateRejected(t *testing.T) {
	data := []byte("%PDF-dup-bytes")
	h := newIngestHarness(t, IngestOptions{}, testPages())

	_, err := h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: data})
	require.NoError(t, err)

	_, err = h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: data})
	assert.ErrorIs(t, err, model.ErrDuplicateDocument)
	assert.Len(t, h.index.fragments, 2)
}

func TestIngest_OverwriteReplacesFragments(t *testing.T) {
	data := []byte("%PDF-overwrite-bytes")
	h := newIngestHarness(t, IngestOptions{}, testPages())

	first, err := h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: data})
	require.NoError(t, err)

	second, err := h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: data, Overwrite: true})
	require.NoError(t, err)

	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Len(t, h.index.fragments, 2)
}

func TestIngest_FailedOverwriteKeepsExistingFragments(t *testing.T) {
	data := []byte("%PDF-overwrite-fail-bytes")
	pages := testPages()
	h := newIngestHarness(t, IngestOptions{}, pages)

	first, err := h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: data})
	require.NoError(t, err)
	require.Len(t, h.index.fragments, 2)

	h.embed.failOn = strings.TrimSpace(pages[1].Text)
	_, err = h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: data, Overwrite: true})
	require.ErrorIs(t, err, model.ErrEmbeddingService)

	// The previously indexed document survives the failed overwrite.
	require.Len(t, h.index.fragments, 2)
	for _, f := range h.index.fragments {
		assert.Equal(t, first.DocumentID, f.DocumentID)
	}
	assert.Empty(t, h.locks.held)
}

func TestIngest_LockHeld(t *testing.T) {
	data := []byte("%PDF-locked-bytes")
	h := newIngestHarness(t, IngestOptions{}, testPages())

	sum := sha256.Sum256(data)
	docID := DocumentID(hex.EncodeToString(sum[:]))
	_, err := h.locks.Acquire(context.Background(), "t1", docID)
	require.NoError(t, err)

	_, err = h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: data})
	assert.ErrorIs(t, err, model.ErrIngestInProgress)
	assert.Empty(t, h.index.fragments)
}

func TestIngest_EmbedFailureWritesNothing(t *testing.T) {
	pages := testPages()
	h := newIngestHarness(t, IngestOptions{StoreOriginals: true}, pages)
	h.embed.failOn = strings.TrimSpace(pages[1].Text)

	_, err := h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: []byte("%PDF-fail-bytes")})
	assert.ErrorIs(t, err, model.ErrEmbeddingService)

	assert.Empty(t, h.index.fragments)
	assert.Empty(t, h.objects.uploads)
	assert.Empty(t, h.events.events)
	assert.Empty(t, h.locks.held)
}

func TestIngest_StoreOriginalsDisabled(t *testing.T) {
	h := newIngestHarness(t, IngestOptions{StoreOriginals: false}, testPages())

	_, err := h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: []byte("%PDF-noorig-bytes")})
	require.NoError(t, err)

	assert.Empty(t, h.objects.uploads)
	assert.Len(t, h.index.fragments, 2)
}

func TestIngest_Validation(t *testing.T) {
	h := newIngestHarness(t, IngestOptions{}, testPages())

	_, err := h.svc.Ingest(context.Background(), IngestInput{Data: []byte("x")})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t)})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestIngest_NoIndexableText(t *testing.T) {
	h := newIngestHarness(t, IngestOptions{}, []pdfextract.Page{
		{Number: 1, Text: "short"},
	})

	_, err := h.svc.Ingest(context.Background(), IngestInput{Scope: testScope(t), Data: []byte("%PDF-blank-bytes")})
	assert.ErrorIs(t, err, model.ErrParse)
	assert.Empty(t, h.locks.held)
}

func TestEmbedAll_PreservesOrder(t *testing.T) {
	h := newIngestHarness(t, IngestOptions{BatchSize: 3, FanOut: 4}, nil)

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = strings.Repeat("w", i+1)
	}

	vectors, err := h.svc.embedAll(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		require.Len(t, v, 1)
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Equal(t, 9, h.embed.calls)
}

func TestEmbedAll_FirstErrorFailsAll(t *testing.T) {
	h := newIngestHarness(t, IngestOptions{BatchSize: 2, FanOut: 2}, nil)
	h.embed.failOn = "poison"

	texts := []string{"one", "two", "three", "poison", "five", "six"}
	_, err := h.svc.embedAll(context.Background(), texts)
	assert.ErrorIs(t, err, model.ErrEmbeddingService)
}
