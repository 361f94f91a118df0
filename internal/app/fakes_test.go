package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"docindex/internal/model"
)

// memIndex is an in-memory FragmentStore. Search ranks the stored
// fragments by cosine similarity; tests that need fixed ranking set
// searchHits to bypass it.
type memIndex struct {
	mu        sync.Mutex
	fragments []model.Fragment

	searchHits []model.ScoredFragment
	lastTopK   int
	lastFilter model.FragmentFilter

	insertErr error
	searchErr error
}

func (m *memIndex) InsertBatch(ctx context.Context, fragments []model.Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.fragments = append(m.fragments, fragments...)
	return nil
}

func (m *memIndex) Search(ctx context.Context, vector []float32, topK int, filter model.FragmentFilter) ([]model.ScoredFragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTopK = topK
	m.lastFilter = filter
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.searchHits != nil {
		return m.searchHits, nil
	}

	var hits []model.ScoredFragment
	for _, f := range m.fragments {
		if filter.TenantID != "" && f.TenantID != filter.TenantID {
			continue
		}
		if filter.DocumentID != "" && f.DocumentID != filter.DocumentID {
			continue
		}
		hits = append(hits, model.ScoredFragment{Fragment: f, Score: cosineSimilarity(vector, f.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (m *memIndex) List(ctx context.Context, filter model.FragmentFilter) ([]model.Fragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Fragment
	for _, f := range m.fragments {
		if filter.TenantID != "" && f.TenantID != filter.TenantID {
			continue
		}
		if filter.DocumentID != "" && f.DocumentID != filter.DocumentID {
			continue
		}
		if filter.OrdinalZero && f.OrdinalIndex != 0 {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (m *memIndex) HasDocument(ctx context.Context, tenantID, documentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.fragments {
		if f.TenantID == tenantID && f.DocumentID == documentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memIndex) DeleteByDocumentID(ctx context.Context, tenantID, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.Fragment
	deleted := 0
	for _, f := range m.fragments {
		if f.TenantID == tenantID && f.DocumentID == documentID {
			deleted++
			continue
		}
		kept = append(kept, f)
	}
	m.fragments = kept
	return deleted, nil
}

// stubEmbedder produces one-element vectors. failOn is matched against
// the exact text of a fragment to inject a mid-batch failure.
type stubEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if e.failOn != "" && text == e.failOn {
			return nil, fmt.Errorf("%w: refused text", model.ErrEmbeddingService)
		}
		vectors[i] = []float32{float32(len(text))}
	}
	return vectors, nil
}

type uploadedObject struct {
	Bucket      string
	Key         string
	Size        int
	ContentType string
}

type memObjects struct {
	mu         sync.Mutex
	uploads    []uploadedObject
	removals   []string
	uploadErr  error
	removeErr  error
	presignErr error
}

func (o *memObjects) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.uploadErr != nil {
		return o.uploadErr
	}
	o.uploads = append(o.uploads, uploadedObject{Bucket: bucket, Key: key, Size: len(data), ContentType: contentType})
	return nil
}

func (o *memObjects) Remove(ctx context.Context, bucket, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.removeErr != nil {
		return o.removeErr
	}
	o.removals = append(o.removals, bucket+"/"+key)
	return nil
}

func (o *memObjects) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if o.presignErr != nil {
		return "", o.presignErr
	}
	return fmt.Sprintf("https://signed.example/%s/%s?ttl=%d", bucket, key, int(ttl.Seconds())), nil
}

type memEvents struct {
	mu         sync.Mutex
	events     []model.DocumentEvent
	publishErr error
}

func (e *memEvents) Publish(ctx context.Context, event model.DocumentEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.publishErr != nil {
		return e.publishErr
	}
	e.events = append(e.events, event)
	return nil
}

type memLocks struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	released []string
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (l *memLocks) Acquire(ctx context.Context, tenantID, documentID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := tenantID + ":" + documentID
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)
	return true, nil
}

func (l *memLocks) Release(ctx context.Context, tenantID, documentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := tenantID + ":" + documentID
	delete(l.held, key)
	l.released = append(l.released, key)
	return nil
}
