package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"docindex/internal/model"
	"docindex/internal/pkg/chunker"
	"docindex/internal/pkg/pdfextract"
	"docindex/internal/pkg/storagepath"
)

// documentIDLen is how many hex characters of the content hash form the
// document id.
const documentIDLen = 32

// IngestService turns one PDF's bytes into searchable fragments.
// Stateless between calls; any number of ingestions may run
// concurrently, serialized only per document id.
type IngestService struct {
	index    FragmentStore
	embedder Embedder
	objects  ObjectStore
	locks    IngestLocker
	events   EventPublisher
	splitter *chunker.Splitter
	extract  func(data []byte) ([]pdfextract.Page, error)

	batchSize      int
	fanOut         int
	storeOriginals bool
}

// IngestOptions tunes the pipeline. StoreOriginals false trades
// "download original" for throughput: fragments are indexed but the
// PDF bytes are never persisted.
type IngestOptions struct {
	ChunkSize      int
	MinContent     int
	BatchSize      int
	FanOut         int
	StoreOriginals bool
}

type IngestInput struct {
	Scope     model.OwnerScope
	Title     string
	Data      []byte
	Overwrite bool
}

type IngestResult struct {
	DocumentID       string        `json:"document_id"`
	Pages            int           `json:"pages"`
	FragmentsCreated int           `json:"fragments_created"`
	ProcessingTime   time.Duration `json:"-"`
}

func NewIngestService(
	index FragmentStore,
	embedder Embedder,
	objects ObjectStore,
	locks IngestLocker,
	events EventPublisher,
	opts IngestOptions,
) *IngestService {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	fanOut := opts.FanOut
	if fanOut <= 0 {
		fanOut = 4
	}
	return &IngestService{
		index:    index,
		embedder: embedder,
		objects:  objects,
		locks:    locks,
		events:   events,
		splitter: chunker.New(
			chunker.WithChunkSize(opts.ChunkSize),
			chunker.WithMinContent(opts.MinContent),
		),
		extract:        pdfextract.ExtractPages,
		batchSize:      batchSize,
		fanOut:         fanOut,
		storeOriginals: opts.StoreOriginals,
	}
}

// DocumentID derives the document identifier from the content hash, so
// re-uploading byte-identical content always maps to the same document.
func DocumentID(contentHash string) string {
	if len(contentHash) <= documentIDLen {
		return contentHash
	}
	return contentHash[:documentIDLen]
}

// Ingest runs parse, chunk, embed, and a single batch index write.
// All-or-nothing: if any fragment fails to embed, nothing is written. A
// document whose content hash is already indexed is rejected with
// ErrDuplicateDocument unless Overwrite is set, in which case the old
// fragments are replaced only after the new set has fully embedded.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	started := time.Now()

	if input.Scope.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant", model.ErrValidation)
	}
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("%w: empty document", model.ErrValidation)
	}

	sum := sha256.Sum256(input.Data)
	contentHash := hex.EncodeToString(sum[:])
	documentID := DocumentID(contentHash)

	acquired, err := s.locks.Acquire(ctx, input.Scope.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("%w: document %s", model.ErrIngestInProgress, documentID)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), input.Scope.TenantID, documentID); err != nil {
			log.Printf("release ingest lock for %s failed: %v", documentID, err)
		}
	}()

	exists, err := s.index.HasDocument(ctx, input.Scope.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	if exists && !input.Overwrite {
		return nil, fmt.Errorf("%w: document %s", model.ErrDuplicateDocument, documentID)
	}

	pages, err := s.extract(input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrParse, err)
	}

	chunkPages := make([]chunker.Page, len(pages))
	for i, p := range pages {
		chunkPages[i] = chunker.Page{Number: p.Number, Text: p.Text}
	}
	drafts := s.splitter.Split(documentID, chunkPages)
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no indexable text", model.ErrParse)
	}

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
	}
	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC()
	fragments := make([]model.Fragment, len(drafts))
	for i, d := range drafts {
		fragments[i] = model.Fragment{
			ID:            d.ID,
			DocumentID:    documentID,
			DocumentTitle: input.Title,
			TenantID:      input.Scope.TenantID,
			Text:          d.Text,
			Embedding:     vectors[i],
			PageNumber:    d.PageNumber,
			OrdinalIndex:  d.OrdinalIndex,
			ContentHash:   contentHash,
			CreatedAt:     createdAt,
		}
	}

	if s.storeOriginals && s.objects != nil {
		bucket, key, err := storagepath.Resolve(input.Scope, documentID)
		if err != nil {
			return nil, err
		}
		if err := s.objects.Upload(ctx, bucket, key, input.Data, "application/pdf"); err != nil {
			return nil, err
		}
	}

	// The old fragments are removed only now, with the replacement set
	// fully embedded in hand. An overwrite that fails earlier leaves the
	// previously indexed document untouched.
	if exists {
		if _, err := s.index.DeleteByDocumentID(ctx, input.Scope.TenantID, documentID); err != nil {
			return nil, err
		}
	}

	if err := s.index.InsertBatch(ctx, fragments); err != nil {
		return nil, err
	}

	s.publish(ctx, model.DocumentEvent{
		Action:        model.EventDocumentIngested,
		TenantID:      input.Scope.TenantID,
		UserID:        input.Scope.UserID,
		DocumentID:    documentID,
		Title:         input.Title,
		FragmentCount: len(fragments),
		OccurredAt:    createdAt,
	})

	return &IngestResult{
		DocumentID:       documentID,
		Pages:            len(pages),
		FragmentsCreated: len(fragments),
		ProcessingTime:   time.Since(started),
	}, nil
}

// embedAll embeds texts in batches with a bounded concurrent fan-out.
// Results are written back by position, so the output preserves ordinal
// order regardless of batch completion order. The first failure cancels
// the remaining batches and fails the whole set.
func (s *IngestService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, s.fanOut)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		wg.Add(1)
		go func(start int, batch []string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			batched, err := s.embedder.EmbedBatch(ctx, batch)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
				return
			}
			copy(vectors[start:start+len(batched)], batched)
		}(start, texts[start:end])
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for fragment %d", model.ErrEmbeddingService, i)
		}
	}
	return vectors, nil
}

// publish is best-effort: the fragments are already the system of
// record, so a lost audit event is logged, not surfaced.
func (s *IngestService) publish(ctx context.Context, event model.DocumentEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Printf("publish document event failed: %v", err)
	}
}
