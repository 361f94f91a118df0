package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"docindex/internal/model"
	"docindex/internal/pkg/storagepath"
)

// DocumentService lists and deletes documents. There is no document
// table: listing reads the ordinal-zero fragment of each document, the
// index's one representative row per document.
type DocumentService struct {
	index   FragmentStore
	objects ObjectStore
	events  EventPublisher
	audit   AuditLog
}

func NewDocumentService(index FragmentStore, objects ObjectStore, events EventPublisher, audit AuditLog) *DocumentService {
	return &DocumentService{index: index, objects: objects, events: events, audit: audit}
}

// List returns one summary row per document in the tenant's index.
func (s *DocumentService) List(ctx context.Context, scope model.OwnerScope) ([]model.DocumentSummary, error) {
	if scope.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant", model.ErrValidation)
	}
	fragments, err := s.index.List(ctx, model.FragmentFilter{
		TenantID:    scope.TenantID,
		OrdinalZero: true,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]model.DocumentSummary, len(fragments))
	for i, f := range fragments {
		summaries[i] = model.DocumentSummary{
			DocumentID:  f.DocumentID,
			Title:       f.DocumentTitle,
			ContentHash: f.ContentHash,
			CreatedAt:   f.CreatedAt,
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// AuditTrail returns the tenant's most recent lifecycle events, newest
// first. Consumption from the queue is asynchronous, so a just-ingested
// document may not appear yet.
func (s *DocumentService) AuditTrail(ctx context.Context, scope model.OwnerScope, limit int) ([]model.DocumentAudit, error) {
	if scope.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant", model.ErrValidation)
	}
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.ListByTenant(scope.TenantID, limit)
}

// Delete removes every fragment of the document in one batched call,
// then removes the stored original best-effort. Unknown ids return
// ErrNotFound.
func (s *DocumentService) Delete(ctx context.Context, scope model.OwnerScope, documentID string) error {
	if scope.TenantID == "" || documentID == "" {
		return fmt.Errorf("%w: tenant and document id required", model.ErrValidation)
	}

	deleted, err := s.index.DeleteByDocumentID(ctx, scope.TenantID, documentID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%w: document %s", model.ErrNotFound, documentID)
	}

	if s.objects != nil {
		if bucket, key, err := storagepath.Resolve(scope, documentID); err == nil {
			if err := s.objects.Remove(ctx, bucket, key); err != nil {
				// The index is the system of record; a straggling
				// original is logged, not surfaced.
				log.Printf("remove original for %s failed: %v", documentID, err)
			}
		}
	}

	if s.events != nil {
		event := model.DocumentEvent{
			Action:        model.EventDocumentDeleted,
			TenantID:      scope.TenantID,
			UserID:        scope.UserID,
			DocumentID:    documentID,
			FragmentCount: deleted,
			OccurredAt:    time.Now().UTC(),
		}
		if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
			log.Printf("publish document event failed: %v", err)
		}
	}
	return nil
}
