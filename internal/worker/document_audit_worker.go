package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docindex/internal/model"
	"docindex/internal/repository"
)

// DocumentAuditWorker consumes document lifecycle events and persists
// them as audit rows. The vector index stays the system of record; this
// trail is operational history.
type DocumentAuditWorker struct {
	conn      *amqp.Connection
	repo      *repository.DocumentAuditRepository
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDocumentAuditWorker(conn *amqp.Connection, repo *repository.DocumentAuditRepository, queueName string) *DocumentAuditWorker {
	return &DocumentAuditWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
	}
}

func (w *DocumentAuditWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var event model.DocumentEvent
				if err := json.Unmarshal(d.Body, &event); err != nil {
					log.Printf("worker decode document event failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				audit := &model.DocumentAudit{
					TenantID:      event.TenantID,
					UserID:        event.UserID,
					DocumentID:    event.DocumentID,
					Action:        event.Action,
					Title:         event.Title,
					FragmentCount: event.FragmentCount,
					OccurredAt:    event.OccurredAt,
				}
				if err := w.repo.Create(audit); err != nil {
					log.Printf("worker persist document audit failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *DocumentAuditWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
