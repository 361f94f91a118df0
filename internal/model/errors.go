package model

import "errors"

// Domain errors for the ingestion and retrieval pipeline. Infrastructure
// layers wrap these with context; callers match them with errors.Is.
var (
	// ErrParse indicates an unreadable or corrupt source document.
	// Fatal for that document, never retried.
	ErrParse = errors.New("document parse failed")

	// ErrEmbeddingService indicates a transport failure or malformed
	// response from the embedding service.
	ErrEmbeddingService = errors.New("embedding service failed")

	// ErrIndexWrite indicates the vector index rejected a write.
	ErrIndexWrite = errors.New("vector index write failed")

	// ErrIndexRead indicates the vector index rejected a read.
	ErrIndexRead = errors.New("vector index read failed")

	// ErrValidation indicates malformed request parameters, rejected
	// before any external call.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidScope indicates an owner scope violating the
	// private-has-user / shared-has-no-user invariant.
	ErrInvalidScope = errors.New("invalid owner scope")

	// ErrNotFound indicates an unknown document id.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateDocument indicates the content hash is already indexed
	// under the same scope. The message carries the existing document id
	// so callers can decide between no-op and overwrite.
	ErrDuplicateDocument = errors.New("document already ingested")

	// ErrIngestInProgress indicates another ingestion of the same
	// document id is currently running.
	ErrIngestInProgress = errors.New("ingestion already in progress")
)
