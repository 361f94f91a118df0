package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// IngestLock serializes ingestions of the same document id across
// processes. Two ingestions of the same content must never interleave
// their index writes; unrelated documents ingest fully in parallel.
type IngestLock struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewIngestLock(client *redisv9.Client, ttl time.Duration) *IngestLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &IngestLock{client: client, ttl: ttl}
}

// Acquire takes the per-document lock. Returns false when another
// ingestion currently holds it. The TTL bounds how long a crashed
// ingestion can block the document.
func (l *IngestLock) Acquire(ctx context.Context, tenantID, documentID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(tenantID, documentID), 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire ingest lock failed: %w", err)
	}
	return ok, nil
}

// Release frees the lock. Safe to call when it already expired.
func (l *IngestLock) Release(ctx context.Context, tenantID, documentID string) error {
	if err := l.client.Del(ctx, l.key(tenantID, documentID)).Err(); err != nil {
		return fmt.Errorf("redis release ingest lock failed: %w", err)
	}
	return nil
}

func (l *IngestLock) key(tenantID, documentID string) string {
	return fmt.Sprintf("ingest:lock:%s:%s", tenantID, documentID)
}
