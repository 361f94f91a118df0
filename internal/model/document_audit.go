package model

import "time"

// DocumentAudit is the persisted history row for a document lifecycle
// event. Operational history only; document listing always comes from the
// vector index.
type DocumentAudit struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TenantID      string    `gorm:"size:64;not null;index" json:"tenant_id"`
	UserID        string    `gorm:"size:64;index" json:"user_id"`
	DocumentID    string    `gorm:"size:64;not null;index" json:"document_id"`
	Action        string    `gorm:"size:16;not null" json:"action"`
	Title         string    `gorm:"size:256" json:"title"`
	FragmentCount int       `json:"fragment_count"`
	OccurredAt    time.Time `json:"occurred_at"`
	CreatedAt     time.Time `json:"created_at"`
}
