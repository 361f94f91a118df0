package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docindex/internal/model"
)

type DocumentAuditRepository struct {
	db *gorm.DB
}

func NewDocumentAuditRepository(db *gorm.DB) *DocumentAuditRepository {
	return &DocumentAuditRepository{db: db}
}

func (r *DocumentAuditRepository) Create(audit *model.DocumentAudit) error {
	if err := r.db.Create(audit).Error; err != nil {
		return fmt.Errorf("create document audit failed: %w", err)
	}
	return nil
}

// ListByTenant returns the most recent audit rows for a tenant.
func (r *DocumentAuditRepository) ListByTenant(tenantID string, limit int) ([]model.DocumentAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	var audits []model.DocumentAudit
	if err := r.db.Where("tenant_id = ?", tenantID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&audits).Error; err != nil {
		return nil, fmt.Errorf("list document audits failed: %w", err)
	}
	return audits, nil
}
