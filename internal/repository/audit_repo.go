package repository

import (
	"context"

	"gorm.io/gorm"

	"payment-matching-backend/internal/models"
)

// AuditRepository appends match audit entries. Rows are write-once.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) LogAction(ctx context.Context, entry *models.MatchAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
