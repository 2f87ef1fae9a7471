package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"payment-matching-backend/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Find returns (nil, nil) when the transaction does not exist for the
// tenant; cross-tenant rows are indistinguishable from missing ones.
func (r *TransactionRepository) Find(ctx context.Context, tenantID, id uuid.UUID) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).
		First(&tx, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListUnallocatedCredits returns credit transactions with no active
// (non-reversed) payment against them, oldest first.
func (r *TransactionRepository) ListUnallocatedCredits(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND credit = ?", tenantID, true).
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.transaction_id = transactions.id AND p.reversed = ?)", false).
		Order("transaction_date ASC, id ASC").
		Find(&txs).Error
	return txs, err
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}
