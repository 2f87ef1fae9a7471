package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payment-matching-backend/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Find(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		First(&invoice, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListOpen returns invoices that can still receive payments: open,
// partially paid or overdue, with outstanding > 0.
func (r *InvoiceRepository) ListOpen(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("status IN ?", []string{
			models.InvoiceStatusOpen,
			models.InvoiceStatusPartiallyPaid,
			models.InvoiceStatusOverdue,
		}).
		Where("total_cents > paid_cents").
		Order("due_date ASC, id ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *InvoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

// Create inserts an invoice, ignoring duplicates on (tenant, number) so
// CSV re-imports stay idempotent. It reports whether a row was actually
// inserted; a skipped duplicate returns (false, nil).
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(invoice)
	return res.RowsAffected > 0, res.Error
}
