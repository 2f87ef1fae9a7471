package repository

import (
	"context"

	"gorm.io/gorm"

	"payment-matching-backend/internal/services/matching"
)

// Store is the gorm-backed implementation of matching.Store.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Transactions() matching.TransactionStore {
	return &TransactionRepository{db: s.db}
}

func (s *Store) Invoices() matching.InvoiceStore {
	return &InvoiceRepository{db: s.db}
}

func (s *Store) Payments() matching.PaymentStore {
	return &PaymentRepository{db: s.db}
}

func (s *Store) Audit() matching.AuditLog {
	return &AuditRepository{db: s.db}
}

// InTransaction runs fn against a store bound to one database
// transaction; all writes inside commit or roll back together.
func (s *Store) InTransaction(ctx context.Context, fn func(matching.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
