package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is an immutable bank-feed credit or debit. The matcher never
// mutates it; allocation state is derived from non-reversed Payments that
// reference it.
type Transaction struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID        uuid.UUID `gorm:"type:uuid;index" json:"tenant_id"`
	TransactionDate time.Time `gorm:"column:transaction_date" json:"transaction_date"`
	Description     string    `json:"description"`
	PayeeName       string    `json:"payee_name"`
	AmountCents     int64     `gorm:"index" json:"amount_cents"`
	Credit          bool      `gorm:"index" json:"credit"`
	Reference       string    `json:"reference"`
	CreatedAt       time.Time `json:"created_at"`
}
