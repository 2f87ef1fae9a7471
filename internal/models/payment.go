package models

import (
	"time"

	"github.com/google/uuid"
)

// Match types recorded on a Payment.
const (
	MatchTypeExact   = "EXACT"
	MatchTypePartial = "PARTIAL"
	MatchTypeManual  = "MANUAL"
	MatchTypeAIAuto  = "AI_AUTO"
)

// Actors that can bind a match.
const (
	MatchedBySystem = "SYSTEM"
	MatchedByUser   = "USER"
	MatchedByAgent  = "AI_AGENT"
)

// Payment is the durable artifact of a match. Rows are never deleted;
// reversal flips the Reversed flag and records why.
type Payment struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID        uuid.UUID  `gorm:"type:uuid;index" json:"tenant_id"`
	TransactionID   *uuid.UUID `gorm:"type:uuid;index" json:"transaction_id,omitempty"`
	InvoiceID       uuid.UUID  `gorm:"type:uuid;index" json:"invoice_id"`
	AmountCents     int64      `json:"amount_cents"`
	PaymentDate     time.Time  `json:"payment_date"`
	MatchType       string     `json:"match_type"`
	MatchedBy       string     `json:"matched_by"`
	ConfidenceScore int        `json:"confidence_score"`
	Reversed        bool       `gorm:"index" json:"reversed"`
	ReversalReason  string     `json:"reversal_reason,omitempty"`
	ReversedAt      *time.Time `json:"reversed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
