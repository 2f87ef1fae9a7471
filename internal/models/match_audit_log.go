package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MatchAuditLog struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID      `gorm:"type:uuid;index" json:"tenant_id"`
	TransactionID *uuid.UUID     `gorm:"type:uuid;index" json:"transaction_id,omitempty"`
	InvoiceID     *uuid.UUID     `gorm:"type:uuid;index" json:"invoice_id,omitempty"`
	Action        string         `gorm:"index" json:"action"`
	Summary       string         `json:"summary"`
	PerformedBy   string         `json:"performed_by"`
	Details       datatypes.JSON `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
