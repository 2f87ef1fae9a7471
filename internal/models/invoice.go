package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses. Status is always a function of (PaidCents, TotalCents)
// and is recomputed on every payment creation and reversal.
const (
	InvoiceStatusOpen          = "open"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusOverdue       = "overdue"
	InvoiceStatusVoid          = "void"
)

type Invoice struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID        uuid.UUID  `gorm:"type:uuid;index:idx_invoices_tenant_number,unique" json:"tenant_id"`
	InvoiceNumber   string     `gorm:"index:idx_invoices_tenant_number,unique" json:"invoice_number"`
	ParentInvoiceID *uuid.UUID `gorm:"type:uuid" json:"parent_invoice_id,omitempty"`
	ParentName      string     `gorm:"index" json:"parent_name"`
	ChildFirstName  string     `json:"child_first_name"`
	ChildLastName   string     `json:"child_last_name"`
	TotalCents      int64      `json:"total_cents"`
	PaidCents       int64      `json:"paid_cents"`
	Status          string     `gorm:"index" json:"status"`
	PeriodStart     time.Time  `json:"period_start"`
	PeriodEnd       time.Time  `json:"period_end"`
	DueDate         time.Time  `json:"due_date"`
	CreatedAt       time.Time  `json:"created_at"`
}

// OutstandingCents is the unpaid remainder of the invoice.
func (i *Invoice) OutstandingCents() int64 {
	return i.TotalCents - i.PaidCents
}

// Payable reports whether the invoice can still receive payments.
func (i *Invoice) Payable() bool {
	switch i.Status {
	case InvoiceStatusOpen, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return i.OutstandingCents() > 0
	default:
		return false
	}
}

// StatusFor derives the invoice status implied by a paid amount.
func StatusFor(paidCents, totalCents int64) string {
	switch {
	case paidCents >= totalCents:
		return InvoiceStatusPaid
	case paidCents > 0:
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusOpen
	}
}
