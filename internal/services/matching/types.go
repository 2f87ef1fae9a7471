// Package matching implements the payment matching engine: candidate
// generation, confidence scoring, classification, agent escalation and
// idempotent match application.
package matching

import (
	"context"

	"github.com/google/uuid"

	"payment-matching-backend/internal/models"
)

// TransactionStore reads bank-feed transactions for one tenant. A nil
// transaction with a nil error means the row does not exist for that
// tenant.
type TransactionStore interface {
	Find(ctx context.Context, tenantID, id uuid.UUID) (*models.Transaction, error)
	ListUnallocatedCredits(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error)
}

// InvoiceStore reads and updates tenant invoices.
type InvoiceStore interface {
	Find(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error)
	ListOpen(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
}

// PaymentStore persists the durable artifacts of matches.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	Find(ctx context.Context, tenantID, id uuid.UUID) (*models.Payment, error)
	ActiveByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) ([]models.Payment, error)
	ByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
}

// AuditLog records every terminal matching decision.
type AuditLog interface {
	LogAction(ctx context.Context, entry *models.MatchAuditLog) error
}

// Store bundles the persistence collaborators. InTransaction runs fn
// against a store whose writes commit or roll back together; payment
// creation and the invoice update must share one such scope.
type Store interface {
	Transactions() TransactionStore
	Invoices() InvoiceStore
	Payments() PaymentStore
	Audit() AuditLog
	InTransaction(ctx context.Context, fn func(Store) error) error
}

// MatchCandidate is a scored invoice candidate for one transaction. It is
// produced fresh per transaction and never cached across calls.
type MatchCandidate struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Score     int       `json:"score"`
	Reasons   []string  `json:"reasons"`
}

// Outcome is the terminal status of one transaction in a batch.
type Outcome string

const (
	OutcomeAutoApplied    Outcome = "AUTO_APPLIED"
	OutcomeReviewRequired Outcome = "REVIEW_REQUIRED"
	OutcomeNoMatch        Outcome = "NO_MATCH"
)

// MatchRequest selects the transactions to reconcile. With no explicit
// IDs, all currently-unallocated credit transactions for the tenant are
// considered.
type MatchRequest struct {
	TenantID       uuid.UUID
	TransactionIDs []uuid.UUID
}

// AppliedMatch describes the payment created for an auto-applied match.
type AppliedMatch struct {
	PaymentID       uuid.UUID `json:"payment_id"`
	InvoiceID       uuid.UUID `json:"invoice_id"`
	AmountCents     int64     `json:"amount_cents"`
	ConfidenceScore int       `json:"confidence_score"`
}

// MatchResult is the outcome for a single transaction.
type MatchResult struct {
	TransactionID uuid.UUID        `json:"transaction_id"`
	Status        Outcome          `json:"status"`
	AppliedMatch  *AppliedMatch    `json:"applied_match,omitempty"`
	Candidates    []MatchCandidate `json:"candidates,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}

// MatchSummary aggregates one sequential batch run.
type MatchSummary struct {
	Processed      int           `json:"processed"`
	AutoApplied    int           `json:"auto_applied"`
	ReviewRequired int           `json:"review_required"`
	NoMatch        int           `json:"no_match"`
	Results        []MatchResult `json:"results"`
}

// Thresholds are the classification constants. They come from
// configuration; the engine never hardcodes them.
type Thresholds struct {
	AutoApply          int
	ReviewFloor        int
	AmbiguityBand      int
	CloseMargin        int
	DueGraceDays       int
	AmountTolerancePct float64
}

// DefaultThresholds mirrors the configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AutoApply:          80,
		ReviewFloor:        20,
		AmbiguityBand:      85,
		CloseMargin:        10,
		DueGraceDays:       7,
		AmountTolerancePct: 1.0,
	}
}
