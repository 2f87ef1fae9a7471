// Package agent defines the external match-decision collaborator. The
// engine only sees the MatchAgent interface; the concrete provider is an
// HTTP decision service that may be slow or unreliable, so the caller
// wraps it in bounded retries.
package agent

import (
	"context"

	"github.com/google/uuid"
)

// Decision actions.
const (
	ActionAutoApply      = "AUTO_APPLY"
	ActionReviewRequired = "REVIEW_REQUIRED"
)

// TransactionInput is the slice of a bank transaction the agent sees.
type TransactionInput struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	PayeeName   string `json:"payee_name"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference"`
}

// CandidateInput is one scored invoice candidate.
type CandidateInput struct {
	InvoiceID        string   `json:"invoice_id"`
	InvoiceNumber    string   `json:"invoice_number"`
	ParentName       string   `json:"parent_name"`
	OutstandingCents int64    `json:"outstanding_cents"`
	Score            int      `json:"score"`
	Reasons          []string `json:"reasons"`
}

// MatchDecision is the agent's verdict for one ambiguous transaction. It is
// consumed once and folded into an audit entry, never persisted as-is.
type MatchDecision struct {
	TransactionID uuid.UUID   `json:"transaction_id"`
	InvoiceID     uuid.UUID   `json:"invoice_id"`
	Confidence    float64     `json:"confidence"`
	Action        string      `json:"action"`
	Reasoning     string      `json:"reasoning"`
	Alternatives  []uuid.UUID `json:"alternatives"`
}

// MatchAgent decides between candidate invoices when the rule-based
// classifier cannot.
type MatchAgent interface {
	MakeMatchDecision(ctx context.Context, tx TransactionInput, candidates []CandidateInput, tenantID uuid.UUID, confidenceThreshold float64) (*MatchDecision, error)
}
