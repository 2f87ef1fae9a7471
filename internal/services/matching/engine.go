package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"payment-matching-backend/internal/agent"
	"payment-matching-backend/internal/apperr"
	"payment-matching-backend/internal/models"
	"payment-matching-backend/internal/money"
)

// Engine reconciles incoming bank credits against outstanding invoices.
// Collaborators are injected at construction; there is no hidden registry.
type Engine struct {
	store            Store
	agent            agent.MatchAgent
	thresholds       Thresholds
	agentMaxAttempts int
	log              *slog.Logger
	now              func() time.Time
}

func NewEngine(store Store, matchAgent agent.MatchAgent, thresholds Thresholds, agentMaxAttempts int, logger *slog.Logger) *Engine {
	if agentMaxAttempts <= 0 {
		agentMaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:            store,
		agent:            matchAgent,
		thresholds:       thresholds,
		agentMaxAttempts: agentMaxAttempts,
		log:              logger,
		now:              time.Now,
	}
}

// MatchPayments runs one sequential batch. Transactions are processed one
// at a time so that two credits in the same batch never race for the same
// outstanding-balance window; candidate invoices are re-read per
// transaction.
func (e *Engine) MatchPayments(ctx context.Context, req MatchRequest) (MatchSummary, error) {
	transactions, err := e.selectTransactions(ctx, req)
	if err != nil {
		return MatchSummary{}, err
	}

	summary := MatchSummary{Results: make([]MatchResult, 0, len(transactions))}
	for i := range transactions {
		tx := &transactions[i]

		eligible, err := e.eligible(ctx, tx)
		if err != nil {
			return MatchSummary{}, err
		}
		if !eligible {
			continue
		}

		result, err := e.matchOne(ctx, tx)
		if err != nil {
			return MatchSummary{}, err
		}

		summary.Processed++
		switch result.Status {
		case OutcomeAutoApplied:
			summary.AutoApplied++
		case OutcomeReviewRequired:
			summary.ReviewRequired++
		case OutcomeNoMatch:
			summary.NoMatch++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

func (e *Engine) selectTransactions(ctx context.Context, req MatchRequest) ([]models.Transaction, error) {
	if len(req.TransactionIDs) == 0 {
		return e.store.Transactions().ListUnallocatedCredits(ctx, req.TenantID)
	}

	out := make([]models.Transaction, 0, len(req.TransactionIDs))
	for _, id := range req.TransactionIDs {
		tx, err := e.store.Transactions().Find(ctx, req.TenantID, id)
		if err != nil {
			return nil, fmt.Errorf("load transaction: %w", err)
		}
		if tx == nil {
			return nil, apperr.NotFound("transaction %s", id)
		}
		out = append(out, *tx)
	}
	return out, nil
}

// eligible filters debits and already-allocated credits before candidate
// generation. Skipped transactions do not count as processed.
func (e *Engine) eligible(ctx context.Context, tx *models.Transaction) (bool, error) {
	if !tx.Credit {
		return false, nil
	}
	active, err := e.store.Payments().ActiveByTransaction(ctx, tx.TenantID, tx.ID)
	if err != nil {
		return false, fmt.Errorf("load allocations: %w", err)
	}
	return len(active) == 0, nil
}

func (e *Engine) matchOne(ctx context.Context, tx *models.Transaction) (MatchResult, error) {
	invoices, err := e.store.Invoices().ListOpen(ctx, tx.TenantID)
	if err != nil {
		return MatchResult{}, fmt.Errorf("load open invoices: %w", err)
	}

	byID := make(map[uuid.UUID]*models.Invoice, len(invoices))
	candidates := make([]MatchCandidate, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		if !inv.Payable() {
			continue
		}
		byID[inv.ID] = inv
		score, reasons := Score(tx, inv, e.thresholds)
		candidates = append(candidates, MatchCandidate{InvoiceID: inv.ID, Score: score, Reasons: reasons})
	}
	if len(byID) == 0 {
		result := MatchResult{TransactionID: tx.ID, Status: OutcomeNoMatch, Reason: reasonNoOutstandingInvoices}
		e.auditOutcome(ctx, tx, result)
		return result, nil
	}

	cls := classify(candidates, e.thresholds)
	switch cls.kind {
	case kindAutoApply:
		return e.autoApply(ctx, tx, cls.best, byID)
	case kindAmbiguous:
		return e.escalate(ctx, tx, cls.candidates, byID)
	case kindReview:
		result := MatchResult{TransactionID: tx.ID, Status: OutcomeReviewRequired, Candidates: cls.candidates}
		e.auditOutcome(ctx, tx, result)
		return result, nil
	default:
		result := MatchResult{TransactionID: tx.ID, Status: OutcomeNoMatch, Reason: cls.reason}
		e.auditOutcome(ctx, tx, result)
		return result, nil
	}
}

func (e *Engine) autoApply(ctx context.Context, tx *models.Transaction, best *MatchCandidate, byID map[uuid.UUID]*models.Invoice) (MatchResult, error) {
	invoice := byID[best.InvoiceID]
	applied, err := e.ApplyMatch(ctx, ApplyMatchInput{
		TenantID:        tx.TenantID,
		TransactionID:   &tx.ID,
		InvoiceID:       best.InvoiceID,
		MatchedBy:       models.MatchedBySystem,
		ConfidenceScore: best.Score,
		Summary: fmt.Sprintf("Auto-matched transaction %s (%s) to invoice %s",
			tx.ID, money.FormatCents(tx.AmountCents), invoice.InvoiceNumber),
	})
	if err != nil {
		return MatchResult{}, fmt.Errorf("auto-apply transaction %s: %w", tx.ID, err)
	}
	return MatchResult{
		TransactionID: tx.ID,
		Status:        OutcomeAutoApplied,
		AppliedMatch: &AppliedMatch{
			PaymentID:       applied.PaymentID,
			InvoiceID:       best.InvoiceID,
			AmountCents:     applied.AmountCents,
			ConfidenceScore: best.Score,
		},
		Candidates: []MatchCandidate{*best},
	}, nil
}

// escalate hands a genuine tie to the agent and applies or surfaces its
// decision. Agent failure degrades to review, never to an error.
func (e *Engine) escalate(ctx context.Context, tx *models.Transaction, candidates []MatchCandidate, byID map[uuid.UUID]*models.Invoice) (MatchResult, error) {
	res := e.resolveWithAgent(ctx, tx, candidates, byID)

	if res.fallback {
		return MatchResult{
			TransactionID: tx.ID,
			Status:        OutcomeReviewRequired,
			Candidates:    candidates,
			Reason:        reasonAgentFailed,
		}, nil
	}

	decision := res.decision
	if decision.Action == agent.ActionAutoApply {
		invoice := byID[decision.InvoiceID]
		if invoice == nil {
			// Agent picked an invoice outside the candidate set; do not
			// trust it with money.
			e.log.Warn("agent selected unknown invoice, surfacing for review",
				"transaction_id", tx.ID, "invoice_id", decision.InvoiceID)
			return MatchResult{
				TransactionID: tx.ID,
				Status:        OutcomeReviewRequired,
				Candidates:    candidates,
				Reason:        reasonAgentFlaggedReview,
			}, nil
		}

		confidence := int(decision.Confidence * maxScore)
		applied, err := e.ApplyMatch(ctx, ApplyMatchInput{
			TenantID:        tx.TenantID,
			TransactionID:   &tx.ID,
			InvoiceID:       decision.InvoiceID,
			MatchType:       models.MatchTypeAIAuto,
			MatchedBy:       models.MatchedByAgent,
			ConfidenceScore: confidence,
			Summary: fmt.Sprintf("Agent matched transaction %s to invoice %s: %s",
				tx.ID, invoice.InvoiceNumber, decision.Reasoning),
		})
		if err != nil {
			return MatchResult{}, fmt.Errorf("apply agent decision for %s: %w", tx.ID, err)
		}
		return MatchResult{
			TransactionID: tx.ID,
			Status:        OutcomeAutoApplied,
			AppliedMatch: &AppliedMatch{
				PaymentID:       applied.PaymentID,
				InvoiceID:       decision.InvoiceID,
				AmountCents:     applied.AmountCents,
				ConfidenceScore: confidence,
			},
			Candidates: candidates,
		}, nil
	}

	reason := reasonAgentFlaggedReview
	if decision.Confidence >= agentModerateConfidence {
		reason = reasonAgentSuggestReview
	}
	return MatchResult{
		TransactionID: tx.ID,
		Status:        OutcomeReviewRequired,
		Candidates:    candidates,
		Reason:        reason,
	}, nil
}

func (e *Engine) auditOutcome(ctx context.Context, tx *models.Transaction, result MatchResult) {
	summary := ""
	switch result.Status {
	case OutcomeReviewRequired:
		summary = fmt.Sprintf("Transaction %s requires review (%d candidates)", tx.ID, len(result.Candidates))
	case OutcomeNoMatch:
		summary = fmt.Sprintf("No match for transaction %s: %s", tx.ID, result.Reason)
	}
	e.logAudit(ctx, &models.MatchAuditLog{
		TenantID:      tx.TenantID,
		TransactionID: &tx.ID,
		Action:        "match_" + string(result.Status),
		Summary:       summary,
		PerformedBy:   models.MatchedBySystem,
	})
}
