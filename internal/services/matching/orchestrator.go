package matching

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"payment-matching-backend/internal/agent"
	"payment-matching-backend/internal/models"
)

// Agent resolution is modeled as an explicit state machine rather than
// exception-driven control flow, so the fallback path is a first-class,
// testable branch.
type resolutionState int

const (
	stateAttempting resolutionState = iota
	stateRetrying
	stateSucceeded
	stateFallbackApplied
)

const (
	auditActionAgentDecision = "agent_decision"
	auditActionAgentFallback = "agent_fallback"

	reasonAgentFailed        = "Agent resolution failed"
	reasonAgentSuggestReview = "Agent suggests review"
	reasonAgentFlaggedReview = "Agent flagged for manual review"

	// Agent confidence at or above this reads as a moderate-confidence
	// review suggestion rather than a hard flag.
	agentModerateConfidence = 0.5
)

type agentResolution struct {
	decision *agent.MatchDecision
	attempts int
	fallback bool
}

// resolveWithAgent asks the external agent to break a tie among strong
// candidates. Up to maxAttempts sequential calls; intermediate failures
// yield nothing to the caller. Exhaustion degrades deterministically to a
// review outcome, never to an error. Every outcome is audited before
// returning.
func (e *Engine) resolveWithAgent(ctx context.Context, tx *models.Transaction, candidates []MatchCandidate, invoicesByID map[uuid.UUID]*models.Invoice) agentResolution {
	agentTx := agent.TransactionInput{
		ID:          tx.ID.String(),
		Date:        tx.TransactionDate.Format("2006-01-02"),
		Description: tx.Description,
		PayeeName:   tx.PayeeName,
		AmountCents: tx.AmountCents,
		Reference:   tx.Reference,
	}
	agentCandidates := make([]agent.CandidateInput, 0, len(candidates))
	for _, c := range candidates {
		in := agent.CandidateInput{
			InvoiceID: c.InvoiceID.String(),
			Score:     c.Score,
			Reasons:   c.Reasons,
		}
		if inv := invoicesByID[c.InvoiceID]; inv != nil {
			in.InvoiceNumber = inv.InvoiceNumber
			in.ParentName = inv.ParentName
			in.OutstandingCents = inv.OutstandingCents()
		}
		agentCandidates = append(agentCandidates, in)
	}

	threshold := float64(e.thresholds.AutoApply) / float64(maxScore)

	state := stateAttempting
	attempts := 0
	var decision *agent.MatchDecision
	var lastErr error

	for state == stateAttempting || state == stateRetrying {
		attempts++
		d, err := e.agent.MakeMatchDecision(ctx, agentTx, agentCandidates, tx.TenantID, threshold)
		if err == nil && d == nil {
			err = errors.New("agent returned no decision")
		}
		switch {
		case err == nil:
			decision = d
			state = stateSucceeded
		case attempts >= e.agentMaxAttempts:
			lastErr = err
			state = stateFallbackApplied
		default:
			lastErr = err
			state = stateRetrying
			e.log.Warn("agent attempt failed, retrying",
				"transaction_id", tx.ID, "attempt", attempts, "error", err)
		}
	}

	if state == stateSucceeded {
		e.auditAgentDecision(ctx, tx, decision, len(candidates), attempts)
		return agentResolution{decision: decision, attempts: attempts}
	}

	e.log.Error("agent resolution exhausted, falling back to review",
		"transaction_id", tx.ID, "attempts", attempts, "error", lastErr)
	e.auditAgentFallback(ctx, tx, len(candidates), attempts, lastErr)
	return agentResolution{attempts: attempts, fallback: true}
}

func (e *Engine) auditAgentDecision(ctx context.Context, tx *models.Transaction, d *agent.MatchDecision, alternatives, attempts int) {
	details, _ := json.Marshal(map[string]any{
		"action":                  d.Action,
		"confidence":              d.Confidence,
		"reasoning":               d.Reasoning,
		"selected_invoice":        d.InvoiceID.String(),
		"alternatives_considered": alternatives,
		"attempts":                attempts,
	})
	invoiceID := d.InvoiceID
	e.logAudit(ctx, &models.MatchAuditLog{
		TenantID:      tx.TenantID,
		TransactionID: &tx.ID,
		InvoiceID:     &invoiceID,
		Action:        auditActionAgentDecision,
		Summary:       "Agent decided " + d.Action + " for transaction " + tx.ID.String(),
		PerformedBy:   models.MatchedByAgent,
		Details:       datatypes.JSON(details),
	})
}

func (e *Engine) auditAgentFallback(ctx context.Context, tx *models.Transaction, alternatives, attempts int, callErr error) {
	detail := map[string]any{
		"agentFailure":            true,
		"fallbackUsed":            "rule-based",
		"alternatives_considered": alternatives,
		"attempts":                attempts,
	}
	if callErr != nil {
		detail["error"] = callErr.Error()
	}
	details, _ := json.Marshal(detail)
	e.logAudit(ctx, &models.MatchAuditLog{
		TenantID:      tx.TenantID,
		TransactionID: &tx.ID,
		Action:        auditActionAgentFallback,
		Summary:       reasonAgentFailed,
		PerformedBy:   models.MatchedBySystem,
		Details:       datatypes.JSON(details),
	})
}

func (e *Engine) logAudit(ctx context.Context, entry *models.MatchAuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := e.store.Audit().LogAction(ctx, entry); err != nil {
		e.log.Error("audit write failed", "action", entry.Action, "error", err)
	}
}
