package matching

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-matching-backend/internal/agent"
	"payment-matching-backend/internal/models"
)

func newTestEngine(store Store, matchAgent agent.MatchAgent) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(store, matchAgent, DefaultThresholds(), 3, logger)
}

// ambiguousFixture seeds two invoices that both score at the cap for one
// credit, which forces the escalation path.
func ambiguousFixture(m *memStore) (tenantID uuid.UUID, tx models.Transaction, invA, invB models.Invoice) {
	tenantID = uuid.New()
	invA = models.Invoice{
		ID:            uuid.New(),
		TenantID:      tenantID,
		InvoiceNumber: "INV-100",
		ParentName:    "Sarah Connor",
		TotalCents:    50_000,
		Status:        models.InvoiceStatusOpen,
		PeriodStart:   date(2026, 6, 1),
		PeriodEnd:     date(2026, 6, 30),
		DueDate:       date(2026, 6, 30),
	}
	invB = invA
	invB.ID = uuid.New()
	invB.InvoiceNumber = "INV-200"

	tx = models.Transaction{
		ID:              uuid.New(),
		TenantID:        tenantID,
		TransactionDate: date(2026, 6, 15),
		Description:     "PAYMENT FROM SARAH CONNOR",
		AmountCents:     50_000,
		Credit:          true,
		Reference:       "INV-100 INV-200",
	}

	m.addInvoice(invA)
	m.addInvoice(invB)
	m.addTransaction(tx)
	return tenantID, tx, invA, invB
}

func TestAgentAutoApplyDecisionCreatesPayment(t *testing.T) {
	m := newMemStore()
	tenantID, tx, invA, _ := ambiguousFixture(m)

	fa := &fakeAgent{decide: func(int) (*agent.MatchDecision, error) {
		return &agent.MatchDecision{
			TransactionID: tx.ID,
			InvoiceID:     invA.ID,
			Confidence:    0.93,
			Action:        agent.ActionAutoApply,
			Reasoning:     "reference lists INV-100 first",
		}, nil
	}}
	e := newTestEngine(m, fa)

	summary, err := e.MatchPayments(context.Background(), MatchRequest{TenantID: tenantID})
	require.NoError(t, err)

	assert.Equal(t, 1, fa.calls)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.AutoApplied)
	require.Len(t, summary.Results, 1)

	result := summary.Results[0]
	assert.Equal(t, OutcomeAutoApplied, result.Status)
	require.NotNil(t, result.AppliedMatch)
	assert.Equal(t, invA.ID, result.AppliedMatch.InvoiceID)
	assert.Equal(t, int64(50_000), result.AppliedMatch.AmountCents)
	assert.Equal(t, 93, result.AppliedMatch.ConfidenceScore)

	require.Len(t, m.payments, 1)
	for _, p := range m.payments {
		assert.Equal(t, models.MatchTypeAIAuto, p.MatchType)
		assert.Equal(t, models.MatchedByAgent, p.MatchedBy)
		assert.Equal(t, invA.ID, p.InvoiceID)
		assert.Equal(t, 93, p.ConfidenceScore)
	}

	updated := m.invoices[invA.ID]
	assert.Equal(t, int64(50_000), updated.PaidCents)
	assert.Equal(t, models.InvoiceStatusPaid, updated.Status)

	require.Len(t, m.auditsByAction(auditActionAgentDecision), 1)
	assert.Len(t, m.auditsByAction("payment_applied"), 1)
	assert.Empty(t, m.auditsByAction(auditActionAgentFallback))
}

func TestAgentReviewDecisionMessage(t *testing.T) {
	cases := []struct {
		name       string
		confidence float64
		reason     string
	}{
		{"moderate confidence", 0.7, reasonAgentSuggestReview},
		{"low confidence", 0.3, reasonAgentFlaggedReview},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newMemStore()
			tenantID, tx, invA, _ := ambiguousFixture(m)

			fa := &fakeAgent{decide: func(int) (*agent.MatchDecision, error) {
				return &agent.MatchDecision{
					TransactionID: tx.ID,
					InvoiceID:     invA.ID,
					Confidence:    tc.confidence,
					Action:        agent.ActionReviewRequired,
					Reasoning:     "candidates indistinguishable",
				}, nil
			}}
			e := newTestEngine(m, fa)

			summary, err := e.MatchPayments(context.Background(), MatchRequest{TenantID: tenantID})
			require.NoError(t, err)
			require.Len(t, summary.Results, 1)

			result := summary.Results[0]
			assert.Equal(t, OutcomeReviewRequired, result.Status)
			assert.Equal(t, tc.reason, result.Reason)
			assert.Len(t, result.Candidates, 2)
			assert.Empty(t, m.payments)
		})
	}
}

func TestAgentFallbackAfterExhaustedAttempts(t *testing.T) {
	m := newMemStore()
	tenantID, _, _, _ := ambiguousFixture(m)

	fa := &fakeAgent{decide: func(int) (*agent.MatchDecision, error) {
		return nil, errors.New("agent unavailable")
	}}
	e := newTestEngine(m, fa)

	summary, err := e.MatchPayments(context.Background(), MatchRequest{TenantID: tenantID})
	require.NoError(t, err)

	assert.Equal(t, 3, fa.calls)
	assert.Equal(t, 1, summary.ReviewRequired)
	require.Len(t, summary.Results, 1)

	result := summary.Results[0]
	assert.Equal(t, OutcomeReviewRequired, result.Status)
	assert.Equal(t, reasonAgentFailed, result.Reason)
	assert.Len(t, result.Candidates, 2)
	assert.Empty(t, m.payments)

	fallbacks := m.auditsByAction(auditActionAgentFallback)
	require.Len(t, fallbacks, 1)
	details := string(fallbacks[0].Details)
	assert.Contains(t, details, `"agentFailure":true`)
	assert.Contains(t, details, `"fallbackUsed":"rule-based"`)
	assert.Contains(t, details, `"attempts":3`)
	assert.Contains(t, details, "agent unavailable")
}

func TestAgentNilDecisionTreatedAsFailure(t *testing.T) {
	m := newMemStore()
	tenantID, _, _, _ := ambiguousFixture(m)

	fa := &fakeAgent{decide: func(int) (*agent.MatchDecision, error) {
		return nil, nil
	}}
	e := newTestEngine(m, fa)

	summary, err := e.MatchPayments(context.Background(), MatchRequest{TenantID: tenantID})
	require.NoError(t, err)

	assert.Equal(t, 3, fa.calls)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeReviewRequired, summary.Results[0].Status)
	assert.Equal(t, reasonAgentFailed, summary.Results[0].Reason)
	assert.Empty(t, m.payments)

	fallbacks := m.auditsByAction(auditActionAgentFallback)
	require.Len(t, fallbacks, 1)
	assert.Contains(t, string(fallbacks[0].Details), "agent returned no decision")
}

func TestAgentRetryThenSuccess(t *testing.T) {
	m := newMemStore()
	tenantID, tx, invA, _ := ambiguousFixture(m)

	fa := &fakeAgent{decide: func(call int) (*agent.MatchDecision, error) {
		if call == 1 {
			return nil, errors.New("timeout")
		}
		return &agent.MatchDecision{
			TransactionID: tx.ID,
			InvoiceID:     invA.ID,
			Confidence:    0.8,
			Action:        agent.ActionReviewRequired,
		}, nil
	}}
	e := newTestEngine(m, fa)

	summary, err := e.MatchPayments(context.Background(), MatchRequest{TenantID: tenantID})
	require.NoError(t, err)

	assert.Equal(t, 2, fa.calls)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, reasonAgentSuggestReview, summary.Results[0].Reason)
	assert.Len(t, m.auditsByAction(auditActionAgentDecision), 1)
	assert.Empty(t, m.auditsByAction(auditActionAgentFallback))
}

func TestAgentUnknownInvoiceSurfacedForReview(t *testing.T) {
	m := newMemStore()
	tenantID, tx, _, _ := ambiguousFixture(m)

	fa := &fakeAgent{decide: func(int) (*agent.MatchDecision, error) {
		return &agent.MatchDecision{
			TransactionID: tx.ID,
			InvoiceID:     uuid.New(), // not in the candidate set
			Confidence:    0.99,
			Action:        agent.ActionAutoApply,
		}, nil
	}}
	e := newTestEngine(m, fa)

	summary, err := e.MatchPayments(context.Background(), MatchRequest{TenantID: tenantID})
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	result := summary.Results[0]
	assert.Equal(t, OutcomeReviewRequired, result.Status)
	assert.Equal(t, reasonAgentFlaggedReview, result.Reason)
	assert.Empty(t, m.payments)
}

func TestAgentNotConsultedForLoneStrongMatch(t *testing.T) {
	m := newMemStore()
	tenantID := uuid.New()
	inv := models.Invoice{
		ID:            uuid.New(),
		TenantID:      tenantID,
		InvoiceNumber: "INV-300",
		ParentName:    "Kyle Reese",
		TotalCents:    30_000,
		Status:        models.InvoiceStatusOpen,
		DueDate:       date(2026, 7, 31),
	}
	m.addInvoice(inv)
	m.addTransaction(models.Transaction{
		ID:              uuid.New(),
		TenantID:        tenantID,
		TransactionDate: date(2026, 7, 28),
		AmountCents:     30_000,
		Credit:          true,
		Reference:       "INV-300",
	})

	fa := &fakeAgent{decide: func(int) (*agent.MatchDecision, error) {
		return nil, errors.New("must not be called")
	}}
	e := newTestEngine(m, fa)

	summary, err := e.MatchPayments(context.Background(), MatchRequest{TenantID: tenantID})
	require.NoError(t, err)

	assert.Equal(t, 0, fa.calls)
	assert.Equal(t, 1, summary.AutoApplied)
	updated := m.invoices[inv.ID]
	assert.Equal(t, models.InvoiceStatusPaid, updated.Status)
}

func TestAgentDecisionAuditDetails(t *testing.T) {
	m := newMemStore()
	tenantID, _, invA, _ := ambiguousFixture(m)

	fa := &fakeAgent{decide: func(int) (*agent.MatchDecision, error) {
		return &agent.MatchDecision{
			InvoiceID:  invA.ID,
			Confidence: 0.91,
			Action:     agent.ActionAutoApply,
			Reasoning:  "amount and parent align",
		}, nil
	}}
	e := newTestEngine(m, fa)

	_, err := e.MatchPayments(context.Background(), MatchRequest{TenantID: tenantID})
	require.NoError(t, err)

	decisions := m.auditsByAction(auditActionAgentDecision)
	require.Len(t, decisions, 1)
	entry := decisions[0]
	assert.Equal(t, models.MatchedByAgent, entry.PerformedBy)
	require.NotNil(t, entry.InvoiceID)
	assert.Equal(t, invA.ID, *entry.InvoiceID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.WithinDuration(t, time.Now(), entry.CreatedAt, time.Minute)

	details := string(entry.Details)
	assert.Contains(t, details, `"action":"AUTO_APPLY"`)
	assert.Contains(t, details, `"alternatives_considered":2`)
	assert.Contains(t, details, `"attempts":1`)
	assert.Contains(t, details, invA.ID.String())
}
