package matching

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"payment-matching-backend/internal/apperr"
	"payment-matching-backend/internal/models"
	"payment-matching-backend/internal/money"
)

// ApplyMatchInput binds a credit transaction (or a manual payment without
// one) to an invoice. AmountCents overrides the default applied amount of
// min(transaction amount, invoice outstanding).
type ApplyMatchInput struct {
	TenantID        uuid.UUID
	TransactionID   *uuid.UUID
	InvoiceID       uuid.UUID
	AmountCents     *int64
	MatchType       string // derived from amounts when empty
	MatchedBy       string // defaults to USER
	ConfidenceScore int
	Summary         string // audit summary override
}

type ApplyMatchResult struct {
	PaymentID       uuid.UUID `json:"payment_id"`
	AmountCents     int64     `json:"amount_cents"`
	ConfidenceScore int       `json:"confidence_score"`
}

// ApplyMatch creates the Payment and moves the invoice's paid amount and
// status in one transactional scope. It is the single write path for
// automatic, agent and manual matches.
func (e *Engine) ApplyMatch(ctx context.Context, in ApplyMatchInput) (ApplyMatchResult, error) {
	var result ApplyMatchResult

	err := e.store.InTransaction(ctx, func(s Store) error {
		invoice, err := s.Invoices().Find(ctx, in.TenantID, in.InvoiceID)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		if invoice == nil {
			return apperr.NotFound("invoice %s", in.InvoiceID)
		}
		if !invoice.Payable() {
			return apperr.BusinessRule("invoice %s is %s and cannot receive payments", invoice.InvoiceNumber, invoice.Status)
		}

		var tx *models.Transaction
		if in.TransactionID != nil {
			tx, err = s.Transactions().Find(ctx, in.TenantID, *in.TransactionID)
			if err != nil {
				return fmt.Errorf("load transaction: %w", err)
			}
			if tx == nil {
				return apperr.NotFound("transaction %s", *in.TransactionID)
			}
			if !tx.Credit {
				return apperr.BusinessRule("transaction %s is a debit and cannot be allocated", tx.ID)
			}

			active, err := s.Payments().ActiveByTransaction(ctx, in.TenantID, tx.ID)
			if err != nil {
				return fmt.Errorf("load allocations: %w", err)
			}
			var allocated int64
			for _, p := range active {
				allocated += p.AmountCents
			}
			if in.AmountCents == nil && len(active) > 0 {
				return apperr.BusinessRule("transaction %s already has an active allocation", tx.ID)
			}
			if in.AmountCents != nil && allocated+*in.AmountCents > tx.AmountCents {
				return apperr.BusinessRule("allocation exceeds transaction amount: %s allocated of %s",
					money.FormatCents(allocated+*in.AmountCents), money.FormatCents(tx.AmountCents))
			}
		}

		outstanding := invoice.OutstandingCents()
		amount := outstanding
		if tx != nil && tx.AmountCents < amount {
			amount = tx.AmountCents
		}
		if in.AmountCents != nil {
			amount = *in.AmountCents
		}
		if amount <= 0 {
			return apperr.BusinessRule("applied amount must be positive")
		}
		if amount > outstanding {
			return apperr.BusinessRule("amount %s exceeds outstanding balance %s",
				money.FormatCents(amount), money.FormatCents(outstanding))
		}

		matchType := in.MatchType
		if matchType == "" {
			matchType = models.MatchTypeExact
			if amount < outstanding {
				matchType = models.MatchTypePartial
			}
		}
		matchedBy := in.MatchedBy
		if matchedBy == "" {
			matchedBy = models.MatchedByUser
		}

		paymentDate := e.now()
		if tx != nil {
			paymentDate = tx.TransactionDate
		}
		payment := &models.Payment{
			ID:              uuid.New(),
			TenantID:        in.TenantID,
			TransactionID:   in.TransactionID,
			InvoiceID:       invoice.ID,
			AmountCents:     amount,
			PaymentDate:     paymentDate,
			MatchType:       matchType,
			MatchedBy:       matchedBy,
			ConfidenceScore: in.ConfidenceScore,
			CreatedAt:       e.now(),
		}
		if err := s.Payments().Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		invoice.PaidCents += amount
		invoice.Status = models.StatusFor(invoice.PaidCents, invoice.TotalCents)
		if err := s.Invoices().Update(ctx, invoice); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		summary := in.Summary
		if summary == "" {
			summary = fmt.Sprintf("Manually matched payment of %s to invoice %s",
				money.FormatCents(amount), invoice.InvoiceNumber)
		}
		invoiceID := invoice.ID
		if err := s.Audit().LogAction(ctx, &models.MatchAuditLog{
			ID:            uuid.New(),
			TenantID:      in.TenantID,
			TransactionID: in.TransactionID,
			InvoiceID:     &invoiceID,
			Action:        "payment_applied",
			Summary:       summary,
			PerformedBy:   matchedBy,
			CreatedAt:     e.now(),
		}); err != nil {
			return fmt.Errorf("audit payment: %w", err)
		}

		result = ApplyMatchResult{
			PaymentID:       payment.ID,
			AmountCents:     amount,
			ConfidenceScore: in.ConfidenceScore,
		}
		return nil
	})
	if err != nil {
		return ApplyMatchResult{}, err
	}
	return result, nil
}

// ReversePayment flags a payment as reversed and winds the invoice's paid
// amount and status back in the same transactional scope. The payment row
// itself is never deleted.
func (e *Engine) ReversePayment(ctx context.Context, tenantID, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	var reversed *models.Payment

	err := e.store.InTransaction(ctx, func(s Store) error {
		payment, err := s.Payments().Find(ctx, tenantID, paymentID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if payment == nil {
			return apperr.NotFound("payment %s", paymentID)
		}
		if payment.Reversed {
			return apperr.BusinessRule("payment %s is already reversed", paymentID)
		}

		now := e.now()
		payment.Reversed = true
		payment.ReversalReason = reason
		payment.ReversedAt = &now
		if err := s.Payments().Update(ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		invoice, err := s.Invoices().Find(ctx, tenantID, payment.InvoiceID)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		if invoice != nil {
			invoice.PaidCents -= payment.AmountCents
			if invoice.PaidCents < 0 {
				invoice.PaidCents = 0
			}
			invoice.Status = models.StatusFor(invoice.PaidCents, invoice.TotalCents)
			if err := s.Invoices().Update(ctx, invoice); err != nil {
				return fmt.Errorf("update invoice: %w", err)
			}
		}

		invoiceID := payment.InvoiceID
		if err := s.Audit().LogAction(ctx, &models.MatchAuditLog{
			ID:            uuid.New(),
			TenantID:      tenantID,
			TransactionID: payment.TransactionID,
			InvoiceID:     &invoiceID,
			Action:        "payment_reversed",
			Summary:       fmt.Sprintf("Reversed payment of %s: %s", money.FormatCents(payment.AmountCents), reason),
			PerformedBy:   models.MatchedByUser,
			CreatedAt:     now,
		}); err != nil {
			return fmt.Errorf("audit reversal: %w", err)
		}

		reversed = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversed, nil
}
