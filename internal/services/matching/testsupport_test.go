package matching

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"payment-matching-backend/internal/agent"
	"payment-matching-backend/internal/models"
)

// memStore is an in-memory Store for engine tests. The engine processes
// batches sequentially, so no locking is needed.
type memStore struct {
	transactions map[uuid.UUID]models.Transaction
	invoices     map[uuid.UUID]models.Invoice
	payments     map[uuid.UUID]models.Payment
	audits       []models.MatchAuditLog
}

func newMemStore() *memStore {
	return &memStore{
		transactions: make(map[uuid.UUID]models.Transaction),
		invoices:     make(map[uuid.UUID]models.Invoice),
		payments:     make(map[uuid.UUID]models.Payment),
	}
}

func (m *memStore) addTransaction(tx models.Transaction) { m.transactions[tx.ID] = tx }
func (m *memStore) addInvoice(inv models.Invoice)        { m.invoices[inv.ID] = inv }

func (m *memStore) auditsByAction(action string) []models.MatchAuditLog {
	var out []models.MatchAuditLog
	for _, a := range m.audits {
		if a.Action == action {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStore) Transactions() TransactionStore { return &memTxStore{m} }
func (m *memStore) Invoices() InvoiceStore         { return &memInvoiceStore{m} }
func (m *memStore) Payments() PaymentStore         { return &memPaymentStore{m} }
func (m *memStore) Audit() AuditLog                { return &memAuditLog{m} }

func (m *memStore) InTransaction(_ context.Context, fn func(Store) error) error {
	return fn(m)
}

type memTxStore struct{ m *memStore }

func (s *memTxStore) Find(_ context.Context, tenantID, id uuid.UUID) (*models.Transaction, error) {
	tx, ok := s.m.transactions[id]
	if !ok || tx.TenantID != tenantID {
		return nil, nil
	}
	out := tx
	return &out, nil
}

func (s *memTxStore) ListUnallocatedCredits(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range s.m.transactions {
		if tx.TenantID != tenantID || !tx.Credit {
			continue
		}
		active, _ := (&memPaymentStore{s.m}).ActiveByTransaction(ctx, tenantID, tx.ID)
		if len(active) > 0 {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

type memInvoiceStore struct{ m *memStore }

func (s *memInvoiceStore) Find(_ context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	inv, ok := s.m.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, nil
	}
	out := inv
	return &out, nil
}

func (s *memInvoiceStore) ListOpen(_ context.Context, tenantID uuid.UUID) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range s.m.invoices {
		if inv.TenantID != tenantID || !inv.Payable() {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *memInvoiceStore) Update(_ context.Context, invoice *models.Invoice) error {
	s.m.invoices[invoice.ID] = *invoice
	return nil
}

type memPaymentStore struct{ m *memStore }

func (s *memPaymentStore) Create(_ context.Context, payment *models.Payment) error {
	s.m.payments[payment.ID] = *payment
	return nil
}

func (s *memPaymentStore) Find(_ context.Context, tenantID, id uuid.UUID) (*models.Payment, error) {
	p, ok := s.m.payments[id]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (s *memPaymentStore) ActiveByTransaction(_ context.Context, tenantID, transactionID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range s.m.payments {
		if p.TenantID != tenantID || p.Reversed || p.TransactionID == nil || *p.TransactionID != transactionID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *memPaymentStore) ByInvoice(_ context.Context, tenantID, invoiceID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range s.m.payments {
		if p.TenantID == tenantID && p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPaymentStore) Update(_ context.Context, payment *models.Payment) error {
	s.m.payments[payment.ID] = *payment
	return nil
}

type memAuditLog struct{ m *memStore }

func (s *memAuditLog) LogAction(_ context.Context, entry *models.MatchAuditLog) error {
	s.m.audits = append(s.m.audits, *entry)
	return nil
}

// fakeAgent scripts agent behavior per attempt.
type fakeAgent struct {
	calls  int
	decide func(call int) (*agent.MatchDecision, error)
}

func (f *fakeAgent) MakeMatchDecision(_ context.Context, _ agent.TransactionInput, _ []agent.CandidateInput, _ uuid.UUID, _ float64) (*agent.MatchDecision, error) {
	f.calls++
	return f.decide(f.calls)
}
