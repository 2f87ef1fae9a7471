package handler

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"payment-matching-backend/internal/apperr"
	"payment-matching-backend/internal/models"
	"payment-matching-backend/internal/money"
	"payment-matching-backend/internal/services/matching"
)

// InvoiceStore is the slice of the invoice repository the handler needs.
// Create reports whether a row was actually inserted; duplicates on
// (tenant, number) come back as (false, nil).
type InvoiceStore interface {
	ListOpen(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error)
	Create(ctx context.Context, invoice *models.Invoice) (bool, error)
}

// TransactionStore is the slice of the transaction repository the handler
// needs.
type TransactionStore interface {
	ListUnallocatedCredits(ctx context.Context, tenantID uuid.UUID) ([]models.Transaction, error)
	Create(ctx context.Context, tx *models.Transaction) error
}

type MatchingHandler struct {
	engine       *matching.Engine
	invoices     InvoiceStore
	transactions TransactionStore
	log          *slog.Logger
}

func NewMatchingHandler(engine *matching.Engine, invoices InvoiceStore, transactions TransactionStore, logger *slog.Logger) *MatchingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchingHandler{engine: engine, invoices: invoices, transactions: transactions, log: logger}
}

func tenantFrom(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader("X-Tenant-ID")
	if raw == "" {
		raw = c.Query("tenant_id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid tenant ID"})
		return uuid.Nil, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrBusinessRule):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// RunMatching reconciles unallocated credits against outstanding invoices.
func (h *MatchingHandler) RunMatching(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var payload struct {
		TransactionIDs []string `json:"transaction_ids"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}

	req := matching.MatchRequest{TenantID: tenantID}
	for _, raw := range payload.TransactionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID " + raw})
			return
		}
		req.TransactionIDs = append(req.TransactionIDs, id)
	}

	summary, err := h.engine.MatchPayments(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ApplyMatch is the manual path: a user binds a transaction (or a bare
// payment) to an invoice.
func (h *MatchingHandler) ApplyMatch(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var payload struct {
		TransactionID string `json:"transaction_id"`
		InvoiceID     string `json:"invoice_id"`
		AmountCents   *int64 `json:"amount_cents"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	invoiceID, err := uuid.Parse(payload.InvoiceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice ID"})
		return
	}

	in := matching.ApplyMatchInput{
		TenantID:    tenantID,
		InvoiceID:   invoiceID,
		AmountCents: payload.AmountCents,
		MatchType:   models.MatchTypeManual,
		MatchedBy:   models.MatchedByUser,
	}
	if payload.TransactionID != "" {
		txID, err := uuid.Parse(payload.TransactionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
			return
		}
		in.TransactionID = &txID
	}

	result, err := h.engine.ApplyMatch(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReversePayment flags a payment as reversed; the row is kept.
func (h *MatchingHandler) ReversePayment(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment ID"})
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason required"})
		return
	}

	payment, err := h.engine.ReversePayment(c.Request.Context(), tenantID, paymentID, payload.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment reversed", "payment": payment})
}

// ListInvoices returns the tenant's open invoices for review screens.
func (h *MatchingHandler) ListInvoices(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	invoices, err := h.invoices.ListOpen(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": invoices})
}

// ListTransactions returns the tenant's unallocated credit transactions.
func (h *MatchingHandler) ListTransactions(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	txs, err := h.transactions.ListUnallocatedCredits(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": txs})
}

// UploadInvoices ingests an invoice CSV:
// invoice_number,parent_name,child_first_name,child_last_name,amount,status,period_start,period_end,due_date
func (h *MatchingHandler) UploadInvoices(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read CSV header"})
		return
	}

	inserted := 0
	rowNum := 1
	for {
		record, err := reader.Read()
		rowNum++
		if err == io.EOF {
			break
		}
		if err != nil {
			h.log.Warn("skipping malformed invoice row", "row", rowNum, "error", err)
			continue
		}
		if len(record) < 9 {
			h.log.Warn("skipping invoice row with missing columns", "row", rowNum)
			continue
		}

		invoiceNumber := strings.TrimSpace(record[0])
		if invoiceNumber == "" {
			invoiceNumber = uuid.New().String()
		}
		parentName := strings.TrimSpace(record[1])
		if parentName == "" {
			h.log.Warn("skipping invoice row without parent name", "row", rowNum)
			continue
		}

		totalCents, err := money.ParseCents(strings.TrimSpace(record[4]))
		if err != nil || totalCents <= 0 {
			h.log.Warn("skipping invoice row with invalid amount", "row", rowNum, "amount", record[4])
			continue
		}

		status := strings.TrimSpace(record[5])
		if status == "" {
			status = models.InvoiceStatusOpen
		}

		periodStart, err1 := parseDate(record[6])
		periodEnd, err2 := parseDate(record[7])
		dueDate, err3 := parseDate(record[8])
		if err1 != nil || err2 != nil || err3 != nil {
			h.log.Warn("skipping invoice row with invalid dates", "row", rowNum)
			continue
		}

		invoice := &models.Invoice{
			ID:             uuid.New(),
			TenantID:       tenantID,
			InvoiceNumber:  invoiceNumber,
			ParentName:     parentName,
			ChildFirstName: strings.TrimSpace(record[2]),
			ChildLastName:  strings.TrimSpace(record[3]),
			TotalCents:     totalCents,
			Status:         status,
			PeriodStart:    periodStart,
			PeriodEnd:      periodEnd,
			DueDate:        dueDate,
			CreatedAt:      time.Now(),
		}
		created, err := h.invoices.Create(c.Request.Context(), invoice)
		if err != nil {
			h.log.Error("invoice insert failed", "row", rowNum, "error", err)
			continue
		}
		if !created {
			h.log.Warn("skipping duplicate invoice", "row", rowNum, "invoice_number", invoiceNumber)
			continue
		}
		inserted++
	}

	c.JSON(http.StatusOK, gin.H{
		"file":           header.Filename,
		"invoices_added": inserted,
	})
}

// UploadTransactions ingests a bank-feed CSV:
// date,description,payee_name,amount,type,reference  (type: credit|debit)
func (h *MatchingHandler) UploadTransactions(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read CSV header"})
		return
	}

	inserted := 0
	rowNum := 1
	for {
		record, err := reader.Read()
		rowNum++
		if err == io.EOF {
			break
		}
		if err != nil || len(record) < 6 {
			h.log.Warn("skipping malformed transaction row", "row", rowNum)
			continue
		}

		date, err := parseDate(record[0])
		if err != nil {
			h.log.Warn("skipping transaction row with invalid date", "row", rowNum, "date", record[0])
			continue
		}
		amountCents, err := money.ParseCents(strings.TrimSpace(record[3]))
		if err != nil || amountCents <= 0 {
			h.log.Warn("skipping transaction row with invalid amount", "row", rowNum, "amount", record[3])
			continue
		}

		tx := &models.Transaction{
			ID:              uuid.New(),
			TenantID:        tenantID,
			TransactionDate: date,
			Description:     strings.TrimSpace(record[1]),
			PayeeName:       strings.TrimSpace(record[2]),
			AmountCents:     amountCents,
			Credit:          strings.EqualFold(strings.TrimSpace(record[4]), "credit"),
			Reference:       strings.TrimSpace(record[5]),
			CreatedAt:       time.Now(),
		}
		if err := h.transactions.Create(c.Request.Context(), tx); err != nil {
			h.log.Error("transaction insert failed", "row", rowNum, "error", err)
			continue
		}
		inserted++
	}

	c.JSON(http.StatusOK, gin.H{
		"file":               header.Filename,
		"transactions_added": inserted,
	})
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		t, err = time.Parse("02-01-2006", s)
	}
	return t, err
}
