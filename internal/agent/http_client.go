package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPAgent calls a JSON decision service. Every call carries its own
// timeout; retry policy belongs to the orchestrator, not here.
type HTTPAgent struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPAgent(baseURL string, timeout time.Duration) *HTTPAgent {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPAgent{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

type decisionRequest struct {
	TenantID            string           `json:"tenant_id"`
	Transaction         TransactionInput `json:"transaction"`
	Candidates          []CandidateInput `json:"candidates"`
	ConfidenceThreshold float64          `json:"confidence_threshold"`
}

type decisionResponse struct {
	TransactionID string   `json:"transaction_id"`
	InvoiceID     string   `json:"invoice_id"`
	Confidence    float64  `json:"confidence"`
	Action        string   `json:"action"`
	Reasoning     string   `json:"reasoning"`
	Alternatives  []string `json:"alternatives"`
}

func (a *HTTPAgent) MakeMatchDecision(ctx context.Context, tx TransactionInput, candidates []CandidateInput, tenantID uuid.UUID, confidenceThreshold float64) (*MatchDecision, error) {
	if a.baseURL == "" {
		return nil, fmt.Errorf("agent: base URL not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := json.Marshal(decisionRequest{
		TenantID:            tenantID.String(),
		Transaction:         tx,
		Candidates:          candidates,
		ConfidenceThreshold: confidenceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/match-decision", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("agent: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent: call decision service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("agent: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent: decision service returned %d", resp.StatusCode)
	}

	var out decisionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("agent: parse decision: %w", err)
	}
	return out.toDecision()
}

func (r *decisionResponse) toDecision() (*MatchDecision, error) {
	txID, err := uuid.Parse(r.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("agent: invalid transaction id %q: %w", r.TransactionID, err)
	}
	invID, err := uuid.Parse(r.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("agent: invalid invoice id %q: %w", r.InvoiceID, err)
	}
	action := strings.ToUpper(strings.TrimSpace(r.Action))
	if action != ActionAutoApply && action != ActionReviewRequired {
		return nil, fmt.Errorf("agent: unknown action %q", r.Action)
	}

	d := &MatchDecision{
		TransactionID: txID,
		InvoiceID:     invID,
		Confidence:    clamp01(r.Confidence),
		Action:        action,
		Reasoning:     r.Reasoning,
	}
	for _, alt := range r.Alternatives {
		id, err := uuid.Parse(alt)
		if err != nil {
			continue
		}
		d.Alternatives = append(d.Alternatives, id)
	}
	return d, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
