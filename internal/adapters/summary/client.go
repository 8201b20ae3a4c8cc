// Package summary is the HTTP adapter for the x402-gated document
// summarization service.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"x402probe/internal/core/domain"
	"x402probe/internal/core/ports"
	"x402probe/internal/x402"
)

const (
	summarizePath = "/summarize-doc"

	// Cap on diagnostic body dumps in error messages.
	maxErrorBody = 4096
)

// Client implements ports.SummaryService against a live service.
type Client struct {
	baseURL   string
	bare      *http.Client
	paying    *http.Client
	transport *x402.Transport
}

// NewClient creates a service client. Unpaid probes go through a plain HTTP
// client; paid calls go through an x402 paying transport with the given
// request timeout.
func NewClient(baseURL string, wallet *x402.Wallet, maxValue uint64, paidTimeout time.Duration) *Client {
	transport := &x402.Transport{
		Wallet:   wallet,
		MaxValue: maxValue,
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		bare:      &http.Client{Timeout: 30 * time.Second},
		paying:    x402.NewPayingClient(transport, paidTimeout),
		transport: transport,
	}
}

// LastPaymentHeader exposes the payment header the transport attached to the
// most recent paid request.
func (c *Client) LastPaymentHeader() string {
	return c.transport.LastPaymentHeader()
}

// LastSettlement exposes the settlement reported for the most recent payment.
func (c *Client) LastSettlement() *domain.Settlement {
	s := c.transport.LastSettlement()
	if s == nil {
		return nil
	}
	return &domain.Settlement{
		Success:     s.Success,
		Transaction: s.Transaction,
		Network:     s.Network,
		Payer:       s.Payer,
	}
}

// Health checks the service root.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.bare.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to service: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var root struct {
		AIProvider string `json:"ai_provider"`
	}
	// The root body is informational; an undecodable one is not an error.
	_ = json.Unmarshal(body, &root)
	return root.AIProvider, nil
}

// SubmitUnpaid posts the document without any payment credential.
func (c *Client) SubmitUnpaid(ctx context.Context, document string) (int, []byte, error) {
	return c.submitBare(ctx, document, "")
}

// SubmitWithPayment replays a captured payment header.
func (c *Client) SubmitWithPayment(ctx context.Context, document, paymentHeader string) (int, []byte, error) {
	return c.submitBare(ctx, document, paymentHeader)
}

func (c *Client) submitBare(ctx context.Context, document, paymentHeader string) (int, []byte, error) {
	req, err := c.newSubmitRequest(ctx, document)
	if err != nil {
		return 0, nil, err
	}
	if paymentHeader != "" {
		req.Header.Set(x402.PaymentHeader, paymentHeader)
	}
	resp, err := c.bare.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("submit document: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// SubmitPaid posts the document through the paying client. The x402
// negotiation happens inside the transport.
func (c *Client) SubmitPaid(ctx context.Context, document string) (*ports.SubmitResult, error) {
	req, err := c.newSubmitRequest(ctx, document)
	if err != nil {
		return nil, err
	}
	resp, err := c.paying.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paid submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("paid submit returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result ports.SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse submit response: %w", err)
	}
	if result.JobID == "" {
		return nil, fmt.Errorf("submit response carries no job_id")
	}
	return &result, nil
}

func (c *Client) newSubmitRequest(ctx context.Context, document string) (*http.Request, error) {
	payload, err := json.Marshal(map[string]string{"document": document})
	if err != nil {
		return nil, fmt.Errorf("marshal submit body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+summarizePath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// JobStatus fetches the current record for a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*ports.StatusResult, error) {
	url := fmt.Sprintf("%s%s/%s", c.baseURL, summarizePath, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.paying.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll job status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var job domain.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("parse status response: %w", err)
	}
	return &ports.StatusResult{Job: job, RawBody: body}, nil
}
