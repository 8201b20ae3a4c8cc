package x402

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

var (
	// ErrNoAcceptableRequirement means the 402 challenge offered no
	// exact-scheme EVM requirement this client can satisfy.
	ErrNoAcceptableRequirement = errors.New("x402: no acceptable payment requirement")

	// ErrAmountOverBudget means every candidate requirement asked for more
	// than the configured maximum payment value.
	ErrAmountOverBudget = errors.New("x402: required amount exceeds max payment value")

	// ErrPaymentRejected means the server answered 402 again after a signed
	// payment was attached.
	ErrPaymentRejected = errors.New("x402: payment rejected by server")
)

// Transport is an http.RoundTripper that satisfies x402 challenges. On a 402
// response it signs a payment for the first acceptable requirement, attaches
// it as an X-Payment header, and resubmits the request exactly once.
type Transport struct {
	// Base is the underlying round tripper, http.DefaultTransport if nil.
	Base http.RoundTripper

	// Wallet signs payments.
	Wallet *Wallet

	// MaxValue caps the amount (in the asset's smallest unit) the client is
	// willing to authorize. Zero means no cap.
	MaxValue uint64

	// Now is the clock used for authorization windows, time.Now if nil.
	Now func() time.Time

	mu             sync.Mutex
	lastHeader     string
	lastSettlement *SettlementResponse
}

// LastPaymentHeader returns the X-Payment header value attached to the most
// recent paid request. The replay probe feeds it back to the server.
func (t *Transport) LastPaymentHeader() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastHeader
}

// LastSettlement returns the settlement decoded from the most recent paid
// response, if the server reported one.
func (t *Transport) LastSettlement() *SettlementResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSettlement
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffer request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	challenge, err := decodeChallenge(resp)
	if err != nil {
		return nil, err
	}

	requirement, err := t.selectRequirement(challenge.Accepts)
	if err != nil {
		return nil, err
	}

	payload, err := t.Wallet.SignPayment(requirement, t.now())
	if err != nil {
		return nil, fmt.Errorf("sign payment: %w", err)
	}
	header, err := EncodePaymentHeader(payload)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.lastHeader = header
	t.lastSettlement = nil
	t.mu.Unlock()

	retry := req.Clone(req.Context())
	if body != nil {
		retry.Body = io.NopCloser(bytes.NewReader(body))
		retry.ContentLength = int64(len(body))
	}
	retry.Header.Set(PaymentHeader, header)

	paid, err := t.base().RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	if paid.StatusCode == http.StatusPaymentRequired {
		detail, _ := io.ReadAll(io.LimitReader(paid.Body, 4096))
		paid.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrPaymentRejected, bytes.TrimSpace(detail))
	}

	if header := paid.Header.Get(PaymentResponseHeader); header != "" {
		if settlement, err := DecodeSettlementHeader(header); err == nil {
			t.mu.Lock()
			t.lastSettlement = settlement
			t.mu.Unlock()
		}
	}
	return paid, nil
}

// selectRequirement picks the first exact-scheme requirement on a network the
// wallet can sign for, within the payment budget.
func (t *Transport) selectRequirement(accepts []PaymentRequirements) (*PaymentRequirements, error) {
	overBudget := false
	for i := range accepts {
		req := &accepts[i]
		if req.Scheme != SchemeExact {
			continue
		}
		if _, err := ChainID(req.Network); err != nil {
			continue
		}
		amount, err := req.MaxAmount()
		if err != nil {
			continue
		}
		if t.MaxValue > 0 && amount > t.MaxValue {
			overBudget = true
			continue
		}
		return req, nil
	}
	if overBudget {
		return nil, ErrAmountOverBudget
	}
	return nil, ErrNoAcceptableRequirement
}

func decodeChallenge(resp *http.Response) (*PaymentRequired, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read 402 challenge: %w", err)
	}
	var challenge PaymentRequired
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("parse 402 challenge: %w", err)
	}
	if len(challenge.Accepts) == 0 {
		return nil, fmt.Errorf("402 challenge lists no payment requirements")
	}
	return &challenge, nil
}

// NewPayingClient wraps a Transport in an http.Client with the given overall
// request timeout.
func NewPayingClient(transport *Transport, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
