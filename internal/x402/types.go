// Package x402 implements the buyer side of the x402 payment protocol:
// decoding 402 challenges, signing exact-scheme EVM payments, and retrying
// requests with an X-Payment header attached.
package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Version is the x402 protocol version this client speaks.
const Version = 1

// Header names used by the protocol.
const (
	PaymentHeader         = "X-Payment"
	PaymentResponseHeader = "X-Payment-Response"
)

// SchemeExact is the exact-amount transfer scheme (EIP-3009 on EVM chains).
const SchemeExact = "exact"

// PaymentRequirements is one entry of the "accepts" list in a 402 challenge.
type PaymentRequirements struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	MaxAmountRequired string         `json:"maxAmountRequired"`
	Resource          string         `json:"resource"`
	Description       string         `json:"description,omitempty"`
	MimeType          string         `json:"mimeType,omitempty"`
	PayTo             string         `json:"payTo"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds,omitempty"`
	Asset             string         `json:"asset"`
	Extra             map[string]any `json:"extra,omitempty"`
	OutputSchema      any            `json:"outputSchema,omitempty"`
}

// MaxAmount parses MaxAmountRequired as an integer amount in the asset's
// smallest unit.
func (r *PaymentRequirements) MaxAmount() (uint64, error) {
	v, err := strconv.ParseUint(r.MaxAmountRequired, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse maxAmountRequired %q: %w", r.MaxAmountRequired, err)
	}
	return v, nil
}

// ExtraString returns a string value from the requirement's extra map.
func (r *PaymentRequirements) ExtraString(key, fallback string) string {
	if v, ok := r.Extra[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// PaymentRequired is the JSON body of an x402 v1 402 response.
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// Authorization is the EIP-3009 TransferWithAuthorization message. Numeric
// fields travel as decimal strings, addresses and the nonce as 0x hex.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactEvmPayload carries the signed authorization for the exact scheme.
type ExactEvmPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// PaymentPayload is the value encoded into the X-Payment header.
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     ExactEvmPayload `json:"payload"`
}

// SettlementResponse is decoded from the X-Payment-Response header a server
// attaches after settling a payment.
type SettlementResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// EncodePaymentHeader serializes a payment payload into the base64 JSON form
// carried by the X-Payment header.
func EncodePaymentHeader(p *PaymentPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentHeader is the inverse of EncodePaymentHeader.
func DecodePaymentHeader(header string) (*PaymentPayload, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("decode payment header: %w", err)
	}
	var p PaymentPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse payment header: %w", err)
	}
	return &p, nil
}

// DecodeSettlementHeader parses the base64 JSON X-Payment-Response header.
func DecodeSettlementHeader(header string) (*SettlementResponse, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("decode settlement header: %w", err)
	}
	var s SettlementResponse
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settlement header: %w", err)
	}
	return &s, nil
}

// Chain IDs for the EVM networks the client can pay on.
var chainIDs = map[string]int64{
	"ethereum":     1,
	"sepolia":      11155111,
	"base":         8453,
	"base-sepolia": 84532,
	"optimism":     10,
	"arbitrum":     42161,
	"polygon":      137,
}

// ChainID resolves a network identifier to an EVM chain ID. Both plain names
// ("base-sepolia") and CAIP-2 identifiers ("eip155:84532") are accepted.
func ChainID(network string) (int64, error) {
	if rest, ok := strings.CutPrefix(network, "eip155:"); ok {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse CAIP-2 network %q: %w", network, err)
		}
		return id, nil
	}
	if id, ok := chainIDs[network]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("unsupported network %q", network)
}
