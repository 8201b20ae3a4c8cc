package x402

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key (hardhat account #0), never funded on mainnet.
const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func testNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testRequirement() *PaymentRequirements {
	return &PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           "base-sepolia",
		MaxAmountRequired: "10000",
		Resource:          "http://localhost:4021/summarize-doc",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		MaxTimeoutSeconds: 60,
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Extra:             map[string]any{"name": "USDC", "version": "2"},
	}
}

func TestNewWallet(t *testing.T) {
	t.Run("derives address", func(t *testing.T) {
		w, err := NewWallet(testKey)
		require.NoError(t, err)
		assert.Equal(t, testAddress, w.Address())
	})

	t.Run("accepts 0x prefix", func(t *testing.T) {
		w, err := NewWallet("0x" + testKey)
		require.NoError(t, err)
		assert.Equal(t, testAddress, w.Address())
	})

	t.Run("rejects empty key", func(t *testing.T) {
		_, err := NewWallet("  ")
		require.Error(t, err)
	})

	t.Run("rejects malformed key", func(t *testing.T) {
		_, err := NewWallet("not-a-key")
		require.Error(t, err)
	})
}

func TestSignPayment(t *testing.T) {
	w, err := NewWallet(testKey)
	require.NoError(t, err)
	now := testNow()

	t.Run("builds signed exact payload", func(t *testing.T) {
		payload, err := w.SignPayment(testRequirement(), now)
		require.NoError(t, err)

		assert.Equal(t, Version, payload.X402Version)
		assert.Equal(t, SchemeExact, payload.Scheme)
		assert.Equal(t, "base-sepolia", payload.Network)

		auth := payload.Payload.Authorization
		assert.Equal(t, testAddress, auth.From)
		assert.Equal(t, "10000", auth.Value)
		assert.Equal(t, strconv.FormatInt(now.Add(-validitySkew).Unix(), 10), auth.ValidAfter)
		assert.Equal(t, strconv.FormatInt(now.Add(60*time.Second).Unix(), 10), auth.ValidBefore)
		assert.True(t, strings.HasPrefix(auth.Nonce, "0x"))
		assert.Len(t, auth.Nonce, 2+64)

		// 65-byte signature with legacy recovery ID.
		sig := payload.Payload.Signature
		assert.True(t, strings.HasPrefix(sig, "0x"))
		assert.Len(t, sig, 2+130)
	})

	t.Run("fresh nonce per payment", func(t *testing.T) {
		a, err := w.SignPayment(testRequirement(), now)
		require.NoError(t, err)
		b, err := w.SignPayment(testRequirement(), now)
		require.NoError(t, err)
		assert.NotEqual(t, a.Payload.Authorization.Nonce, b.Payload.Authorization.Nonce)
		assert.NotEqual(t, a.Payload.Signature, b.Payload.Signature)
	})

	t.Run("default validity without timeout", func(t *testing.T) {
		req := testRequirement()
		req.MaxTimeoutSeconds = 0
		payload, err := w.SignPayment(req, now)
		require.NoError(t, err)
		assert.Equal(t, strconv.FormatInt(now.Add(defaultValidity).Unix(), 10),
			payload.Payload.Authorization.ValidBefore)
	})

	t.Run("rejects unknown scheme", func(t *testing.T) {
		req := testRequirement()
		req.Scheme = "upto"
		_, err := w.SignPayment(req, now)
		require.Error(t, err)
	})

	t.Run("rejects unknown network", func(t *testing.T) {
		req := testRequirement()
		req.Network = "solana"
		_, err := w.SignPayment(req, now)
		require.Error(t, err)
	})
}

func TestChainID(t *testing.T) {
	id, err := ChainID("base-sepolia")
	require.NoError(t, err)
	assert.Equal(t, int64(84532), id)

	id, err = ChainID("eip155:8453")
	require.NoError(t, err)
	assert.Equal(t, int64(8453), id)

	_, err = ChainID("eip155:not-a-number")
	require.Error(t, err)

	_, err = ChainID("lightning")
	require.Error(t, err)
}
