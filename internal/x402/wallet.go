package x402

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Clock skew tolerated on validAfter so a payment is already valid when the
// server verifies it.
const validitySkew = 60 * time.Second

// Fallback authorization lifetime when the requirement carries no timeout.
const defaultValidity = 600 * time.Second

// Wallet signs exact-scheme payments with a secp256k1 key.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewWallet derives a wallet from a hex-encoded private key. A 0x prefix is
// accepted.
func NewWallet(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the checksummed wallet address.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// SignPayment builds and signs an exact-scheme payment satisfying the given
// requirement. The authorization window opens validitySkew in the past and
// closes after the requirement's MaxTimeoutSeconds.
func (w *Wallet) SignPayment(req *PaymentRequirements, now time.Time) (*PaymentPayload, error) {
	if req.Scheme != SchemeExact {
		return nil, fmt.Errorf("unsupported scheme %q", req.Scheme)
	}
	chainID, err := ChainID(req.Network)
	if err != nil {
		return nil, err
	}
	amount, err := req.MaxAmount()
	if err != nil {
		return nil, err
	}

	validity := defaultValidity
	if req.MaxTimeoutSeconds > 0 {
		validity = time.Duration(req.MaxTimeoutSeconds) * time.Second
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	auth := Authorization{
		From:        w.Address(),
		To:          req.PayTo,
		Value:       strconv.FormatUint(amount, 10),
		ValidAfter:  strconv.FormatInt(now.Add(-validitySkew).Unix(), 10),
		ValidBefore: strconv.FormatInt(now.Add(validity).Unix(), 10),
		Nonce:       nonce,
	}

	sig, err := w.signAuthorization(auth, req, chainID)
	if err != nil {
		return nil, err
	}

	return &PaymentPayload{
		X402Version: Version,
		Scheme:      SchemeExact,
		Network:     req.Network,
		Payload: ExactEvmPayload{
			Signature:     sig,
			Authorization: auth,
		},
	}, nil
}

// signAuthorization signs the EIP-3009 TransferWithAuthorization typed data
// for the asset contract named in the requirement.
func (w *Wallet) signAuthorization(auth Authorization, req *PaymentRequirements, chainID int64) (string, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              req.ExtraString("name", "USD Coin"),
			Version:           req.ExtraString("version", "2"),
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: req.Asset,
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       auth.Value,
			"validAfter":  auth.ValidAfter,
			"validBefore": auth.ValidBefore,
			"nonce":       auth.Nonce,
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return "", fmt.Errorf("sign authorization: %w", err)
	}
	// EIP-712 expects the legacy 27/28 recovery ID.
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

func newNonce() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hexutil.Encode(b[:]), nil
}
