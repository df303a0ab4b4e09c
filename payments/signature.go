package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/shopspring/decimal"
)

// Signer signs and verifies gateway callbacks. The gateway canonicalizes
// nonce, order id, amount (two decimal places) and currency into one string,
// HMAC-SHA256s it with the shared secret and base64-encodes the digest.
type Signer struct {
	secret string

	// sandboxPrefix, when non-empty, marks synthetic order ids whose
	// callbacks skip verification. Never set this with production
	// credentials.
	sandboxPrefix string
}

func NewSigner(secret, sandboxPrefix string) *Signer {
	return &Signer{secret: secret, sandboxPrefix: sandboxPrefix}
}

// Sign computes the gateway signature for the four canonical fields.
func (s *Signer) Sign(nonce, orderID string, amount decimal.Decimal, currency string) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(nonce + orderID + amount.StringFixed(2) + currency))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature from the provided fields and compares it
// in constant time. A missing field or an unparseable amount is a
// verification failure, never an error.
func (s *Signer) Verify(nonce, orderID, amount, currency, signature string) bool {
	if s.secret == "" || nonce == "" || orderID == "" || amount == "" || currency == "" || signature == "" {
		return false
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return false
	}

	expected := s.Sign(nonce, orderID, amt, currency)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// IsSandboxOrder reports whether the order id carries the configured
// synthetic test prefix.
func (s *Signer) IsSandboxOrder(orderID string) bool {
	return s.sandboxPrefix != "" && strings.HasPrefix(orderID, s.sandboxPrefix)
}
