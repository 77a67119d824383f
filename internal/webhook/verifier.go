// Package webhook authenticates and parses inbound gateway webhooks.
// A webhook body is untrusted until its HMAC signature has been verified.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gokhana/payment-service/internal/payment"
)

var (
	// ErrNoSecret means the shared secret is not configured; the webhook
	// endpoint cannot operate at all.
	ErrNoSecret = errors.New("webhook: shared secret not configured")
	// ErrMissingSignature means the signature header was absent.
	ErrMissingSignature = errors.New("webhook: missing signature")
	// ErrInvalidSignature means the computed HMAC did not match the header.
	ErrInvalidSignature = errors.New("webhook: invalid signature")
)

// Verifier checks webhook signatures against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier. An empty secret is allowed at construction
// so the service can boot without webhooks; Verify then fails closed.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign computes the hex-encoded HMAC-SHA256 of body under secret. Exported
// for tests and for outbound webhook simulation.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the HMAC over the raw body and compares it to the
// header-supplied signature in constant time. Any failure rejects the
// webhook; there is no fail-open path.
func (v *Verifier) Verify(body []byte, signature string) error {
	if len(v.secret) == 0 {
		return ErrNoSecret
	}
	if signature == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	supplied, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(expected, supplied) {
		return ErrInvalidSignature
	}
	return nil
}

// Parse decodes a verified webhook body into the event envelope.
func Parse(body []byte) (*payment.Webhook, error) {
	var wh payment.Webhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("webhook: failed to parse payload: %w", err)
	}
	if wh.Event == "" {
		return nil, errors.New("webhook: payload has no event name")
	}
	return &wh, nil
}
