package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrBadSignature indicates the event envelope failed verification.
var ErrBadSignature = errors.New("payment: invalid webhook signature")

// Sign computes the hex HMAC-SHA256 of body under the shared secret. Used by
// tests and by the provider simulator in development.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature header against the raw request body.
func VerifySignature(secret, signature string, body []byte) error {
	signature = strings.TrimSpace(strings.TrimPrefix(signature, "sha256="))
	if secret == "" || signature == "" {
		return ErrBadSignature
	}
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}
