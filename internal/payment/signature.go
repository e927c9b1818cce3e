package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares the provided signature against the expected digest in constant time.
// An empty secret or signature never verifies.
func VerifySignature(secret string, payload []byte, signature string) bool {
	provided := strings.ToLower(strings.TrimSpace(signature))
	if secret == "" || provided == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(provided))
}

// CheckoutPayload builds the message Razorpay signs after a successful checkout.
func CheckoutPayload(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}
