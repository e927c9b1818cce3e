package payment_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-payments/internal/payment"
)

func TestSignMatchesHMACSHA256(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(body)

	require.Equal(t, hex.EncodeToString(mac.Sum(nil)), payment.Sign("secret", body))
	require.Equal(t, payment.Sign("secret", body), payment.Sign("secret", body))
}

func TestSignChangesWithSingleByte(t *testing.T) {
	body := []byte(`{"event":"payment.captured","amount":100}`)
	altered := []byte(`{"event":"payment.captured","amount":101}`)

	sig := payment.Sign("secret", body)
	require.NotEqual(t, sig, payment.Sign("secret", altered))
	require.False(t, payment.VerifySignature("secret", altered, sig))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := payment.Sign("secret", body)

	require.True(t, payment.VerifySignature("secret", body, sig))
	require.True(t, payment.VerifySignature("secret", body, strings.ToUpper(sig)))
	require.True(t, payment.VerifySignature("secret", body, " "+sig+"\n"))
	require.False(t, payment.VerifySignature("other", body, sig))
	require.False(t, payment.VerifySignature("secret", body, ""))
	require.False(t, payment.VerifySignature("", body, payment.Sign("", body)))
	require.False(t, payment.VerifySignature("secret", body, sig[:len(sig)-1]))
}

func TestCheckoutPayload(t *testing.T) {
	require.Equal(t, "order_1|pay_1", string(payment.CheckoutPayload("order_1", "pay_1")))
}
