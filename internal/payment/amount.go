package payment

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/academy-payments/internal/common"
)

const (
	msgAmountRequired = "Amount is required."
	msgAmountNumeric  = "Amount must be a valid number."
	msgAmountPositive = "Amount must be greater than zero."
	msgAmountTooSmall = "Amount must be at least 0.01."
	msgAmountTooLarge = "Amount is too large."
)

// Bounds checked on the parsed literal before any decimal arithmetic.
// Rescaling a value with an extreme exponent allocates 10^|exp|.
const (
	maxAmountLiteral   = 64
	maxAmountMagnitude = 17
	minAmountMagnitude = -3
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a JSON number or numeric string in major units into
// integer minor units. Halves round away from zero, so 0.005 becomes 1.
func ParseAmount(raw json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, common.BadRequest("AMOUNT_REQUIRED", msgAmountRequired)
	}

	var literal string
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &literal); err != nil {
			return 0, common.BadRequest("AMOUNT_INVALID", msgAmountNumeric)
		}
		literal = strings.TrimSpace(literal)
		if literal == "" {
			return 0, common.BadRequest("AMOUNT_REQUIRED", msgAmountRequired)
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		literal = string(trimmed)
	default:
		return 0, common.BadRequest("AMOUNT_INVALID", msgAmountNumeric)
	}
	if len(literal) > maxAmountLiteral {
		return 0, common.BadRequest("AMOUNT_INVALID", msgAmountNumeric)
	}

	value, err := decimal.NewFromString(literal)
	if err != nil {
		return 0, common.BadRequest("AMOUNT_INVALID", msgAmountNumeric)
	}
	if !value.IsPositive() {
		return 0, common.BadRequest("AMOUNT_NOT_POSITIVE", msgAmountPositive)
	}

	// value lies in [10^(magnitude-1), 10^magnitude).
	magnitude := int64(value.Exponent()) + int64(len(value.Coefficient().String()))
	if magnitude > maxAmountMagnitude {
		return 0, common.BadRequest("AMOUNT_TOO_LARGE", msgAmountTooLarge)
	}
	if magnitude < minAmountMagnitude {
		return 0, common.BadRequest("AMOUNT_TOO_SMALL", msgAmountTooSmall)
	}

	minor := value.Mul(hundred).Round(0)
	if !minor.IsPositive() {
		return 0, common.BadRequest("AMOUNT_TOO_SMALL", msgAmountTooSmall)
	}
	n := minor.BigInt()
	if !n.IsInt64() {
		return 0, common.BadRequest("AMOUNT_TOO_LARGE", msgAmountTooLarge)
	}
	return n.Int64(), nil
}
