package chain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// ParseAmount parses a decimal amount in whole units of cur into base
// units. Amounts more precise than the currency allows are rejected rather
// than rounded.
func ParseAmount(cur Currency, amount string) (*big.Int, error) {
	if cur == nil {
		return nil, payerr.ErrUnsupported
	}
	return parseUnits(amount, cur.Decimals())
}

// FormatAmount renders base units of cur as a decimal string without
// trailing zeros.
func FormatAmount(cur Currency, amount *big.Int) string {
	if amount == nil || cur == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(cur.Decimals())).String() //nolint:gosec // G115: decimals are small
}

func parseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	invalid := payerr.WithDetails(payerr.ErrInvalidAmount, map[string]string{"amount": s})

	// Plain positional notation only; no signs or exponents.
	if s == "" || strings.Trim(s, "0123456789.") != "" || strings.Count(s, ".") > 1 || s == "." {
		return nil, invalid
	}

	digits := s
	if strings.HasPrefix(digits, ".") {
		digits = "0" + digits
	}
	digits = strings.TrimSuffix(digits, ".")

	d, err := decimal.NewFromString(digits)
	if err != nil {
		return nil, invalid
	}

	base := d.Shift(int32(decimals)) //nolint:gosec // G115: decimals are small
	if !base.IsInteger() {
		return nil, payerr.WithDetails(payerr.ErrInvalidAmount, map[string]string{
			"amount": s,
			"reason": "too many decimal places",
		})
	}
	return base.BigInt(), nil
}
