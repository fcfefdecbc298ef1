package id

import (
	"math/big"
	"strings"

	routererr "github.com/solswap/router/internal/errors"
)

// All monetary amounts move through the engine as raw integer strings in the
// token's smallest unit. Arithmetic happens on big.Int only; decimals range
// from 0 to 18 and float rounding is not acceptable across that range.

// ParseBase parses a raw integer-string amount. Negative and malformed
// values are rejected.
func ParseBase(v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
	if !ok {
		return nil, routererr.New(routererr.CodeValidation, "amount must be an integer string in base units")
	}
	if n.Sign() < 0 {
		return nil, routererr.New(routererr.CodeValidation, "amount must be non-negative")
	}
	return n, nil
}

// MustBase is ParseBase for amounts already validated upstream; malformed
// input degrades to zero rather than panicking mid-evaluation.
func MustBase(v string) *big.Int {
	n, err := ParseBase(v)
	if err != nil {
		return new(big.Int)
	}
	return n
}

// SubClamped returns max(0, a-b) over raw integer strings.
func SubClamped(a, b string) string {
	out := new(big.Int).Sub(MustBase(a), MustBase(b))
	if out.Sign() < 0 {
		return "0"
	}
	return out.String()
}

func AddBase(a, b string) string {
	return new(big.Int).Add(MustBase(a), MustBase(b)).String()
}

// CmpBase compares two raw integer strings numerically.
func CmpBase(a, b string) int {
	return MustBase(a).Cmp(MustBase(b))
}

// FormatDecimal renders a raw base-unit string as a display decimal.
func FormatDecimal(baseUnits string, decimals int) string {
	n := MustBase(baseUnits)
	if decimals <= 0 {
		return n.String()
	}
	s := n.String()
	if len(s) <= decimals {
		pad := strings.Repeat("0", decimals-len(s)+1)
		s = pad + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// DecimalToBase converts a decimal string like "1.23" into base units.
func DecimalToBase(decimal string, decimals int) (string, error) {
	decimal = strings.TrimSpace(decimal)
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return "", routererr.New(routererr.CodeValidation, "amount is required")
	}
	if len(fracPart) > decimals {
		return "", routererr.New(routererr.CodeValidation, "decimal precision exceeds token decimals")
	}
	combined := intPart + fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined = strings.TrimLeft(combined, "0")
	if combined == "" {
		return "0", nil
	}
	if _, ok := new(big.Int).SetString(combined, 10); !ok {
		return "", routererr.New(routererr.CodeValidation, "invalid decimal amount")
	}
	return combined, nil
}

// BaseToUSD converts a base-unit amount into USD at the given unit price.
// USD values are comparison-and-display figures, never settled amounts, so
// float precision is acceptable here and only here.
func BaseToUSD(baseUnits string, decimals int, unitPriceUSD float64) float64 {
	if unitPriceUSD <= 0 {
		return 0
	}
	n := MustBase(baseUnits)
	f := new(big.Float).SetInt(n)
	scale := new(big.Float).SetInt(pow10(decimals))
	f.Quo(f, scale)
	out, _ := f.Float64()
	return out * unitPriceUSD
}

// USDToBase converts a USD figure back into base units at the given unit
// price, rounding down.
func USDToBase(usd float64, decimals int, unitPriceUSD float64) string {
	if usd <= 0 || unitPriceUSD <= 0 {
		return "0"
	}
	f := new(big.Float).SetFloat64(usd / unitPriceUSD)
	f.Mul(f, new(big.Float).SetInt(pow10(decimals)))
	out, _ := f.Int(nil)
	if out.Sign() < 0 {
		return "0"
	}
	return out.String()
}

func pow10(decimals int) *big.Int {
	if decimals < 0 {
		decimals = 0
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
