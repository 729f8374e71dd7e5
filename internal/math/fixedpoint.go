package math

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int32 // Number of decimal places
}

var (
	// Prices and quantities share one representation so that
	// price * quantity is exact in quote minor units.
	PriceConfig    = DecimalConfig{DecimalPrecision: 8}
	QuantityConfig = DecimalConfig{DecimalPrecision: 8}
)

var (
	ErrMalformedDecimal  = errors.New("malformed decimal")
	ErrPrecisionExceeded = errors.New("precision exceeded")
)

// ParseFixed parses s and rejects values with more fractional digits than cfg allows.
func ParseFixed(s string, cfg DecimalConfig) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedDecimal, s)
	}
	if err := CheckPrecision(d, cfg); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckPrecision verifies d is representable at cfg precision without rounding.
func CheckPrecision(d decimal.Decimal, cfg DecimalConfig) error {
	if !d.Equal(d.Truncate(cfg.DecimalPrecision)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrPrecisionExceeded, d.String(), cfg.DecimalPrecision)
	}
	return nil
}

// Notional returns price * quantity (exact).
func Notional(price, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity)
}

// PriceImprovement returns (takerPrice - makerPrice) * quantity for a buy taker
// that crossed a cheaper maker. Zero when there is no improvement.
func PriceImprovement(takerPrice, makerPrice, quantity decimal.Decimal) decimal.Decimal {
	diff := takerPrice.Sub(makerPrice)
	if !diff.IsPositive() {
		return decimal.Zero
	}
	return diff.Mul(quantity)
}

// CanonicalBytes renders d for deterministic hashing.
// Equal values always produce equal bytes regardless of input exponent.
func CanonicalBytes(d decimal.Decimal) []byte {
	s := d.String()
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}
