package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"MatchCore/internal/invariant"
	fpmath "MatchCore/internal/math"
)

// Direction is the side of an order.
type Direction int8

const (
	Buy Direction = iota + 1
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the side a taker of this direction matches against.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// ParseDirection accepts "BUY"/"buy" and "SELL"/"sell".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "BUY", "buy":
		return Buy, nil
	case "SELL", "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Status is derived from quantities, never stored.
type Status int8

const (
	StatusPending Status = iota + 1
	StatusPartialFilled
	StatusFullyFilled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusPartialFilled:
		return "PARTIAL_FILLED"
	case StatusFullyFilled:
		return "FULLY_FILLED"
	default:
		return "UNKNOWN"
	}
}

// DeriveStatus computes status from the original and unfilled quantity.
func DeriveStatus(quantity, unfilled decimal.Decimal) Status {
	switch {
	case unfilled.IsZero():
		return StatusFullyFilled
	case unfilled.Equal(quantity):
		return StatusPending
	default:
		return StatusPartialFilled
	}
}

// Order is a limit order. Quantity is immutable; UnfilledQuantity only decreases.
type Order struct {
	ID               int64
	SequenceID       int64
	UserID           int64
	Direction        Direction
	Price            decimal.Decimal
	Quantity         decimal.Decimal
	UnfilledQuantity decimal.Decimal
	CreatedAt        int64 // epoch microseconds
	UpdatedAt        int64
}

func (o *Order) Status() Status {
	return DeriveStatus(o.Quantity, o.UnfilledQuantity)
}

func (o *Order) IsFilled() bool {
	return o.UnfilledQuantity.IsZero()
}

// Fill consumes qty of the unfilled quantity. A non-positive qty or one
// larger than what is left is an invariant violation.
func (o *Order) Fill(qty decimal.Decimal, ts int64) error {
	if !qty.IsPositive() {
		return invariant.Violationf("non_positive_fill", "order %d fill %s", o.ID, qty)
	}
	if qty.GreaterThan(o.UnfilledQuantity) {
		return invariant.Violationf("overfill",
			"order %d fill %s exceeds unfilled %s", o.ID, qty, o.UnfilledQuantity)
	}
	o.UnfilledQuantity = o.UnfilledQuantity.Sub(qty)
	o.UpdatedAt = ts
	return nil
}

// ReservedAmount is what the order still holds frozen: quote for a BUY
// (price * unfilled), base for a SELL (unfilled).
func (o *Order) ReservedAmount() decimal.Decimal {
	if o.Direction == Buy {
		return fpmath.Notional(o.Price, o.UnfilledQuantity)
	}
	return o.UnfilledQuantity
}

// FilledQuantity returns quantity - unfilled.
func (o *Order) FilledQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.UnfilledQuantity)
}

// Snapshot returns a copy safe to hand to readers.
func (o *Order) Snapshot() Order {
	return *o
}
