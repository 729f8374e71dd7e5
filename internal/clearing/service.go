package clearing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"MatchCore/internal/ledger"
	"MatchCore/internal/matching"
	fpmath "MatchCore/internal/math"
	"MatchCore/internal/order"
)

// Service turns match results and cancellations into ledger movements and
// registry removals. Every transfer it makes moves funds that were frozen
// when the order was created, so any failure is an invariant violation.
type Service struct {
	ledger *ledger.AssetLedger
	orders *order.Registry
	base   ledger.AssetID
	quote  ledger.AssetID
}

func NewService(l *ledger.AssetLedger, orders *order.Registry, base, quote ledger.AssetID) *Service {
	return &Service{
		ledger: l,
		orders: orders,
		base:   base,
		quote:  quote,
	}
}

// ClearMatchResult settles every detail of result, then drops filled orders
// from the registry.
func (s *Service) ClearMatchResult(result *matching.MatchResult) error {
	taker := result.Taker

	for i, d := range result.Details {
		maker := d.Maker
		quoteAmount := fpmath.Notional(d.Price, d.Quantity)

		switch taker.Direction {
		case order.Buy:
			refund := fpmath.PriceImprovement(taker.Price, d.Price, d.Quantity)
			if refund.IsPositive() {
				if err := s.ledger.Unfreeze(taker.UserID, s.quote, refund, ledger.JournalTypePriceImprovementRefund); err != nil {
					return fmt.Errorf("detail %d refund: %w", i, err)
				}
			}
			if err := s.settle(taker.UserID, maker.UserID, s.quote, quoteAmount); err != nil {
				return fmt.Errorf("detail %d quote leg: %w", i, err)
			}
			if err := s.settle(maker.UserID, taker.UserID, s.base, d.Quantity); err != nil {
				return fmt.Errorf("detail %d base leg: %w", i, err)
			}
		case order.Sell:
			if err := s.settle(taker.UserID, maker.UserID, s.base, d.Quantity); err != nil {
				return fmt.Errorf("detail %d base leg: %w", i, err)
			}
			if err := s.settle(maker.UserID, taker.UserID, s.quote, quoteAmount); err != nil {
				return fmt.Errorf("detail %d quote leg: %w", i, err)
			}
		}

		if maker.IsFilled() {
			if err := s.orders.RemoveOrder(maker.ID); err != nil {
				return err
			}
		}
	}

	if taker.IsFilled() {
		if err := s.orders.RemoveOrder(taker.ID); err != nil {
			return err
		}
	}
	return nil
}

// settle moves amount out of from's frozen balance into to's available balance.
func (s *Service) settle(from, to int64, asset ledger.AssetID, amount decimal.Decimal) error {
	return s.ledger.Transfer(ledger.FrozenToAvailable, from, to, asset, amount, ledger.JournalTypeTradeSettlement)
}

// ClearCancelOrder releases what o still holds frozen and drops it from the registry.
func (s *Service) ClearCancelOrder(o *order.Order) error {
	asset := s.base
	if o.Direction == order.Buy {
		asset = s.quote
	}
	if err := s.ledger.Unfreeze(o.UserID, asset, o.ReservedAmount(), ledger.JournalTypeCancelRelease); err != nil {
		return fmt.Errorf("cancel order %d: %w", o.ID, err)
	}
	return s.orders.RemoveOrder(o.ID)
}

// Reservation returns the asset and amount a new order must freeze:
// quote price * quantity for a BUY, base quantity for a SELL.
func (s *Service) Reservation(dir order.Direction, price, quantity decimal.Decimal) (ledger.AssetID, decimal.Decimal) {
	if dir == order.Buy {
		return s.quote, fpmath.Notional(price, quantity)
	}
	return s.base, quantity
}
