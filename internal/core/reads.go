package core

import (
	"github.com/shopspring/decimal"

	"MatchCore/internal/invariant"
	"MatchCore/internal/ledger"
	"MatchCore/internal/matching"
	"MatchCore/internal/order"
)

// Reads take the read lock and return copies.

func (e *TradingEngine) GetOrder(orderID int64) (order.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, ok := e.orders.GetOrder(orderID)
	if !ok {
		return order.Order{}, false
	}
	return o.Snapshot(), true
}

func (e *TradingEngine) GetUserOrders(userID int64) []order.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	open := e.orders.GetUserOrders(userID)
	out := make([]order.Order, 0, len(open))
	for _, o := range open {
		out = append(out, o.Snapshot())
	}
	return out
}

// GetBalance returns the user's account; unseen accounts read as zero.
func (e *TradingEngine) GetBalance(userID int64, assetID ledger.AssetID) ledger.Asset {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, _ := e.ledger.Balance(ledger.KeyFor(userID, assetID))
	return a
}

func (e *TradingEngine) GetUserAssets(userID int64) []ledger.UserAsset {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.ledger.UserAssets(userID)
}

// Depth returns up to maxLevels aggregated levels per side, best first.
func (e *TradingEngine) Depth(maxLevels int) (bids, asks []matching.PriceLevel) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.matcher.Depth(maxLevels)
}

func (e *TradingEngine) MarketPrice() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.matcher.MarketPrice()
}

// LastSequence returns the last applied sequence (0 before the first event).
func (e *TradingEngine) LastSequence() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sequencer.LastSequence()
}

// StateHash returns the current chain tip.
func (e *TradingEngine) StateHash() [32]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.hasher.GetPrevHash()
}

// Halted returns the violation that stopped the engine, or nil.
func (e *TradingEngine) Halted() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.halted
}

func (e *TradingEngine) OpenOrderCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.orders.Len()
}

// Balances returns every account, external included, in key order.
func (e *TradingEngine) Balances() []ledger.UserAsset {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.ledger.Snapshot()
}

// CheckInvariants runs the full zero-sum check and verifies every resting
// order is registered.
func (e *TradingEngine) CheckInvariants() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.validator.ValidateGlobalBalance(); err != nil {
		return err
	}
	resting := e.matcher.Book(order.Buy).Len() + e.matcher.Book(order.Sell).Len()
	if resting != e.orders.Len() {
		return invariant.Violationf("book_registry_mismatch",
			"%d resting orders, %d registered", resting, e.orders.Len())
	}
	return nil
}

func (e *TradingEngine) Config() Config {
	return e.cfg
}

// Assets returns the base and quote asset ids.
func (e *TradingEngine) Assets() (base, quote ledger.AssetID) {
	return e.base, e.quote
}
