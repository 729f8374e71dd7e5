package matching

import (
	"github.com/shopspring/decimal"

	"MatchCore/internal/invariant"
	"MatchCore/internal/order"
)

// MatchDetail is one maker consumed by a taker, in book priority order.
type MatchDetail struct {
	Price    decimal.Decimal // maker price
	Quantity decimal.Decimal
	Taker    *order.Order
	Maker    *order.Order
}

// SelfTrade reports whether taker and maker belong to the same user.
func (d MatchDetail) SelfTrade() bool {
	return d.Taker.UserID == d.Maker.UserID
}

// MatchResult is the outcome of one taker order. It is consumed once by
// clearing and then discarded.
type MatchResult struct {
	SequenceID int64
	Taker      *order.Order
	Details    []MatchDetail
}

// Engine holds both sides of one instrument and the last traded price.
type Engine struct {
	buyBook     *OrderBook
	sellBook    *OrderBook
	marketPrice decimal.Decimal
	sequenceID  int64
}

func NewEngine() *Engine {
	return &Engine{
		buyBook:     NewOrderBook(order.Buy),
		sellBook:    NewOrderBook(order.Sell),
		marketPrice: decimal.Zero,
	}
}

// Book returns the side holding resting orders of direction dir.
func (e *Engine) Book(dir order.Direction) *OrderBook {
	if dir == order.Buy {
		return e.buyBook
	}
	return e.sellBook
}

// ProcessOrder matches taker against the opposite book and rests any residue
// on its own side. The taker and consumed makers are mutated in place.
func (e *Engine) ProcessOrder(sequenceID int64, taker *order.Order) (*MatchResult, error) {
	e.sequenceID = sequenceID
	makerBook := e.Book(taker.Direction.Opposite())
	result := &MatchResult{SequenceID: sequenceID, Taker: taker}

	for {
		maker, ok := makerBook.First()
		if !ok {
			break
		}
		if taker.Direction == order.Buy && maker.Price.GreaterThan(taker.Price) {
			break
		}
		if taker.Direction == order.Sell && maker.Price.LessThan(taker.Price) {
			break
		}

		e.marketPrice = maker.Price
		qty := decimal.Min(taker.UnfilledQuantity, maker.UnfilledQuantity)

		if err := taker.Fill(qty, taker.CreatedAt); err != nil {
			return nil, err
		}
		if err := maker.Fill(qty, taker.CreatedAt); err != nil {
			return nil, err
		}
		result.Details = append(result.Details, MatchDetail{
			Price:    maker.Price,
			Quantity: qty,
			Taker:    taker,
			Maker:    maker,
		})

		if maker.IsFilled() && !makerBook.Remove(maker) {
			return nil, invariant.Violationf("order_not_in_book",
				"filled maker %d not found in %s book", maker.ID, maker.Direction)
		}
		if taker.IsFilled() {
			break
		}
	}

	if !taker.IsFilled() {
		if !e.Book(taker.Direction).Add(taker) {
			return nil, invariant.Violationf("duplicate_book_key",
				"order %d sequence %d already rests in %s book", taker.ID, taker.SequenceID, taker.Direction)
		}
	}

	return result, nil
}

// CancelOrder evicts a resting order from its side.
func (e *Engine) CancelOrder(o *order.Order) error {
	if !e.Book(o.Direction).Remove(o) {
		return invariant.Violationf("order_not_in_book",
			"order %d not found in %s book", o.ID, o.Direction)
	}
	return nil
}

// MarketPrice returns the last fill price (zero before the first trade).
func (e *Engine) MarketPrice() decimal.Decimal {
	return e.marketPrice
}

// SequenceID returns the sequence of the last processed taker.
func (e *Engine) SequenceID() int64 {
	return e.sequenceID
}

// Depth returns aggregated levels for both sides.
func (e *Engine) Depth(maxLevels int) (bids, asks []PriceLevel) {
	return e.buyBook.Depth(maxLevels), e.sellBook.Depth(maxLevels)
}
