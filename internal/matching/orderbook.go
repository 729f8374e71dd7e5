package matching

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"MatchCore/internal/order"
)

// bookDegree is the B-tree node width used for both sides.
const bookDegree = 32

// OrderKey is the priority key of a resting order.
type OrderKey struct {
	SequenceID int64
	Price      decimal.Decimal
}

func keyOf(o *order.Order) OrderKey {
	return OrderKey{SequenceID: o.SequenceID, Price: o.Price}
}

// SortBuy orders bids best first: price descending, then arrival.
func SortBuy(a, b OrderKey) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.SequenceID < b.SequenceID
}

// SortSell orders asks best first: price ascending, then arrival.
func SortSell(a, b OrderKey) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.SequenceID < b.SequenceID
}

// OrderBook is one side of the market, ordered by matching priority.
// Every resting order has unfilled quantity > 0.
type OrderBook struct {
	tree *btree.BTreeG[*order.Order]
}

func NewOrderBook(dir order.Direction) *OrderBook {
	less := SortSell
	if dir == order.Buy {
		less = SortBuy
	}
	return &OrderBook{
		tree: btree.NewG(bookDegree, func(a, b *order.Order) bool {
			return less(keyOf(a), keyOf(b))
		}),
	}
}

// First returns the best-priority order.
func (b *OrderBook) First() (*order.Order, bool) {
	return b.tree.Min()
}

// Add inserts o. Returns false if an order with the same key already rests.
func (b *OrderBook) Add(o *order.Order) bool {
	if b.tree.Has(o) {
		return false
	}
	b.tree.ReplaceOrInsert(o)
	return true
}

// Remove deletes o. Returns false if it was not in the book.
func (b *OrderBook) Remove(o *order.Order) bool {
	_, ok := b.tree.Delete(o)
	return ok
}

func (b *OrderBook) Len() int {
	return b.tree.Len()
}

// Ascend visits orders in priority order until fn returns false.
func (b *OrderBook) Ascend(fn func(o *order.Order) bool) {
	b.tree.Ascend(fn)
}

// PriceLevel aggregates the resting quantity at one price.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Orders   int
}

// Depth returns up to maxLevels aggregated price levels, best first.
// maxLevels <= 0 returns every level.
func (b *OrderBook) Depth(maxLevels int) []PriceLevel {
	var levels []PriceLevel
	b.tree.Ascend(func(o *order.Order) bool {
		n := len(levels)
		if n > 0 && levels[n-1].Price.Equal(o.Price) {
			levels[n-1].Quantity = levels[n-1].Quantity.Add(o.UnfilledQuantity)
			levels[n-1].Orders++
			return true
		}
		if maxLevels > 0 && n == maxLevels {
			return false
		}
		levels = append(levels, PriceLevel{Price: o.Price, Quantity: o.UnfilledQuantity, Orders: 1})
		return true
	})
	return levels
}
