package matching

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"MatchCore/internal/order"
)

var tradeNamespace = uuid.MustParse("0b6f3a51-2f7d-4c1e-8f2a-6a0c9d3e4b17")

// Trade is the immutable record of one match detail.
type Trade struct {
	TradeID        uuid.UUID
	Sequence       int64
	Index          int
	Price          decimal.Decimal
	Quantity       decimal.Decimal
	TakerOrderID   int64
	MakerOrderID   int64
	TakerUserID    int64
	MakerUserID    int64
	TakerDirection order.Direction
	Timestamp      int64
}

// TradeID derives the id of the n-th trade of a sequence; replays produce identical ids.
func TradeID(sequence int64, n int) uuid.UUID {
	return uuid.NewSHA1(tradeNamespace, []byte(fmt.Sprintf("trade:%d:%d", sequence, n)))
}

// Trades flattens the result into immutable trade records.
func (r *MatchResult) Trades() []Trade {
	trades := make([]Trade, 0, len(r.Details))
	for i, d := range r.Details {
		trades = append(trades, Trade{
			TradeID:        TradeID(r.SequenceID, i),
			Sequence:       r.SequenceID,
			Index:          i,
			Price:          d.Price,
			Quantity:       d.Quantity,
			TakerOrderID:   d.Taker.ID,
			MakerOrderID:   d.Maker.ID,
			TakerUserID:    d.Taker.UserID,
			MakerUserID:    d.Maker.UserID,
			TakerDirection: d.Taker.Direction,
			Timestamp:      d.Taker.UpdatedAt,
		})
	}
	return trades
}
