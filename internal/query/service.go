package query

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"MatchCore/internal/core"
	"MatchCore/internal/ledger"
	"MatchCore/internal/matching"
	"MatchCore/internal/order"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("history store not configured")
)

const (
	DefaultDepthLevels = 20
	MaxDepthLevels     = 500
	DefaultPageSize    = 100
	MaxPageSize        = 1000
)

// StateReader is the read side of the trading engine.
type StateReader interface {
	GetOrder(orderID int64) (order.Order, bool)
	GetUserOrders(userID int64) []order.Order
	GetUserAssets(userID int64) []ledger.UserAsset
	Depth(maxLevels int) (bids, asks []matching.PriceLevel)
	MarketPrice() decimal.Decimal
	LastSequence() int64
	StateHash() [32]byte
	Halted() error
	OpenOrderCount() int
	Config() core.Config
}

// QueryService serves live state from the engine and history from Postgres.
// Live responses carry as_of_sequence, read before the state itself, so the
// data is at least that fresh.
type QueryService struct {
	state StateReader
	db    *sql.DB // optional
}

func NewQueryService(state StateReader, db *sql.DB) *QueryService {
	return &QueryService{state: state, db: db}
}

// GetOrder returns one open order. Filled and cancelled orders leave the
// registry and are served from history instead.
func (qs *QueryService) GetOrder(ctx context.Context, orderID int64) (*OrderResponse, error) {
	asOf := qs.state.LastSequence()
	o, ok := qs.state.GetOrder(orderID)
	if !ok {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	resp := orderResponse(o, asOf)
	return &resp, nil
}

// GetUserOrders returns the user's open orders, ordered by id.
func (qs *QueryService) GetUserOrders(ctx context.Context, userID int64) ([]OrderResponse, error) {
	asOf := qs.state.LastSequence()
	orders := qs.state.GetUserOrders(userID)
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse(o, asOf))
	}
	return out, nil
}

// GetBalances returns every account the user holds, ordered by asset.
func (qs *QueryService) GetBalances(ctx context.Context, userID int64) ([]BalanceResponse, error) {
	asOf := qs.state.LastSequence()
	assets := qs.state.GetUserAssets(userID)
	out := make([]BalanceResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, BalanceResponse{
			UserID:       userID,
			Asset:        a.Key.AssetID.String(),
			Available:    a.Available.String(),
			Frozen:       a.Frozen.String(),
			Total:        a.Total().String(),
			AsOfSequence: asOf,
		})
	}
	return out, nil
}

// GetDepth returns up to levels aggregated price levels per side.
func (qs *QueryService) GetDepth(ctx context.Context, levels int) (*DepthResponse, error) {
	levels = clamp(levels, DefaultDepthLevels, MaxDepthLevels)
	asOf := qs.state.LastSequence()
	bids, asks := qs.state.Depth(levels)
	return &DepthResponse{
		Market:       qs.state.Config().Market,
		Bids:         levelResponses(bids),
		Asks:         levelResponses(asks),
		AsOfSequence: asOf,
	}, nil
}

// GetMarket returns the engine summary.
func (qs *QueryService) GetMarket(ctx context.Context) (*MarketResponse, error) {
	cfg := qs.state.Config()
	hash := qs.state.StateHash()
	return &MarketResponse{
		Market:       cfg.Market,
		BaseAsset:    cfg.BaseAsset,
		QuoteAsset:   cfg.QuoteAsset,
		MarketPrice:  qs.state.MarketPrice().String(),
		OpenOrders:   qs.state.OpenOrderCount(),
		LastSequence: qs.state.LastSequence(),
		StateHash:    hex.EncodeToString(hash[:]),
		Halted:       qs.state.Halted() != nil,
	}, nil
}

// GetTrades returns persisted trades, newest first, strictly before
// beforeSequence when it is set.
func (qs *QueryService) GetTrades(ctx context.Context, limit int, beforeSequence *int64) ([]TradeResponse, error) {
	if qs.db == nil {
		return nil, ErrUnavailable
	}

	query := `
		SELECT trade_id, sequence, price::TEXT, quantity::TEXT,
		       taker_order_id, maker_order_id, taker_direction, timestamp
		FROM event_log.trades
		WHERE market = $1
	`
	args := []any{qs.state.Config().Market}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}
	query += " ORDER BY sequence DESC, trade_id"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, clamp(limit, DefaultPageSize, MaxPageSize))

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeResponse
	for rows.Next() {
		var t TradeResponse
		var ts time.Time
		if err := rows.Scan(
			&t.TradeID, &t.Sequence, &t.Price, &t.Quantity,
			&t.TakerOrderID, &t.MakerOrderID, &t.TakerDirection, &ts,
		); err != nil {
			return nil, err
		}
		t.Timestamp = ts.UnixMicro()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetJournalHistory returns journal entries touching the user, newest first.
func (qs *QueryService) GetJournalHistory(ctx context.Context, userID int64, limit int, beforeSequence *int64) ([]JournalHistoryEntry, error) {
	if qs.db == nil {
		return nil, ErrUnavailable
	}

	accountPrefix := fmt.Sprintf("user:%d:%%", userID)
	query := `
		SELECT journal_id, batch_id, sequence, debit_account, credit_account,
		       asset_id, amount::TEXT, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []any{accountPrefix}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}
	query += " ORDER BY sequence DESC, journal_id"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, clamp(limit, DefaultPageSize, MaxPageSize))

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		var assetID int32
		var ts time.Time
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.Sequence, &e.DebitAccount, &e.CreditAccount,
			&assetID, &e.Amount, &e.JournalType, &ts,
		); err != nil {
			return nil, err
		}
		e.Asset = ledger.AssetID(assetID).String()
		e.Timestamp = ts.UnixMicro()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func orderResponse(o order.Order, asOf int64) OrderResponse {
	return OrderResponse{
		OrderID:          o.ID,
		SequenceID:       o.SequenceID,
		UserID:           o.UserID,
		Direction:        o.Direction.String(),
		Price:            o.Price.String(),
		Quantity:         o.Quantity.String(),
		UnfilledQuantity: o.UnfilledQuantity.String(),
		FilledQuantity:   o.FilledQuantity().String(),
		Status:           o.Status().String(),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		AsOfSequence:     asOf,
	}
}

func levelResponses(levels []matching.PriceLevel) []LevelResponse {
	out := make([]LevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, LevelResponse{
			Price:    l.Price.String(),
			Quantity: l.Quantity.String(),
			Orders:   l.Orders,
		})
	}
	return out
}

// clamp maps n <= 0 to def and caps it at max.
func clamp(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
