package query

// OrderResponse is one order as served by the query API.
type OrderResponse struct {
	OrderID          int64  `json:"order_id"`
	SequenceID       int64  `json:"sequence_id"`
	UserID           int64  `json:"user_id"`
	Direction        string `json:"direction"`
	Price            string `json:"price"`
	Quantity         string `json:"quantity"`
	UnfilledQuantity string `json:"unfilled_quantity"`
	FilledQuantity   string `json:"filled_quantity"`
	Status           string `json:"status"`
	CreatedAt        int64  `json:"created_at_us"`
	UpdatedAt        int64  `json:"updated_at_us"`
	AsOfSequence     int64  `json:"as_of_sequence"`
}

// BalanceResponse is one user account.
// Total is available + frozen; frozen backs the user's open orders.
type BalanceResponse struct {
	UserID       int64  `json:"user_id"`
	Asset        string `json:"asset"`
	Available    string `json:"available"`
	Frozen       string `json:"frozen"`
	Total        string `json:"total"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// LevelResponse is one aggregated price level.
type LevelResponse struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Orders   int    `json:"orders"`
}

// DepthResponse is the aggregated book, best levels first.
type DepthResponse struct {
	Market       string          `json:"market"`
	Bids         []LevelResponse `json:"bids"`
	Asks         []LevelResponse `json:"asks"`
	AsOfSequence int64           `json:"as_of_sequence"`
}

// MarketResponse summarizes the engine state.
type MarketResponse struct {
	Market       string `json:"market"`
	BaseAsset    string `json:"base_asset"`
	QuoteAsset   string `json:"quote_asset"`
	MarketPrice  string `json:"market_price"`
	OpenOrders   int    `json:"open_orders"`
	LastSequence int64  `json:"last_sequence"`
	StateHash    string `json:"state_hash"`
	Halted       bool   `json:"halted"`
}

// TradeResponse is one persisted trade.
type TradeResponse struct {
	TradeID        string `json:"trade_id"`
	Sequence       int64  `json:"sequence"`
	Price          string `json:"price"`
	Quantity       string `json:"quantity"`
	TakerOrderID   int64  `json:"taker_order_id"`
	MakerOrderID   int64  `json:"maker_order_id"`
	TakerDirection string `json:"taker_direction"`
	Timestamp      int64  `json:"timestamp_us"`
}

// JournalHistoryEntry is one persisted journal touching a user.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	JournalType   string `json:"journal_type"`
	Timestamp     int64  `json:"timestamp_us"`
}
