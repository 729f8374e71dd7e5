package persistence

import (
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"

	"MatchCore/internal/core"
	"MatchCore/internal/ledger"
)

// ResultRow represents a row in event_log.results
type ResultRow struct {
	Sequence  int64
	Market    string
	EventType string
	Status    string
	Reason    string
	OrderID   int64
	StateHash string
	PrevHash  string
	Timestamp time.Time
}

// TradeRow represents a row in event_log.trades
type TradeRow struct {
	TradeID        string
	Sequence       int64
	Market         string
	Price          decimal.Decimal
	Quantity       decimal.Decimal
	TakerOrderID   int64
	MakerOrderID   int64
	TakerUserID    int64
	MakerUserID    int64
	TakerDirection string
	Timestamp      time.Time
}

// JournalRow represents a row in event_log.journal.
// Accounts are sub-balance paths such as "user:42:USD:frozen".
type JournalRow struct {
	JournalID     string
	BatchID       string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	AssetID       int32
	Amount        decimal.Decimal
	JournalType   string
	Timestamp     time.Time
}

// OrderRow is the latest state of one order, upserted into event_log.orders.
type OrderRow struct {
	OrderID          int64
	Market           string
	UserID           int64
	Direction        string
	Price            decimal.Decimal
	Quantity         decimal.Decimal
	UnfilledQuantity decimal.Decimal
	Status           string
	Cancelled        bool
	Sequence         int64
	UpdatedAt        time.Time
}

// Rows is everything one engine output persists.
type Rows struct {
	Result   ResultRow
	Trades   []TradeRow
	Journals []JournalRow
	Orders   []OrderRow
}

// RowsFromOutput flattens an engine output into table rows.
func RowsFromOutput(market string, out core.Output) Rows {
	env := out.Envelope
	res := out.Result

	rows := Rows{
		Result: ResultRow{
			Sequence:  env.Sequence,
			Market:    market,
			EventType: env.EventType.String(),
			Status:    res.Status.String(),
			Reason:    string(res.Reason),
			OrderID:   res.OrderID,
			StateHash: hex.EncodeToString(env.StateHash[:]),
			PrevHash:  hex.EncodeToString(env.PrevHash[:]),
			Timestamp: microsToTime(env.Timestamp),
		},
	}

	for _, t := range res.Trades {
		rows.Trades = append(rows.Trades, TradeRow{
			TradeID:        t.TradeID.String(),
			Sequence:       t.Sequence,
			Market:         market,
			Price:          t.Price,
			Quantity:       t.Quantity,
			TakerOrderID:   t.TakerOrderID,
			MakerOrderID:   t.MakerOrderID,
			TakerUserID:    t.TakerUserID,
			MakerUserID:    t.MakerUserID,
			TakerDirection: t.TakerDirection.String(),
			Timestamp:      microsToTime(t.Timestamp),
		})
	}

	if out.Batch != nil {
		for _, j := range out.Batch.Journals {
			debit, credit := journalAccounts(j)
			rows.Journals = append(rows.Journals, JournalRow{
				JournalID:     j.JournalID.String(),
				BatchID:       j.BatchID.String(),
				Sequence:      j.Sequence,
				DebitAccount:  debit,
				CreditAccount: credit,
				AssetID:       int32(j.AssetID),
				Amount:        j.Amount,
				JournalType:   j.JournalType.String(),
				Timestamp:     microsToTime(j.Timestamp),
			})
		}
	}

	for _, o := range out.Orders {
		rows.Orders = append(rows.Orders, OrderRow{
			OrderID:          o.ID,
			Market:           market,
			UserID:           o.UserID,
			Direction:        o.Direction.String(),
			Price:            o.Price,
			Quantity:         o.Quantity,
			UnfilledQuantity: o.UnfilledQuantity,
			Status:           o.Status().String(),
			Cancelled:        o.Cancelled,
			Sequence:         env.Sequence,
			UpdatedAt:        microsToTime(o.UpdatedAt),
		})
	}

	return rows
}

// journalAccounts names the debited and credited sub-balances of a journal.
func journalAccounts(j ledger.Journal) (debit, credit string) {
	switch j.Kind {
	case ledger.AvailableToFrozen:
		return j.From.AccountPath() + ":available", j.To.AccountPath() + ":frozen"
	case ledger.FrozenToAvailable:
		return j.From.AccountPath() + ":frozen", j.To.AccountPath() + ":available"
	default:
		return j.From.AccountPath() + ":available", j.To.AccountPath() + ":available"
	}
}

func microsToTime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
