package persistence

import (
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"MatchCore/internal/core"
	"MatchCore/internal/event"
	"MatchCore/internal/observability"
	"MatchCore/internal/order"
)

// crossOutputs places a resting SELL and a crossing BUY and returns every output.
func crossOutputs(t *testing.T) []core.Output {
	t.Helper()
	out := make(chan core.Output, 16)
	e, err := core.NewTradingEngine(core.Config{Market: "BTC-USD", BaseAsset: "BTC", QuoteAsset: "USD"},
		out, nil, observability.NewLoggerTo(io.Discard, "core"), nil)
	if err != nil {
		t.Fatal(err)
	}

	d := decimal.RequireFromString
	events := []event.Event{
		&event.Transfer{Sequence: 1, CreatedAt: 1, ToUserID: 1, Asset: "BTC", Amount: d("2")},
		&event.Transfer{Sequence: 2, CreatedAt: 2, ToUserID: 2, Asset: "USD", Amount: d("1000")},
		&event.OrderRequest{Sequence: 3, CreatedAt: 3, UserID: 1, Direction: order.Sell, Price: d("100"), Quantity: d("2")},
		&event.OrderRequest{Sequence: 4, CreatedAt: 4, UserID: 2, Direction: order.Buy, Price: d("110"), Quantity: d("1")},
		&event.OrderCancel{Sequence: 5, CreatedAt: 5, UserID: 1, OrderID: 1},
	}
	for _, evt := range events {
		if _, err := e.ProcessEvent(evt); err != nil {
			t.Fatal(err)
		}
	}
	close(out)

	var outs []core.Output
	for o := range out {
		outs = append(outs, o)
	}
	if len(outs) != len(events) {
		t.Fatalf("outputs: got %d, want %d", len(outs), len(events))
	}
	return outs
}

func TestRowsFromOutput_Deposit(t *testing.T) {
	rows := RowsFromOutput("BTC-USD", crossOutputs(t)[0])

	if rows.Result.Sequence != 1 || rows.Result.Status != "accepted" || rows.Result.EventType != "transfer" {
		t.Errorf("result row: %+v", rows.Result)
	}
	if len(rows.Result.StateHash) != 64 || len(rows.Result.PrevHash) != 64 {
		t.Error("hashes should be hex encoded")
	}
	if len(rows.Journals) != 1 {
		t.Fatalf("journals: got %d, want 1", len(rows.Journals))
	}
	j := rows.Journals[0]
	if j.DebitAccount != "external:BTC:available" || j.CreditAccount != "user:1:BTC:available" {
		t.Errorf("deposit accounts: %s -> %s", j.DebitAccount, j.CreditAccount)
	}
	if j.JournalType != "deposit" || !j.Amount.Equal(decimal.NewFromInt(2)) {
		t.Errorf("journal: %+v", j)
	}
}

func TestRowsFromOutput_Trade(t *testing.T) {
	rows := RowsFromOutput("BTC-USD", crossOutputs(t)[3])

	if len(rows.Trades) != 1 {
		t.Fatalf("trades: got %d", len(rows.Trades))
	}
	tr := rows.Trades[0]
	if !tr.Price.Equal(decimal.NewFromInt(100)) || tr.TakerDirection != "BUY" || tr.Market != "BTC-USD" {
		t.Errorf("trade row: %+v", tr)
	}

	// taker (fully filled) and maker (partially filled)
	if len(rows.Orders) != 2 {
		t.Fatalf("orders: got %d, want 2", len(rows.Orders))
	}
	byID := map[int64]OrderRow{}
	for _, o := range rows.Orders {
		byID[o.OrderID] = o
		if o.Sequence != 4 {
			t.Errorf("order %d sequence: got %d", o.OrderID, o.Sequence)
		}
	}
	if byID[1].Status != order.StatusPartialFilled.String() || !byID[1].UnfilledQuantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("maker row: %+v", byID[1])
	}
	if byID[2].Status != order.StatusFullyFilled.String() {
		t.Errorf("taker row: %+v", byID[2])
	}

	// freeze, refund, two settlement legs
	var frozen, released int
	for _, j := range rows.Journals {
		switch j.JournalType {
		case "freeze":
			frozen++
			if j.CreditAccount != "user:2:USD:frozen" {
				t.Errorf("freeze credit: %s", j.CreditAccount)
			}
		case "price_improvement_refund":
			released++
			if !j.Amount.Equal(decimal.NewFromInt(10)) {
				t.Errorf("refund amount: %s", j.Amount)
			}
		}
	}
	if frozen != 1 || released != 1 {
		t.Errorf("got %d freeze and %d refund journals", frozen, released)
	}
}

func TestRowsFromOutput_Cancel(t *testing.T) {
	rows := RowsFromOutput("BTC-USD", crossOutputs(t)[4])

	if len(rows.Orders) != 1 || !rows.Orders[0].Cancelled {
		t.Fatalf("expected one cancelled order row, got %+v", rows.Orders)
	}
	if len(rows.Journals) != 1 || rows.Journals[0].DebitAccount != "user:1:BTC:frozen" {
		t.Errorf("cancel release: %+v", rows.Journals)
	}
}

func TestLatestOrders(t *testing.T) {
	rows := []OrderRow{
		{OrderID: 1, Sequence: 3},
		{OrderID: 2, Sequence: 3},
		{OrderID: 1, Sequence: 4},
	}
	got := latestOrders(rows)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].OrderID != 1 || got[0].Sequence != 4 {
		t.Errorf("order 1 should keep the later row, got %+v", got[0])
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(2, 3); got != "($1, $2, $3), ($4, $5, $6)" {
		t.Errorf("got %q", got)
	}
}
