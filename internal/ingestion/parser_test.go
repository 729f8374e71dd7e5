package ingestion_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"MatchCore/internal/event"
	"MatchCore/internal/ingestion"
	"MatchCore/internal/order"
	"MatchCore/internal/testutil"
)

func rawFromJSON(data string) ingestion.RawEvent {
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      []byte(data),
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
		TermFunc:  func() {},
	}
}

func TestParseOrderRequest(t *testing.T) {
	raw := rawFromJSON(`{"type":"order_request","sequence_id":42,"created_at_us":1700000000000000,
		"user_id":7,"direction":"BUY","price":"50000.25","quantity":"0.015"}`)

	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	or, ok := evt.(*event.OrderRequest)
	if !ok {
		t.Fatalf("expected *event.OrderRequest, got %T", evt)
	}
	if or.Sequence != 42 {
		t.Errorf("sequence: got %d, want 42", or.Sequence)
	}
	if or.CreatedAt != 1700000000000000 {
		t.Errorf("created_at: got %d", or.CreatedAt)
	}
	if or.Direction != order.Buy {
		t.Errorf("direction: got %s, want BUY", or.Direction)
	}
	if !or.Price.Equal(decimal.RequireFromString("50000.25")) {
		t.Errorf("price: got %s", or.Price)
	}
	if !or.Quantity.Equal(decimal.RequireFromString("0.015")) {
		t.Errorf("quantity: got %s", or.Quantity)
	}
}

func TestParseOrderCancel(t *testing.T) {
	evt, err := ingestion.ParseEvent([]byte(`{"type":"order_cancel","sequence_id":3,"user_id":7,"order_id":11}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	oc, ok := evt.(*event.OrderCancel)
	if !ok {
		t.Fatalf("expected *event.OrderCancel, got %T", evt)
	}
	if oc.OrderID != 11 || oc.UserID != 7 {
		t.Errorf("got order=%d user=%d", oc.OrderID, oc.UserID)
	}
}

func TestParseTransfer_Deposit(t *testing.T) {
	evt, err := ingestion.ParseEvent([]byte(`{"type":"transfer","sequence_id":1,"to_user_id":7,"asset":"USD","amount":"100"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tr, ok := evt.(*event.Transfer)
	if !ok {
		t.Fatalf("expected *event.Transfer, got %T", evt)
	}
	if !tr.IsDeposit() {
		t.Error("from_user_id omitted should be a deposit")
	}
	if tr.Asset != "USD" {
		t.Errorf("asset: got %s", tr.Asset)
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"unknown type", `{"type":"liquidate","sequence_id":1}`},
		{"missing sequence", `{"type":"order_cancel","order_id":1}`},
		{"bad direction", `{"type":"order_request","sequence_id":1,"direction":"HOLD","price":"1","quantity":"1"}`},
		{"bad price", `{"type":"order_request","sequence_id":1,"direction":"SELL","price":"abc","quantity":"1"}`},
		{"missing amount", `{"type":"transfer","sequence_id":1,"to_user_id":1,"asset":"USD"}`},
		{"excess precision", `{"type":"order_request","sequence_id":1,"direction":"BUY","price":"1.000000001","quantity":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingestion.ParseEvent([]byte(tt.data))
			if !errors.Is(err, ingestion.ErrMalformedEvent) {
				t.Errorf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestEncodeEvent_RoundTripsThroughParser(t *testing.T) {
	in := &event.OrderRequest{
		Sequence:  9,
		CreatedAt: 123,
		UserID:    4,
		Direction: order.Sell,
		Price:     decimal.RequireFromString("101.5"),
		Quantity:  decimal.RequireFromString("2"),
	}

	data, err := ingestion.EncodeEvent(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := ingestion.ParseEvent(data)
	if err != nil {
		t.Fatal(err)
	}

	or := out.(*event.OrderRequest)
	if or.Direction != order.Sell || !or.Price.Equal(in.Price) || or.Sequence != 9 {
		t.Errorf("got %+v", or)
	}
}

func TestEncodeEvent_WireFormat(t *testing.T) {
	d := decimal.RequireFromString
	events := []event.Event{
		&event.Transfer{Sequence: 1, CreatedAt: 100, ToUserID: 7, Asset: "USD", Amount: d("1000")},
		&event.OrderRequest{Sequence: 2, CreatedAt: 200, UserID: 7, Direction: order.Buy, Price: d("101.5"), Quantity: d("0.25")},
		&event.OrderCancel{Sequence: 3, CreatedAt: 300, UserID: 7, OrderID: 1},
		&event.Transfer{Sequence: 4, CreatedAt: 400, FromUserID: 7, Asset: "USD", Amount: d("500")},
	}

	var buf bytes.Buffer
	for _, evt := range events {
		data, err := ingestion.EncodeEvent(evt)
		if err != nil {
			t.Fatal(err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	testutil.AssertGolden(t, "wire_events.golden", buf.Bytes())
}
