package event

import (
	"github.com/shopspring/decimal"

	"MatchCore/internal/order"
)

// OrderRequest places a limit order.
type OrderRequest struct {
	Sequence  int64
	CreatedAt int64
	UserID    int64
	Direction order.Direction
	Price     decimal.Decimal
	Quantity  decimal.Decimal
}

func (e *OrderRequest) EventType() EventType {
	return EventTypeOrderRequest
}

func (e *OrderRequest) SourceSequence() int64 {
	return e.Sequence
}

func (e *OrderRequest) EventTime() int64 {
	return e.CreatedAt
}

func (*OrderRequest) isEvent() {}

// OrderCancel withdraws an open order owned by UserID.
type OrderCancel struct {
	Sequence  int64
	CreatedAt int64
	UserID    int64
	OrderID   int64
}

func (e *OrderCancel) EventType() EventType {
	return EventTypeOrderCancel
}

func (e *OrderCancel) SourceSequence() int64 {
	return e.Sequence
}

func (e *OrderCancel) EventTime() int64 {
	return e.CreatedAt
}

func (*OrderCancel) isEvent() {}
