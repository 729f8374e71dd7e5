package core

import (
	"MatchCore/internal/event"
	"MatchCore/internal/ledger"
	"MatchCore/internal/matching"
	"MatchCore/internal/order"
)

// ResultStatus tells whether an event changed state.
type ResultStatus int8

const (
	StatusAccepted ResultStatus = iota + 1
	StatusRejected
)

func (s ResultStatus) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RejectReason classifies a business rejection. Rejected events consume
// their sequence but leave the ledger, registry and books unchanged.
type RejectReason string

const (
	RejectInsufficientFunds RejectReason = "insufficient_funds"
	RejectInvalidOrder      RejectReason = "invalid_order"
	RejectOrderNotFound     RejectReason = "order_not_found"
	RejectNotOwner          RejectReason = "not_owner"
	RejectInvalidTransfer   RejectReason = "invalid_transfer"
)

// Result is the structured outcome of one event.
type Result struct {
	Sequence  int64
	EventType event.EventType
	Status    ResultStatus
	Reason    RejectReason

	// Set for accepted order requests and cancels.
	OrderID int64
	Order   *order.Order // snapshot after the event

	Trades    []matching.Trade
	StateHash [32]byte
}

func (r *Result) Accepted() bool {
	return r.Status == StatusAccepted
}

// Output is what the engine pushes to its collaborators after each event.
type Output struct {
	Envelope *event.EventEnvelope
	Result   *Result
	Batch    *ledger.Batch

	// Post-event snapshots of every order and account the event touched.
	Orders   []OrderUpdate
	Balances []ledger.UserAsset
}

// OrderUpdate is an order snapshot plus whether this event cancelled it.
type OrderUpdate struct {
	order.Order
	Cancelled bool
}
