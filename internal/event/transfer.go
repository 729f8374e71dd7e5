package event

import "github.com/shopspring/decimal"

// Transfer moves available funds. FromUserID 0 is a deposit from the
// external boundary, ToUserID 0 a withdrawal to it.
type Transfer struct {
	Sequence   int64
	CreatedAt  int64
	FromUserID int64
	ToUserID   int64
	Asset      string
	Amount     decimal.Decimal
}

func (e *Transfer) EventType() EventType {
	return EventTypeTransfer
}

func (e *Transfer) SourceSequence() int64 {
	return e.Sequence
}

func (e *Transfer) EventTime() int64 {
	return e.CreatedAt
}

func (*Transfer) isEvent() {}

// IsDeposit reports a credit from the external boundary.
func (e *Transfer) IsDeposit() bool {
	return e.FromUserID == 0 && e.ToUserID != 0
}

// IsWithdrawal reports a debit to the external boundary.
func (e *Transfer) IsWithdrawal() bool {
	return e.ToUserID == 0 && e.FromUserID != 0
}
