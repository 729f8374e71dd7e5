package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"MatchCore/internal/event"
	fpmath "MatchCore/internal/math"
	"MatchCore/internal/order"
)

// ErrMalformedEvent marks payloads the shell cannot turn into a typed event.
// They are terminated on the stream and never reach the core.
var ErrMalformedEvent = errors.New("malformed event")

// Wire type discriminators.
const (
	TypeOrderRequest = "order_request"
	TypeOrderCancel  = "order_cancel"
	TypeTransfer     = "transfer"
)

// --- JSON wire format ---
// One flat object per event. Field names use snake_case to match upstream
// producers; decimals travel as strings so no precision is lost.

type eventJSON struct {
	Type        string `json:"type"`
	SequenceID  int64  `json:"sequence_id"`
	CreatedAtUs int64  `json:"created_at_us"`

	// order_request / order_cancel
	UserID    int64  `json:"user_id,omitempty"`
	Direction string `json:"direction,omitempty"`
	Price     string `json:"price,omitempty"`
	Quantity  string `json:"quantity,omitempty"`
	OrderID   int64  `json:"order_id,omitempty"`

	// transfer
	FromUserID int64  `json:"from_user_id,omitempty"`
	ToUserID   int64  `json:"to_user_id,omitempty"`
	Asset      string `json:"asset,omitempty"`
	Amount     string `json:"amount,omitempty"`
}

// ParseRawEvent converts a RawEvent into a typed event.Event.
// The ingestion shell validates and converts raw events before sending them
// to the deterministic core. Business validation (precision, funds) is left
// to the core so that it is replayed deterministically.
func ParseRawEvent(raw RawEvent) (event.Event, error) {
	return ParseEvent(raw.Data)
}

// ParseEvent decodes one wire payload.
func ParseEvent(data []byte) (event.Event, error) {
	var j eventJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if j.SequenceID <= 0 {
		return nil, fmt.Errorf("%w: sequence_id must be positive, got %d", ErrMalformedEvent, j.SequenceID)
	}

	switch j.Type {
	case TypeOrderRequest:
		return parseOrderRequest(j)
	case TypeOrderCancel:
		return &event.OrderCancel{
			Sequence:  j.SequenceID,
			CreatedAt: j.CreatedAtUs,
			UserID:    j.UserID,
			OrderID:   j.OrderID,
		}, nil
	case TypeTransfer:
		amount, err := parseDecimal("amount", j.Amount, fpmath.QuantityConfig)
		if err != nil {
			return nil, err
		}
		return &event.Transfer{
			Sequence:   j.SequenceID,
			CreatedAt:  j.CreatedAtUs,
			FromUserID: j.FromUserID,
			ToUserID:   j.ToUserID,
			Asset:      j.Asset,
			Amount:     amount,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, j.Type)
	}
}

func parseOrderRequest(j eventJSON) (*event.OrderRequest, error) {
	dir, err := order.ParseDirection(j.Direction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	price, err := parseDecimal("price", j.Price, fpmath.PriceConfig)
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimal("quantity", j.Quantity, fpmath.QuantityConfig)
	if err != nil {
		return nil, err
	}

	return &event.OrderRequest{
		Sequence:  j.SequenceID,
		CreatedAt: j.CreatedAtUs,
		UserID:    j.UserID,
		Direction: dir,
		Price:     price,
		Quantity:  qty,
	}, nil
}

// parseDecimal rejects values the core could never represent, so they are
// terminated at the shell instead of consuming a sequence.
func parseDecimal(field, s string, cfg fpmath.DecimalConfig) (decimal.Decimal, error) {
	d, err := fpmath.ParseFixed(s, cfg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrMalformedEvent, field, err)
	}
	return d, nil
}

// EncodeEvent renders evt in the wire format. Used by tools and tests that
// produce inbound traffic.
func EncodeEvent(evt event.Event) ([]byte, error) {
	j := eventJSON{
		SequenceID:  evt.SourceSequence(),
		CreatedAtUs: evt.EventTime(),
	}

	switch e := evt.(type) {
	case *event.OrderRequest:
		j.Type = TypeOrderRequest
		j.UserID = e.UserID
		j.Direction = e.Direction.String()
		j.Price = e.Price.String()
		j.Quantity = e.Quantity.String()
	case *event.OrderCancel:
		j.Type = TypeOrderCancel
		j.UserID = e.UserID
		j.OrderID = e.OrderID
	case *event.Transfer:
		j.Type = TypeTransfer
		j.FromUserID = e.FromUserID
		j.ToUserID = e.ToUserID
		j.Asset = e.Asset
		j.Amount = e.Amount.String()
	default:
		return nil, fmt.Errorf("unsupported event type %T", evt)
	}

	return json.Marshal(j)
}
