package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"MatchCore/internal/core"
	"MatchCore/internal/matching"
	"MatchCore/internal/observability"
)

// OutboundPublisher publishes processed event results to NATS for downstream consumers.
// Subjects follow the pattern: match.results.{market}
type OutboundPublisher struct {
	js        jetstream.JetStream
	market    string
	inputChan <-chan core.Output
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// PublishableEvent is the outbound JSON form of one event result.
type PublishableEvent struct {
	Sequence  int64          `json:"sequence"`
	Market    string         `json:"market"`
	EventType string         `json:"event_type"`
	Status    string         `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	OrderID   int64          `json:"order_id,omitempty"`
	Order     *OrderMessage  `json:"order,omitempty"`
	Trades    []TradeMessage `json:"trades,omitempty"`
	StateHash string         `json:"state_hash"`
	Timestamp int64          `json:"timestamp_us"`
}

// OrderMessage is the outbound form of an order snapshot.
type OrderMessage struct {
	OrderID          int64  `json:"order_id"`
	UserID           int64  `json:"user_id"`
	Direction        string `json:"direction"`
	Price            string `json:"price"`
	Quantity         string `json:"quantity"`
	UnfilledQuantity string `json:"unfilled_quantity"`
	Status           string `json:"status"`
}

// TradeMessage is the outbound form of one trade. Also the Kafka trade tape value.
type TradeMessage struct {
	TradeID        string `json:"trade_id"`
	Sequence       int64  `json:"sequence"`
	Market         string `json:"market"`
	Price          string `json:"price"`
	Quantity       string `json:"quantity"`
	TakerOrderID   int64  `json:"taker_order_id"`
	MakerOrderID   int64  `json:"maker_order_id"`
	TakerUserID    int64  `json:"taker_user_id"`
	MakerUserID    int64  `json:"maker_user_id"`
	TakerDirection string `json:"taker_direction"`
	Timestamp      int64  `json:"timestamp_us"`
}

// NewTradeMessage converts a trade to its wire form.
func NewTradeMessage(market string, t matching.Trade) TradeMessage {
	return TradeMessage{
		TradeID:        t.TradeID.String(),
		Sequence:       t.Sequence,
		Market:         market,
		Price:          t.Price.String(),
		Quantity:       t.Quantity.String(),
		TakerOrderID:   t.TakerOrderID,
		MakerOrderID:   t.MakerOrderID,
		TakerUserID:    t.TakerUserID,
		MakerUserID:    t.MakerUserID,
		TakerDirection: t.TakerDirection.String(),
		Timestamp:      t.Timestamp,
	}
}

// ToPublishable converts an engine output to its outbound form.
func ToPublishable(market string, out core.Output) PublishableEvent {
	res := out.Result
	evt := PublishableEvent{
		Sequence:  out.Envelope.Sequence,
		Market:    market,
		EventType: out.Envelope.EventType.String(),
		Status:    res.Status.String(),
		Reason:    string(res.Reason),
		OrderID:   res.OrderID,
		StateHash: hex.EncodeToString(out.Envelope.StateHash[:]),
		Timestamp: out.Envelope.Timestamp,
	}
	if res.Order != nil {
		evt.Order = &OrderMessage{
			OrderID:          res.Order.ID,
			UserID:           res.Order.UserID,
			Direction:        res.Order.Direction.String(),
			Price:            res.Order.Price.String(),
			Quantity:         res.Order.Quantity.String(),
			UnfilledQuantity: res.Order.UnfilledQuantity.String(),
			Status:           res.Order.Status().String(),
		}
	}
	for _, t := range res.Trades {
		evt.Trades = append(evt.Trades, NewTradeMessage(market, t))
	}
	return evt
}

func NewOutboundPublisher(
	js jetstream.JetStream,
	market string,
	inputChan <-chan core.Output,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		market:    market,
		inputChan: inputChan,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, out); err != nil {
				// Non-fatal: downstream consumers can query persisted results directly
				op.logger.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
				if op.metrics != nil {
					op.metrics.PublishErrors.WithLabelValues("nats").Inc()
				}
				continue
			}
			if op.metrics != nil {
				op.metrics.PublishedMessages.WithLabelValues("nats").Inc()
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out core.Output) error {
	data, err := json.Marshal(ToPublishable(op.market, out))
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	subject := fmt.Sprintf("match.results.%s", op.market)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// FanOut copies every output from in to each of outs without blocking:
// a full subscriber drops the output.
func FanOut(ctx context.Context, in <-chan core.Output, metrics *observability.Metrics, outs ...chan<- core.Output) {
	defer func() {
		for _, o := range outs {
			close(o)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-in:
			if !ok {
				return
			}
			for _, o := range outs {
				select {
				case o <- out:
				default:
					if metrics != nil {
						metrics.PublishDrops.Inc()
					}
				}
			}
		}
	}
}
