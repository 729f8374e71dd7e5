package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"MatchCore/internal/core"
	"MatchCore/internal/observability"
)

// TradePublisher writes the trade tape to Kafka, one message per trade,
// keyed by market so a partition preserves trade order.
type TradePublisher struct {
	writer    *kafka.Writer
	market    string
	inputChan <-chan core.Output
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewTradePublisher(
	brokers []string,
	topic string,
	market string,
	inputChan <-chan core.Output,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *TradePublisher {
	return &TradePublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		market:    market,
		inputChan: inputChan,
		logger:    logger,
		metrics:   metrics,
	}
}

// TradeMessages renders the Kafka messages for one output. Outputs without
// trades produce none.
func TradeMessages(market string, out core.Output) ([]kafka.Message, error) {
	trades := out.Result.Trades
	if len(trades) == 0 {
		return nil, nil
	}

	msgs := make([]kafka.Message, 0, len(trades))
	for _, t := range trades {
		value, err := json.Marshal(NewTradeMessage(market, t))
		if err != nil {
			return nil, fmt.Errorf("marshal trade %s: %w", t.TradeID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(market),
			Value: value,
			Headers: []kafka.Header{
				{Key: "trade_id", Value: []byte(t.TradeID.String())},
			},
		})
	}
	return msgs, nil
}

// Run starts the trade tape loop.
func (p *TradePublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-p.inputChan:
			if !ok {
				return nil
			}

			msgs, err := TradeMessages(p.market, out)
			if err != nil || len(msgs) == 0 {
				continue
			}

			if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
				// Non-fatal: the tape can be rebuilt from persisted trades
				p.logger.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("trade tape write failed")
				if p.metrics != nil {
					p.metrics.PublishErrors.WithLabelValues("kafka").Inc()
				}
				continue
			}
			if p.metrics != nil {
				p.metrics.PublishedMessages.WithLabelValues("kafka").Add(float64(len(msgs)))
			}
		}
	}
}

func (p *TradePublisher) Close() error {
	return p.writer.Close()
}
