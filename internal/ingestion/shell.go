package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"MatchCore/internal/core"
	"MatchCore/internal/event"
	"MatchCore/internal/observability"
)

// Applier is the engine surface the shell drives.
type Applier interface {
	ProcessEvent(evt event.Event) (*core.Result, error)
	LastSequence() int64
}

// EventLog durably records inbound payloads before they are applied.
type EventLog interface {
	Append(sequence int64, data []byte) error
}

// Shell sits between the stream and the core: it parses, drops redelivered
// sequences, logs the payload, applies it, then acknowledges.
type Shell struct {
	engine  Applier
	log     EventLog
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewShell(engine Applier, log EventLog, logger zerolog.Logger, metrics *observability.Metrics) *Shell {
	return &Shell{
		engine:  engine,
		log:     log,
		logger:  logger,
		metrics: metrics,
	}
}

// Handle processes one raw event. A returned error is fatal for the shell:
// the event log failed or the core halted.
func (s *Shell) Handle(raw RawEvent) error {
	evt, err := ParseRawEvent(raw)
	if err != nil {
		s.logger.Error().Err(err).Str("subject", raw.Subject).Msg("dropping malformed event")
		s.count("malformed")
		call(raw.TermFunc)
		return nil
	}

	seq := evt.SourceSequence()
	if seq <= s.engine.LastSequence() {
		// Redelivery of an event already applied (or replayed from the log).
		s.count("duplicate")
		if s.metrics != nil {
			s.metrics.IngestDuplicates.Inc()
		}
		call(raw.AckFunc)
		return nil
	}

	if s.log != nil {
		if err := s.log.Append(seq, raw.Data); err != nil {
			call(raw.NakFunc)
			return fmt.Errorf("event log append seq=%d: %w", seq, err)
		}
		if s.metrics != nil {
			s.metrics.EventLogAppends.Inc()
		}
	}

	if _, err := s.engine.ProcessEvent(evt); err != nil {
		return err
	}
	call(raw.AckFunc)
	s.count("applied")

	if s.metrics != nil && !raw.Timestamp.IsZero() {
		s.metrics.IngestToApply.WithLabelValues(evt.EventType().String()).Observe(time.Since(raw.Timestamp).Seconds())
	}
	return nil
}

// Run handles events from in until ctx is done, in is closed, or Handle fails.
func (s *Shell) Run(ctx context.Context, in <-chan RawEvent) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-in:
			if !ok {
				return nil
			}
			if err := s.Handle(raw); err != nil {
				if errors.Is(err, core.ErrHalted) {
					s.logger.Error().Err(err).Msg("core halted, ingestion stopped")
				}
				return err
			}
		}
	}
}

func (s *Shell) count(outcome string) {
	if s.metrics != nil {
		s.metrics.IngestMessages.WithLabelValues(outcome).Inc()
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
