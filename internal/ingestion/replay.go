package ingestion

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"MatchCore/internal/observability"
)

// Replayer iterates a durable event log in sequence order.
type Replayer interface {
	Replay(after int64, fn func(seq int64, data []byte) error) error
}

// ReplayLog feeds every logged event after the engine's last sequence into
// the engine. The log only holds payloads that parsed when they were
// appended, so a parse failure here means the log is corrupt and is fatal.
func ReplayLog(log Replayer, engine Applier, logger zerolog.Logger, metrics *observability.Metrics) (int64, error) {
	start := time.Now()
	var n int64

	err := log.Replay(engine.LastSequence(), func(seq int64, data []byte) error {
		evt, err := ParseEvent(data)
		if err != nil {
			return fmt.Errorf("replay seq=%d: %w", seq, err)
		}
		if evt.SourceSequence() != seq {
			return fmt.Errorf("replay seq=%d: payload carries sequence %d", seq, evt.SourceSequence())
		}
		if _, err := engine.ProcessEvent(evt); err != nil {
			return fmt.Errorf("replay seq=%d: %w", seq, err)
		}
		n++
		return nil
	})

	if metrics != nil {
		metrics.ReplayEventsTotal.Add(float64(n))
		metrics.ReplayDuration.Set(time.Since(start).Seconds())
	}
	if err != nil {
		return n, err
	}

	logger.Info().
		Int64("events", n).
		Int64("last_sequence", engine.LastSequence()).
		Dur("took", time.Since(start)).
		Msg("event log replayed")
	return n, nil
}
