package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"MatchCore/internal/core"
	"MatchCore/internal/observability"
)

// Worker drains the persist channel and batch-writes to Postgres.
// It runs independently from the deterministic core. The core sends on the
// persist channel with backpressure, so if this worker falls behind the
// core stalls and no output is lost.
type Worker struct {
	writer       rowWriter
	market       string
	inputChan    <-chan core.Output
	batchSize    int
	flushTimeout time.Duration
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

type rowWriter interface {
	WriteRows(ctx context.Context, batch []Rows) error
}

// finalFlushTimeout bounds the last write attempted after ctx is cancelled.
const finalFlushTimeout = 5 * time.Second

func NewWorker(
	db *sql.DB,
	market string,
	inputChan <-chan core.Output,
	batchSize int,
	flushTimeout time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewWriter(db),
		market:       market,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Run batches incoming outputs and flushes either when the batch is full or
// the flush timeout expires. Blocks until ctx is cancelled or the input closes.
func (pw *Worker) Run(ctx context.Context) error {
	batch := make([]Rows, 0, pw.batchSize)

	timer := time.NewTimer(pw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := pw.finalFlush(batch); err != nil {
					pw.logger.Error().Err(err).Int("rows", len(batch)).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case out, ok := <-pw.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := pw.flushWithRetry(ctx, batch); err != nil {
						pw.logger.Error().Err(err).Int("rows", len(batch)).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, RowsFromOutput(pw.market, out))

			if len(batch) >= pw.batchSize {
				if err := pw.flushWithRetry(ctx, batch); err != nil {
					pw.logger.Error().Err(err).Msg("batch flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(pw.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := pw.flushWithRetry(ctx, batch); err != nil {
					pw.logger.Error().Err(err).Msg("timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(pw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds
// or ctx is cancelled, in which case one final bounded attempt is made.
func (pw *Worker) flushWithRetry(ctx context.Context, batch []Rows) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			pw.logger.Warn().Int("attempt", attempt).Dur("backoff", backoff).Int("rows", len(batch)).Msg("persistence retry")
			if pw.metrics != nil {
				pw.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				return pw.finalFlush(batch)
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := pw.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				pw.logger.Info().Int("retries", attempt).Msg("persistence flush succeeded")
			}
			return nil
		}
		pw.logger.Warn().Err(err).Msg("persistence flush failed")
	}
}

func (pw *Worker) finalFlush(batch []Rows) error {
	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	return pw.flush(ctx, batch)
}

func (pw *Worker) flush(ctx context.Context, batch []Rows) error {
	start := time.Now()

	if err := pw.writer.WriteRows(ctx, batch); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues(errorType(err)).Inc()
		}
		return err
	}

	if pw.metrics != nil {
		var trades, journals int
		for _, r := range batch {
			trades += len(r.Trades)
			journals += len(r.Journals)
		}
		pw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		pw.metrics.PersistBatchSize.Observe(float64(len(batch)))
		pw.metrics.PersistEventsWritten.Add(float64(len(batch)))
		pw.metrics.PersistTradesWritten.Add(float64(trades))
		pw.metrics.PersistJournalsWritten.Add(float64(journals))
		pw.metrics.PersistLastSequence.Set(float64(batch[len(batch)-1].Result.Sequence))
	}
	return nil
}
