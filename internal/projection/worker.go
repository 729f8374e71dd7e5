package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"MatchCore/internal/core"
	"MatchCore/internal/ledger"
	"MatchCore/internal/observability"
)

const workerID = "balances"

// BalanceRow is one projected account.
type BalanceRow struct {
	UserID      int64
	AssetID     int32
	AccountPath string
	Available   string
	Frozen      string
}

// BalanceRows converts account snapshots to projection rows.
func BalanceRows(balances []ledger.UserAsset) []BalanceRow {
	rows := make([]BalanceRow, 0, len(balances))
	for _, b := range balances {
		rows = append(rows, BalanceRow{
			UserID:      b.Key.UserID,
			AssetID:     int32(b.Key.AssetID),
			AccountPath: b.Key.AccountPath(),
			Available:   b.Available.String(),
			Frozen:      b.Frozen.String(),
		})
	}
	return rows
}

// Worker keeps projections.balances in step with the engine.
// It consumes the publish fan-out, which drops when full; a projection that
// fell behind is rebuilt from the engine with Rebuild.
type Worker struct {
	db        *sql.DB
	inputChan <-chan core.Output
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewWorker(db *sql.DB, inputChan <-chan core.Output, logger zerolog.Logger, metrics *observability.Metrics) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run starts the projection worker loop.
func (pw *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-pw.inputChan:
			if !ok {
				return nil
			}
			if len(out.Balances) == 0 {
				continue
			}

			start := time.Now()
			if err := pw.apply(ctx, out.Envelope.Sequence, BalanceRows(out.Balances)); err != nil {
				// Projections are eventually consistent and can be rebuilt
				pw.logger.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("projection update failed")
				continue
			}
			if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.WithLabelValues(workerID).Observe(time.Since(start).Seconds())
			}
		}
	}
}

func (pw *Worker) apply(ctx context.Context, seq int64, rows []BalanceRow) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertBalances(ctx, tx, seq, rows); err != nil {
		return fmt.Errorf("balance projection: %w", err)
	}
	if err := setWatermark(ctx, tx, seq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}
	return tx.Commit()
}

// Rebuild replaces the projection with a full snapshot taken at seq.
func Rebuild(ctx context.Context, db *sql.DB, seq int64, balances []ledger.UserAsset) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE projections.balances`); err != nil {
		return fmt.Errorf("truncate balances: %w", err)
	}
	if err := upsertBalances(ctx, tx, seq, BalanceRows(balances)); err != nil {
		return fmt.Errorf("rebuild balances: %w", err)
	}
	if err := setWatermark(ctx, tx, seq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}
	return tx.Commit()
}

func upsertBalances(ctx context.Context, tx *sql.Tx, seq int64, rows []BalanceRow) error {
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (user_id, asset_id, account_path, available, frozen, last_sequence, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (user_id, asset_id)
			DO UPDATE SET available = EXCLUDED.available, frozen = EXCLUDED.frozen,
				last_sequence = EXCLUDED.last_sequence, updated_at = NOW()
			WHERE projections.balances.last_sequence <= EXCLUDED.last_sequence
		`, r.UserID, r.AssetID, r.AccountPath, r.Available, r.Frozen, seq); err != nil {
			return err
		}
	}
	return nil
}

func setWatermark(ctx context.Context, tx *sql.Tx, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $2, updated_at = NOW()
	`, workerID, seq)
	return err
}
