package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Writer batch-writes engine outputs to Postgres using multi-row INSERTs.
// Every statement is idempotent on its primary key, so a batch retried after
// a partial failure (or re-persisted after replay) is safe.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// WriteRows writes one flushed batch in a single transaction.
func (w *Writer) WriteRows(ctx context.Context, batch []Rows) error {
	var (
		results  = make([]ResultRow, 0, len(batch))
		trades   []TradeRow
		journals []JournalRow
		orders   []OrderRow
	)
	for _, r := range batch {
		results = append(results, r.Result)
		trades = append(trades, r.Trades...)
		journals = append(journals, r.Journals...)
		orders = append(orders, r.Orders...)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return &writeError{op: "tx_begin", err: err}
	}
	defer tx.Rollback()

	if err := WriteResultBatch(ctx, tx, results); err != nil {
		return &writeError{op: "write_results", err: err}
	}
	if err := WriteTradeBatch(ctx, tx, trades); err != nil {
		return &writeError{op: "write_trades", err: err}
	}
	if err := WriteJournalBatch(ctx, tx, journals); err != nil {
		return &writeError{op: "write_journals", err: err}
	}
	if err := UpsertOrderBatch(ctx, tx, latestOrders(orders)); err != nil {
		return &writeError{op: "upsert_orders", err: err}
	}
	if err := tx.Commit(); err != nil {
		return &writeError{op: "tx_commit", err: err}
	}
	return nil
}

// WriteResultBatch writes event results to event_log.results.
func WriteResultBatch(ctx context.Context, db execer, rows []ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*9)
	for _, r := range rows {
		args = append(args,
			r.Sequence, r.Market, r.EventType, r.Status, r.Reason,
			r.OrderID, r.StateHash, r.PrevHash, r.Timestamp,
		)
	}
	query := `INSERT INTO event_log.results
		(sequence, market, event_type, status, reason, order_id, state_hash, prev_hash, timestamp)
		VALUES ` + placeholders(len(rows), 9) + `
		ON CONFLICT (sequence) DO NOTHING`

	_, err := db.ExecContext(ctx, query, args...)
	return err
}

// WriteTradeBatch writes trades to event_log.trades.
func WriteTradeBatch(ctx context.Context, db execer, rows []TradeRow) error {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*11)
	for _, t := range rows {
		args = append(args,
			t.TradeID, t.Sequence, t.Market, t.Price, t.Quantity,
			t.TakerOrderID, t.MakerOrderID, t.TakerUserID, t.MakerUserID,
			t.TakerDirection, t.Timestamp,
		)
	}
	query := `INSERT INTO event_log.trades
		(trade_id, sequence, market, price, quantity, taker_order_id, maker_order_id,
		 taker_user_id, maker_user_id, taker_direction, timestamp)
		VALUES ` + placeholders(len(rows), 11) + `
		ON CONFLICT (trade_id) DO NOTHING`

	_, err := db.ExecContext(ctx, query, args...)
	return err
}

// WriteJournalBatch writes journal entries to event_log.journal.
func WriteJournalBatch(ctx context.Context, db execer, rows []JournalRow) error {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*9)
	for _, j := range rows {
		args = append(args,
			j.JournalID, j.BatchID, j.Sequence, j.DebitAccount, j.CreditAccount,
			j.AssetID, j.Amount, j.JournalType, j.Timestamp,
		)
	}
	query := `INSERT INTO event_log.journal
		(journal_id, batch_id, sequence, debit_account, credit_account, asset_id, amount, journal_type, timestamp)
		VALUES ` + placeholders(len(rows), 9) + `
		ON CONFLICT (journal_id) DO NOTHING`

	_, err := db.ExecContext(ctx, query, args...)
	return err
}

// UpsertOrderBatch stores the latest state of each order. Rows must carry
// distinct order ids. Older sequences never overwrite newer ones.
func UpsertOrderBatch(ctx context.Context, db execer, rows []OrderRow) error {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*11)
	for _, o := range rows {
		args = append(args,
			o.OrderID, o.Market, o.UserID, o.Direction, o.Price, o.Quantity,
			o.UnfilledQuantity, o.Status, o.Cancelled, o.Sequence, o.UpdatedAt,
		)
	}
	query := `INSERT INTO event_log.orders
		(order_id, market, user_id, direction, price, quantity, unfilled_quantity,
		 status, cancelled, last_sequence, updated_at)
		VALUES ` + placeholders(len(rows), 11) + `
		ON CONFLICT (market, order_id) DO UPDATE SET
			unfilled_quantity = EXCLUDED.unfilled_quantity,
			status = EXCLUDED.status,
			cancelled = EXCLUDED.cancelled,
			last_sequence = EXCLUDED.last_sequence,
			updated_at = EXCLUDED.updated_at
		WHERE event_log.orders.last_sequence < EXCLUDED.last_sequence`

	_, err := db.ExecContext(ctx, query, args...)
	return err
}

// latestOrders keeps the last row per order id, in first-seen order.
// Postgres rejects an upsert that touches the same key twice.
func latestOrders(rows []OrderRow) []OrderRow {
	if len(rows) < 2 {
		return rows
	}
	idx := make(map[int64]int, len(rows))
	out := make([]OrderRow, 0, len(rows))
	for _, o := range rows {
		if i, ok := idx[o.OrderID]; ok {
			out[i] = o
			continue
		}
		idx[o.OrderID] = len(out)
		out = append(out, o)
	}
	return out
}

// placeholders renders "($1, $2), ($3, $4)" for n rows of width columns.
func placeholders(n, width int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < width; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*width+c+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

type writeError struct {
	op  string
	err error
}

func (e *writeError) Error() string { return e.op + ": " + e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// errorType labels a write failure for metrics.
func errorType(err error) string {
	var we *writeError
	if errors.As(err, &we) {
		return we.op
	}
	return "unknown"
}
