package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"MatchCore/internal/clearing"
	"MatchCore/internal/event"
	"MatchCore/internal/invariant"
	"MatchCore/internal/ledger"
	"MatchCore/internal/matching"
	fpmath "MatchCore/internal/math"
	"MatchCore/internal/observability"
	"MatchCore/internal/order"
)

// ErrHalted is returned once the engine has stopped on an invariant violation.
// A halted instance never processes another event; recovery is a replay of
// the event log into a fresh engine.
var ErrHalted = errors.New("trading engine halted")

// DefaultGlobalCheckInterval is how often (in events) the zero-sum check runs.
const DefaultGlobalCheckInterval = 1000

// Config selects the instrument one engine trades.
type Config struct {
	Market     string
	BaseAsset  string
	QuoteAsset string

	// GlobalCheckInterval runs the ledger zero-sum check every N events.
	// Zero uses DefaultGlobalCheckInterval; negative disables it.
	GlobalCheckInterval int64
}

// TradingEngine is the single-writer event processor for one instrument.
// ProcessEvent must be called from one goroutine; read methods are safe
// from any goroutine and never observe a partially applied event.
type TradingEngine struct {
	mu sync.RWMutex

	cfg       Config
	base      ledger.AssetID
	quote     ledger.AssetID
	ledger    *ledger.AssetLedger
	validator *ledger.InvariantValidator
	orders    *order.Registry
	matcher   *matching.Engine
	clearing  *clearing.Service
	hasher    *StateHasher
	sequencer *SequenceValidator

	nextOrderID   int64
	eventsApplied int64
	halted        error

	logger  zerolog.Logger
	metrics *observability.Metrics

	persistChan chan<- Output
	publishChan chan<- Output
	done        <-chan struct{}
}

func NewTradingEngine(
	cfg Config,
	persistChan, publishChan chan<- Output,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) (*TradingEngine, error) {
	base, ok := ledger.GetAssetID(cfg.BaseAsset)
	if !ok {
		return nil, fmt.Errorf("unknown base asset: %s", cfg.BaseAsset)
	}
	quote, ok := ledger.GetAssetID(cfg.QuoteAsset)
	if !ok {
		return nil, fmt.Errorf("unknown quote asset: %s", cfg.QuoteAsset)
	}
	if base == quote {
		return nil, fmt.Errorf("base and quote asset must differ: %s", cfg.BaseAsset)
	}
	if cfg.GlobalCheckInterval == 0 {
		cfg.GlobalCheckInterval = DefaultGlobalCheckInterval
	}

	l := ledger.NewAssetLedger()
	orders := order.NewRegistry()

	return &TradingEngine{
		cfg:         cfg,
		base:        base,
		quote:       quote,
		ledger:      l,
		validator:   ledger.NewInvariantValidator(l),
		orders:      orders,
		matcher:     matching.NewEngine(),
		clearing:    clearing.NewService(l, orders, base, quote),
		hasher:      NewStateHasher(cfg.Market),
		sequencer:   NewSequenceValidator(),
		logger:      logger.With().Str("market", cfg.Market).Logger(),
		metrics:     metrics,
		persistChan: persistChan,
		publishChan: publishChan,
	}, nil
}

// Attach replaces the output channels. Call it from the writer goroutine
// between events, typically after replaying the event log with outputs muted.
// Once done is closed a send blocked on a full persist channel gives up, so a
// stalled persistence worker cannot hold the writer past shutdown.
func (e *TradingEngine) Attach(persistChan, publishChan chan<- Output, done <-chan struct{}) {
	e.persistChan = persistChan
	e.publishChan = publishChan
	e.done = done
}

// ProcessEvent is the main processing pipeline.
// Business rejections come back as a rejected Result with a nil error.
// Any non-nil error halts the engine and wraps ErrHalted.
func (e *TradingEngine) ProcessEvent(evt event.Event) (*Result, error) {
	start := time.Now()
	eventType := evt.EventType().String()

	e.mu.Lock()
	if e.halted != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrHalted, e.halted)
	}

	out, err := e.apply(evt)
	if err != nil {
		e.halt(evt, err)
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: sequence %d: %w", ErrHalted, evt.SourceSequence(), err)
	}
	e.mu.Unlock()

	e.emit(out)

	if e.metrics != nil {
		e.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		e.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(out.Envelope.Sequence))
		if out.Result.Status == StatusRejected {
			e.metrics.CoreEventsRejected.WithLabelValues(eventType, string(out.Result.Reason)).Inc()
		}
		if out.Batch != nil {
			for _, j := range out.Batch.Journals {
				e.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
			}
		}
	}

	return out.Result, nil
}

// ProcessEvents applies evts in order and stops at the first error.
func (e *TradingEngine) ProcessEvents(evts []event.Event) ([]*Result, error) {
	results := make([]*Result, 0, len(evts))
	for _, evt := range evts {
		res, err := e.ProcessEvent(evt)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *TradingEngine) halt(evt event.Event, err error) {
	e.halted = err
	e.logger.Error().
		Err(err).
		Int64("sequence", evt.SourceSequence()).
		Str("event_type", evt.EventType().String()).
		Str("code", invariant.Code(err)).
		Msg("invariant violated, halting")

	if e.metrics != nil {
		e.metrics.CoreHalted.Set(1)
		e.metrics.CoreViolations.WithLabelValues(invariant.Code(err)).Inc()
	}
}

// apply runs one event under the write lock.
func (e *TradingEngine) apply(evt event.Event) (*Output, error) {
	seq := evt.SourceSequence()
	ts := evt.EventTime()

	// Step 1: Sequence validation
	gap, err := e.sequencer.ValidateSequence(seq)
	if err != nil {
		return nil, err
	}
	if gap {
		e.logger.Warn().Int64("sequence", seq).Msg("sequence gap")
		if e.metrics != nil {
			e.metrics.CoreSequenceGaps.Inc()
		}
	}

	// Step 2: Dispatch
	e.ledger.Begin(seq, ts)

	var res *Result
	var touched []OrderUpdate

	switch ev := evt.(type) {
	case *event.OrderRequest:
		res, touched, err = e.handleOrderRequest(ev)
	case *event.OrderCancel:
		res, touched, err = e.handleOrderCancel(ev)
	case *event.Transfer:
		res, err = e.handleTransfer(ev)
	default:
		err = invariant.Violationf("unknown_event", "unhandled event type %T", evt)
	}
	batch := e.ledger.Drain()
	if err != nil {
		return nil, err
	}

	// Step 3: Post-checks
	if err := e.validator.ValidateBatch(batch); err != nil {
		return nil, err
	}
	if err := e.validator.ValidateTouched(batch); err != nil {
		return nil, err
	}

	e.eventsApplied++
	if e.cfg.GlobalCheckInterval > 0 && e.eventsApplied%e.cfg.GlobalCheckInterval == 0 {
		if err := e.validator.ValidateGlobalBalance(); err != nil {
			return nil, err
		}
	}

	// Step 4: State hash
	balances := e.touchedBalances(batch)
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(seq, e.computeStateDigest(balances, touched))

	res.Sequence = seq
	res.EventType = evt.EventType()
	res.StateHash = stateHash

	if res.Status == StatusRejected {
		e.logger.Debug().
			Int64("sequence", seq).
			Str("event_type", evt.EventType().String()).
			Str("reason", string(res.Reason)).
			Msg("event rejected")
	}

	return &Output{
		Envelope: &event.EventEnvelope{
			Sequence:  seq,
			EventType: evt.EventType(),
			Timestamp: ts,
			StateHash: stateHash,
			PrevHash:  prevHash,
		},
		Result:   res,
		Batch:    batch,
		Orders:   touched,
		Balances: balances,
	}, nil
}

func rejected(reason RejectReason) *Result {
	return &Result{Status: StatusRejected, Reason: reason}
}

// handleOrderRequest freezes funds, creates the order, matches it and clears the result.
func (e *TradingEngine) handleOrderRequest(ev *event.OrderRequest) (*Result, []OrderUpdate, error) {
	if !e.validOrder(ev) {
		return rejected(RejectInvalidOrder), nil, nil
	}

	asset, amount := e.clearing.Reservation(ev.Direction, ev.Price, ev.Quantity)
	ok, err := e.ledger.TryFreeze(ev.UserID, asset, amount)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return rejected(RejectInsufficientFunds), nil, nil
	}

	e.nextOrderID++
	o, err := e.orders.CreateOrder(e.nextOrderID, ev.Sequence, ev.UserID, ev.Direction, ev.Price, ev.Quantity, ev.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	result, err := e.matcher.ProcessOrder(ev.Sequence, o)
	if err != nil {
		return nil, nil, err
	}
	if err := e.clearing.ClearMatchResult(result); err != nil {
		return nil, nil, err
	}

	touched := make([]OrderUpdate, 0, len(result.Details)+1)
	touched = append(touched, OrderUpdate{Order: o.Snapshot()})
	for _, d := range result.Details {
		touched = append(touched, OrderUpdate{Order: d.Maker.Snapshot()})
	}

	trades := result.Trades()
	if e.metrics != nil {
		e.metrics.TradesTotal.Add(float64(len(trades)))
		e.metrics.MatchesPerOrder.Observe(float64(len(trades)))
		for _, d := range result.Details {
			if d.SelfTrade() {
				e.metrics.SelfTrades.Inc()
			}
		}
		if len(trades) > 0 {
			e.metrics.MarketPrice.Set(e.matcher.MarketPrice().InexactFloat64())
		}
		e.metrics.OpenOrders.WithLabelValues("buy").Set(float64(e.matcher.Book(order.Buy).Len()))
		e.metrics.OpenOrders.WithLabelValues("sell").Set(float64(e.matcher.Book(order.Sell).Len()))
	}

	snap := o.Snapshot()
	return &Result{
		Status:  StatusAccepted,
		OrderID: o.ID,
		Order:   &snap,
		Trades:  trades,
	}, touched, nil
}

func (e *TradingEngine) validOrder(ev *event.OrderRequest) bool {
	if ev.UserID <= 0 {
		return false
	}
	if ev.Direction != order.Buy && ev.Direction != order.Sell {
		return false
	}
	if !ev.Price.IsPositive() || !ev.Quantity.IsPositive() {
		return false
	}
	if fpmath.CheckPrecision(ev.Price, fpmath.PriceConfig) != nil {
		return false
	}
	return fpmath.CheckPrecision(ev.Quantity, fpmath.QuantityConfig) == nil
}

// handleOrderCancel evicts the order from its book and releases its reservation.
func (e *TradingEngine) handleOrderCancel(ev *event.OrderCancel) (*Result, []OrderUpdate, error) {
	o, ok := e.orders.GetOrder(ev.OrderID)
	if !ok {
		return rejected(RejectOrderNotFound), nil, nil
	}
	if o.UserID != ev.UserID {
		return rejected(RejectNotOwner), nil, nil
	}

	if err := e.matcher.CancelOrder(o); err != nil {
		return nil, nil, err
	}
	if err := e.clearing.ClearCancelOrder(o); err != nil {
		return nil, nil, err
	}
	o.UpdatedAt = ev.CreatedAt

	if e.metrics != nil {
		e.metrics.OpenOrders.WithLabelValues(sideLabel(o.Direction)).Set(float64(e.matcher.Book(o.Direction).Len()))
	}

	snap := o.Snapshot()
	return &Result{
		Status:  StatusAccepted,
		OrderID: o.ID,
		Order:   &snap,
	}, []OrderUpdate{{Order: snap, Cancelled: true}}, nil
}

// handleTransfer moves available funds. User id 0 is the external boundary.
func (e *TradingEngine) handleTransfer(ev *event.Transfer) (*Result, error) {
	assetID, ok := ledger.GetAssetID(ev.Asset)
	if !ok || ev.FromUserID < 0 || ev.ToUserID < 0 || ev.FromUserID == ev.ToUserID {
		return rejected(RejectInvalidTransfer), nil
	}
	if !ev.Amount.IsPositive() || fpmath.CheckPrecision(ev.Amount, fpmath.QuantityConfig) != nil {
		return rejected(RejectInvalidTransfer), nil
	}

	var err error
	switch {
	case ev.IsDeposit():
		ok, err = true, e.ledger.Deposit(ev.ToUserID, assetID, ev.Amount)
	case ev.IsWithdrawal():
		ok, err = e.ledger.Withdraw(ev.FromUserID, assetID, ev.Amount)
	default:
		ok, err = e.ledger.TryTransfer(ledger.AvailableToAvailable, ev.FromUserID, ev.ToUserID, assetID, ev.Amount, ledger.JournalTypeTransfer)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return rejected(RejectInsufficientFunds), nil
	}
	return &Result{Status: StatusAccepted}, nil
}

func sideLabel(d order.Direction) string {
	if d == order.Buy {
		return "buy"
	}
	return "sell"
}

// touchedBalances snapshots every account the batch moved, in key order.
func (e *TradingEngine) touchedBalances(batch *ledger.Batch) []ledger.UserAsset {
	if batch == nil {
		return nil
	}
	keys := batch.Accounts()
	sortKeys(keys)
	out := make([]ledger.UserAsset, 0, len(keys))
	for _, k := range keys {
		a, _ := e.ledger.Balance(k)
		out = append(out, ledger.UserAsset{Key: k, Asset: a})
	}
	return out
}

// emit pushes the output to collaborators outside the lock.
// The persist channel blocks (backpressure); the publish channel drops when full.
func (e *TradingEngine) emit(out *Output) {
	if e.persistChan != nil {
		select {
		case e.persistChan <- *out:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			select {
			case e.persistChan <- *out:
			case <-e.done:
				// The event is applied and in the event log; only its rows are lost.
				e.logger.Warn().Int64("sequence", out.Envelope.Sequence).Msg("persist output abandoned at shutdown")
				if e.metrics != nil {
					e.metrics.PersistAbandoned.Inc()
				}
			}
		}
	}

	if e.publishChan != nil {
		select {
		case e.publishChan <- *out:
		default:
			// Dropped. Subscribers catch up from persisted results.
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}
}
