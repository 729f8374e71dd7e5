package ingestion_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"MatchCore/internal/core"
	"MatchCore/internal/ingestion"
	"MatchCore/internal/observability"
)

type memLog struct {
	seqs []int64
	fail bool
}

func (m *memLog) Append(seq int64, data []byte) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.seqs = append(m.seqs, seq)
	return nil
}

type acks struct {
	acked, naked, termed int
}

func (a *acks) raw(data string) ingestion.RawEvent {
	return ingestion.RawEvent{
		Subject:  "match.events.BTC-USD",
		Data:     []byte(data),
		AckFunc:  func() { a.acked++ },
		NakFunc:  func() { a.naked++ },
		TermFunc: func() { a.termed++ },
	}
}

func newShell(t *testing.T, log ingestion.EventLog) (*ingestion.Shell, *core.TradingEngine, chan core.Output) {
	t.Helper()
	out := make(chan core.Output, 64)
	e, err := core.NewTradingEngine(core.Config{Market: "BTC-USD", BaseAsset: "BTC", QuoteAsset: "USD"},
		out, nil, observability.NewLoggerTo(io.Discard, "core"), nil)
	if err != nil {
		t.Fatal(err)
	}
	return ingestion.NewShell(e, log, observability.NewLoggerTo(io.Discard, "shell"), nil), e, out
}

const depositJSON = `{"type":"transfer","sequence_id":1,"to_user_id":7,"asset":"USD","amount":"100"}`

func TestShell_AppliesLogsAndAcks(t *testing.T) {
	log := &memLog{}
	s, e, _ := newShell(t, log)
	a := &acks{}

	if err := s.Handle(a.raw(depositJSON)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if a.acked != 1 {
		t.Errorf("acked: got %d, want 1", a.acked)
	}
	if len(log.seqs) != 1 || log.seqs[0] != 1 {
		t.Errorf("event log: got %v, want [1]", log.seqs)
	}
	if e.LastSequence() != 1 {
		t.Errorf("last sequence: got %d, want 1", e.LastSequence())
	}
}

func TestShell_SkipsRedelivery(t *testing.T) {
	log := &memLog{}
	s, e, _ := newShell(t, log)
	a := &acks{}

	for i := 0; i < 3; i++ {
		if err := s.Handle(a.raw(depositJSON)); err != nil {
			t.Fatalf("Handle %d: %v", i, err)
		}
	}

	if a.acked != 3 {
		t.Errorf("every delivery should be acked, got %d", a.acked)
	}
	if len(log.seqs) != 1 {
		t.Errorf("duplicates must not reach the log, got %v", log.seqs)
	}
	_, quote := e.Assets()
	if got := e.GetBalance(7, quote).Available.String(); got != "100" {
		t.Errorf("balance: got %s, want 100", got)
	}
}

func TestShell_TerminatesMalformed(t *testing.T) {
	s, _, _ := newShell(t, &memLog{})
	a := &acks{}

	if err := s.Handle(a.raw(`{"type":"nope","sequence_id":1}`)); err != nil {
		t.Fatalf("malformed events are not fatal: %v", err)
	}
	if a.termed != 1 || a.acked != 0 {
		t.Errorf("got termed=%d acked=%d, want 1/0", a.termed, a.acked)
	}
}

func TestShell_LogFailureIsFatal(t *testing.T) {
	s, e, _ := newShell(t, &memLog{fail: true})
	a := &acks{}

	if err := s.Handle(a.raw(depositJSON)); err == nil {
		t.Fatal("expected error when the event log fails")
	}
	if a.naked != 1 {
		t.Errorf("naked: got %d, want 1", a.naked)
	}
	if e.LastSequence() != 0 {
		t.Error("event must not be applied when it could not be logged")
	}
}

func TestShell_RunStopsOnClose(t *testing.T) {
	s, e, _ := newShell(t, nil)
	a := &acks{}

	in := make(chan ingestion.RawEvent, 2)
	in <- a.raw(depositJSON)
	in <- a.raw(`{"type":"transfer","sequence_id":2,"from_user_id":7,"asset":"USD","amount":"30"}`)
	close(in)

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e.LastSequence() != 2 {
		t.Errorf("last sequence: got %d, want 2", e.LastSequence())
	}
}

func TestShell_RunStopsWhilePersistStalled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nobody drains persist, as when the database is down and the worker is retrying.
	persist := make(chan core.Output, 1)
	e, err := core.NewTradingEngine(core.Config{Market: "BTC-USD", BaseAsset: "BTC", QuoteAsset: "USD"},
		nil, nil, observability.NewLoggerTo(io.Discard, "core"), nil)
	if err != nil {
		t.Fatal(err)
	}
	e.Attach(persist, nil, ctx.Done())
	s := ingestion.NewShell(e, &memLog{}, observability.NewLoggerTo(io.Discard, "shell"), nil)

	a := &acks{}
	in := make(chan ingestion.RawEvent, 3)
	in <- a.raw(`{"type":"transfer","sequence_id":1,"to_user_id":7,"asset":"USD","amount":"100"}`)
	in <- a.raw(`{"type":"transfer","sequence_id":2,"to_user_id":7,"asset":"USD","amount":"100"}`)
	in <- a.raw(`{"type":"transfer","sequence_id":3,"to_user_id":7,"asset":"USD","amount":"100"}`)

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx, in) }()

	deadline := time.Now().Add(time.Second)
	for e.LastSequence() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("second event not applied, last sequence %d", e.LastSequence())
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if e.LastSequence() != 2 {
		t.Fatalf("last sequence: got %d, want 2 (writer should be blocked)", e.LastSequence())
	}

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if e.LastSequence() != 2 {
		t.Errorf("last sequence after stop: got %d, want 2", e.LastSequence())
	}
	if len(persist) != 1 {
		t.Errorf("persist: got %d outputs, want 1", len(persist))
	}
}
