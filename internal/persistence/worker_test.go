package persistence

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"MatchCore/internal/core"
)

type failingWriter struct {
	calls atomic.Int32
}

func (w *failingWriter) WriteRows(ctx context.Context, batch []Rows) error {
	w.calls.Add(1)
	return errors.New("dial tcp: connection refused")
}

func TestWorker_CancelStopsRetryLoop(t *testing.T) {
	outs := crossOutputs(t)
	in := make(chan core.Output, len(outs))
	for _, o := range outs {
		in <- o
	}

	w := &failingWriter{}
	pw := &Worker{
		writer:       w,
		market:       "BTC-USD",
		inputChan:    in,
		batchSize:    2,
		flushTimeout: time.Hour,
		logger:       zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- pw.Run(ctx) }()

	// First attempt plus one backoff retry.
	deadline := time.Now().Add(2 * time.Second)
	for w.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("writer calls: got %d, want at least 2", w.calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept retrying after cancellation")
	}
}

func TestWorker_ClosedInputFlushesRemainder(t *testing.T) {
	outs := crossOutputs(t)
	in := make(chan core.Output, len(outs))
	for _, o := range outs {
		in <- o
	}
	close(in)

	var written []Rows
	pw := &Worker{
		writer:       writerFunc(func(_ context.Context, batch []Rows) error { written = append(written, batch...); return nil }),
		market:       "BTC-USD",
		inputChan:    in,
		batchSize:    100,
		flushTimeout: time.Hour,
		logger:       zerolog.Nop(),
	}

	if err := pw.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(written) != len(outs) {
		t.Errorf("rows written: got %d, want %d", len(written), len(outs))
	}
}

type writerFunc func(ctx context.Context, batch []Rows) error

func (f writerFunc) WriteRows(ctx context.Context, batch []Rows) error { return f(ctx, batch) }
