// Package eventlog is the durable inbound event log. Every event is appended
// before the core applies it, so a fresh engine rebuilt by Replay reaches the
// same state hash as the one that crashed.
package eventlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

var ErrOutOfOrder = errors.New("eventlog: sequence not after last appended")

var (
	keyPrefix  = []byte("event/")
	upperBound = []byte("event0") // '0' sorts right after '/'
)

type Log struct {
	mu   sync.Mutex
	db   *pebble.DB
	last int64
}

// Open opens (or creates) the log in dir and loads the last sequence.
func Open(dir string) (*Log, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", dir, err)
	}

	l := &Log{db: db}
	last, err := l.scanLast()
	if err != nil {
		db.Close()
		return nil, err
	}
	l.last = last
	return l, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

// Append stores data under seq with a synced write. Sequences must increase.
func (l *Log) Append(seq int64, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seq <= l.last {
		return fmt.Errorf("%w: seq=%d last=%d", ErrOutOfOrder, seq, l.last)
	}
	if err := l.db.Set(keyFor(seq), data, pebble.Sync); err != nil {
		return fmt.Errorf("append seq=%d: %w", seq, err)
	}
	l.last = seq
	return nil
}

// LastSequence returns the highest appended sequence, 0 when empty.
func (l *Log) LastSequence() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Replay calls fn for every entry with sequence > after, in sequence order.
// The data slice is owned by fn.
func (l *Log) Replay(after int64, fn func(seq int64, data []byte) error) error {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: keyFor(after + 1),
		UpperBound: upperBound,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		data := append([]byte(nil), iter.Value()...)
		if err := fn(seq, data); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (l *Log) scanLast() (int64, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: upperBound,
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// key: "event/" + big-endian uint64, so byte order is sequence order.
func keyFor(seq int64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], uint64(seq))
	return key
}

func parseKey(b []byte) (int64, error) {
	if len(b) != len(keyPrefix)+8 {
		return 0, fmt.Errorf("eventlog: invalid key length %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b[len(keyPrefix):])), nil
}
