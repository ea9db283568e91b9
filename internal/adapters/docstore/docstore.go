// Package docstore persists the domain records in BadgerDB.
//
// Every mutation runs inside a single Badger transaction, which is the
// atomic single-document conditional update primitive the ledgers and the
// evaluator rely on: a conditional read-modify-write either commits as one
// unit or fails with a conflict and is retried. No caller ever performs a
// separate read followed by a write against these records.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/vigil/pkg/metrics"
)

// Key prefixes for the record kinds. Composite segments are joined with a
// NUL byte so ids containing ':' cannot collide across segments.
const (
	eventKeyPrefix     = "event:"
	pendingKeyPrefix   = "pending:"
	eventTimeKeyPrefix = "evtime:"
	ruleKeyPrefix      = "rule:"
	violationKeyPrefix = "violation:"
	scoreKeyPrefix     = "score:"
	guardKeyPrefix     = "guard:"
	activityKeyPrefix  = "activity:"

	keySep = "\x00"
)

const defaultMaxConflictRetries = 128

// Store provides access to all persisted record kinds over one Badger DB.
type Store struct {
	db         *badger.DB
	dataDir    string
	inMemory   bool
	maxRetries int
}

// Open opens the document store. With no data directory configured the
// store runs in Badger's in-memory mode, which keeps full transactional
// semantics and is what the test suites use.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	s := &Store{
		maxRetries: defaultMaxConflictRetries,
	}
	for _, opt := range opts {
		opt(s)
	}

	var bopts badger.Options
	if s.inMemory || s.dataDir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(s.dataDir)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	s.db = db
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close document store: %w", err)
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on write conflicts.
// Conflicts are part of the optimistic primitive, not caller-visible errors;
// anything else surfaces as a store failure.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreOpLatency(float64(time.Since(start).Microseconds()) / 1e3)
	}()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("store update aborted: %w", err)
		}
		err := s.db.Update(fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, badger.ErrConflict) {
			if attempt < s.maxRetries {
				metrics.RecordStoreConflictRetry()
				continue
			}
			metrics.RecordStoreError()
			return fmt.Errorf("%w: conflict retries exhausted", ErrUnavailable)
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			return err
		}
		metrics.RecordStoreError()
		return fmt.Errorf("store update: %w", err)
	}
}

// view runs fn in a read-only transaction.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store view aborted: %w", err)
	}
	start := time.Now()
	defer func() {
		metrics.RecordStoreOpLatency(float64(time.Since(start).Microseconds()) / 1e3)
	}()

	err := s.db.View(fn)
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	metrics.RecordStoreError()
	return fmt.Errorf("store view: %w", err)
}

// getJSON loads and decodes the document at key. Returns ErrNotFound when
// the key is absent.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %q: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		return nil
	})
}

// unmarshalJSON decodes a raw document value.
func unmarshalJSON(val []byte, v any) error {
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// setJSON encodes v and stores it at key.
func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// timeSegment renders t as a fixed-width nanosecond segment so that
// lexicographic key order equals chronological order.
func timeSegment(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}
