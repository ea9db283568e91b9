package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/vigil/internal/domain/model"
)

func eventKey(id string) []byte {
	return []byte(eventKeyPrefix + id)
}

func pendingKey(createdAt time.Time, id string) []byte {
	return []byte(pendingKeyPrefix + timeSegment(createdAt) + keySep + id)
}

func eventTimeKey(subject string, createdAt time.Time, id string) []byte {
	return []byte(eventTimeKeyPrefix + subject + keySep + timeSegment(createdAt) + keySep + id)
}

// InsertEvent appends a new event together with its pending and time index
// entries. The three writes commit as one transaction. The create is
// conditional: an id that already exists returns ErrConflict rather than
// overwriting the stored document, since a rewrite would revert the
// evaluated flag and resurrect the pending index entry.
func (s *Store) InsertEvent(ctx context.Context, ev model.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("insert event: missing id")
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if ev.CreatedAt.IsZero() {
		return fmt.Errorf("insert event: missing createdAt")
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		switch _, err := txn.Get(eventKey(ev.ID)); {
		case err == nil:
			return fmt.Errorf("insert event %s: %w", ev.ID, ErrConflict)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("check event key: %w", err)
		}
		if err := setJSON(txn, eventKey(ev.ID), &ev); err != nil {
			return err
		}
		if !ev.Evaluated {
			if err := txn.Set(pendingKey(ev.CreatedAt, ev.ID), nil); err != nil {
				return fmt.Errorf("set pending index: %w", err)
			}
		}
		if err := txn.Set(eventTimeKey(ev.Subject(), ev.CreatedAt, ev.ID), []byte(ev.Type)); err != nil {
			return fmt.Errorf("set time index: %w", err)
		}
		return nil
	})
}

// GetEvent loads one event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (model.Event, error) {
	var ev model.Event
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, eventKey(id), &ev)
	})
	return ev, err
}

// CountEventsInWindow counts events of one type for one subject with
// createdAt inside [from, to].
func (s *Store) CountEventsInWindow(ctx context.Context, subject, eventType string, from, to time.Time) (int, error) {
	prefix := []byte(eventTimeKeyPrefix + subject + keySep)
	start := append(append([]byte{}, prefix...), []byte(timeSegment(from))...)
	end := append(append([]byte{}, prefix...), []byte(timeSegment(to)+keySep+"\xff")...)

	count := 0
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if bytes.Compare(item.Key(), end) > 0 {
				break
			}
			if err := item.Value(func(val []byte) error {
				if string(val) == eventType {
					count++
				}
				return nil
			}); err != nil {
				return fmt.Errorf("read time index: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListUnevaluated returns up to limit events with evaluated=false, oldest
// first.
func (s *Store) ListUnevaluated(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return nil, nil
	}

	var out []model.Event
	prefix := []byte(pendingKeyPrefix)
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			key := string(it.Item().Key())
			idx := strings.LastIndex(key, keySep)
			if idx < 0 {
				continue
			}
			id := key[idx+1:]

			var ev model.Event
			if err := getJSON(txn, eventKey(id), &ev); err != nil {
				if errors.Is(err, ErrNotFound) {
					// A dangling index entry is skipped, not fatal.
					continue
				}
				return err
			}
			if ev.Evaluated {
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkEvaluated flips the evaluated flag and attaches results. The flip is
// one-way: when the event is already evaluated nothing is written and the
// call reports changed=false, which is the idempotency guard re-evaluation
// relies on.
func (s *Store) MarkEvaluated(ctx context.Context, id string, matchedRuleIDs []string, result map[string]any) (bool, error) {
	changed := false
	err := s.update(ctx, func(txn *badger.Txn) error {
		changed = false

		var ev model.Event
		if err := getJSON(txn, eventKey(id), &ev); err != nil {
			return err
		}
		if ev.Evaluated {
			return nil
		}

		ev.Evaluated = true
		ev.MatchedRuleIDs = matchedRuleIDs
		ev.EvaluationResult = result
		if err := setJSON(txn, eventKey(id), &ev); err != nil {
			return err
		}
		if err := txn.Delete(pendingKey(ev.CreatedAt, id)); err != nil {
			return fmt.Errorf("delete pending index: %w", err)
		}
		changed = true
		return nil
	})
	return changed, err
}

// ListEventsBySubject returns up to limit events for one subject, newest
// first.
func (s *Store) ListEventsBySubject(ctx context.Context, subject string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return nil, nil
	}

	var out []model.Event
	prefix := []byte(eventTimeKeyPrefix + subject + keySep)
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			key := string(it.Item().Key())
			idx := strings.LastIndex(key, keySep)
			if idx < 0 {
				continue
			}
			var ev model.Event
			if err := getJSON(txn, eventKey(key[idx+1:]), &ev); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
