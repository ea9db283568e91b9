package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/okian/vigil/internal/domain/model"
)

// violationKey enforces one violation document per (ruleId, playerId)
// structurally: the composite key is the uniqueness constraint.
func violationKey(ruleID, playerID string) []byte {
	return []byte(violationKeyPrefix + ruleID + keySep + playerID)
}

// RecordViolation atomically upserts the violation for (ruleID, playerID):
// it is created with count=1 on first trigger and incremented on every
// later one. Count never decreases and lastViolationAt never moves
// backward. A resolved violation is re-opened by a new trigger.
func (s *Store) RecordViolation(ctx context.Context, ruleID, playerID, severity string, evidence map[string]any, details string, now time.Time) (model.Violation, error) {
	if ruleID == "" || playerID == "" {
		return model.Violation{}, fmt.Errorf("record violation: missing ruleId or playerId")
	}

	var out model.Violation
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := violationKey(ruleID, playerID)

		var v model.Violation
		switch err := getJSON(txn, key, &v); err {
		case nil:
			v.Count++
			if now.After(v.LastViolationAt) {
				v.LastViolationAt = now
			}
			v.Resolved = false
		case ErrNotFound:
			v = model.Violation{
				ID:               uuid.NewString(),
				RuleID:           ruleID,
				PlayerID:         playerID,
				Count:            1,
				FirstViolationAt: now,
				LastViolationAt:  now,
			}
		default:
			return err
		}

		if severity != "" {
			v.Severity = severity
		}
		if evidence != nil {
			v.Evidence = evidence
		}
		if details != "" {
			v.Details = details
		}

		if err := setJSON(txn, key, &v); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// ResolveViolation marks a violation as resolved by its id.
func (s *Store) ResolveViolation(ctx context.Context, id string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		key, v, err := findViolation(txn, id)
		if err != nil {
			return err
		}
		if v.Resolved {
			return nil
		}
		v.Resolved = true
		return setJSON(txn, key, v)
	})
}

// GetViolation loads one violation by its id.
func (s *Store) GetViolation(ctx context.Context, id string) (model.Violation, error) {
	var out model.Violation
	err := s.view(ctx, func(txn *badger.Txn) error {
		_, v, err := findViolation(txn, id)
		if err != nil {
			return err
		}
		out = *v
		return nil
	})
	return out, err
}

// ListViolationsByPlayer returns all violations recorded for one player.
func (s *Store) ListViolationsByPlayer(ctx context.Context, playerID string) ([]model.Violation, error) {
	return s.listViolations(ctx, func(v model.Violation) bool {
		return v.PlayerID == playerID
	})
}

// ListViolations returns every recorded violation.
func (s *Store) ListViolations(ctx context.Context) ([]model.Violation, error) {
	return s.listViolations(ctx, func(model.Violation) bool { return true })
}

func (s *Store) listViolations(ctx context.Context, keep func(model.Violation) bool) ([]model.Violation, error) {
	var out []model.Violation
	prefix := []byte(violationKeyPrefix)
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v model.Violation
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalJSON(val, &v)
			}); err != nil {
				return err
			}
			if keep(v) {
				out = append(out, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// findViolation scans for a violation by its id. Violations are few, so a
// prefix scan beats maintaining a secondary id index.
func findViolation(txn *badger.Txn, id string) ([]byte, *model.Violation, error) {
	prefix := []byte(violationKeyPrefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var v model.Violation
		if err := it.Item().Value(func(val []byte) error {
			return unmarshalJSON(val, &v)
		}); err != nil {
			return nil, nil, err
		}
		if v.ID == id {
			return it.Item().KeyCopy(nil), &v, nil
		}
	}
	return nil, nil, ErrNotFound
}
