package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/vigil/internal/domain/model"
)

func ruleKey(id string) []byte {
	return []byte(ruleKeyPrefix + id)
}

// PutRule creates or replaces a rule configuration.
func (s *Store) PutRule(ctx context.Context, rule model.Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("put rule: missing id")
	}
	if rule.Name == "" {
		return fmt.Errorf("put rule: missing name")
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		now := time.Now().UTC()
		var existing model.Rule
		switch err := getJSON(txn, ruleKey(rule.ID), &existing); err {
		case nil:
			rule.CreatedAt = existing.CreatedAt
		case ErrNotFound:
			rule.CreatedAt = now
		default:
			return err
		}
		rule.UpdatedAt = now
		return setJSON(txn, ruleKey(rule.ID), &rule)
	})
}

// GetRule loads one rule by id.
func (s *Store) GetRule(ctx context.Context, id string) (model.Rule, error) {
	var rule model.Rule
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, ruleKey(id), &rule)
	})
	return rule, err
}

// SetRuleActive flips the active flag on a rule.
func (s *Store) SetRuleActive(ctx context.Context, id string, active bool) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var rule model.Rule
		if err := getJSON(txn, ruleKey(id), &rule); err != nil {
			return err
		}
		if rule.Active == active {
			return nil
		}
		rule.Active = active
		rule.UpdatedAt = time.Now().UTC()
		return setJSON(txn, ruleKey(id), &rule)
	})
}

// DeleteRule removes a rule configuration.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Delete(ruleKey(id)); err != nil {
			return fmt.Errorf("delete rule: %w", err)
		}
		return nil
	})
}

// ListRules returns all configured rules.
func (s *Store) ListRules(ctx context.Context) ([]model.Rule, error) {
	return s.listRules(ctx, func(model.Rule) bool { return true })
}

// ListActiveRulesByName returns active rules whose name matches. Rule names
// correspond to event types for count-mode evaluation.
func (s *Store) ListActiveRulesByName(ctx context.Context, name string) ([]model.Rule, error) {
	return s.listRules(ctx, func(r model.Rule) bool {
		return r.Active && r.Name == name
	})
}

// ListActiveRulesByGame returns active rules configured for a game. These
// carry the normal ranges used by range-mode evaluation of snapshots.
func (s *Store) ListActiveRulesByGame(ctx context.Context, gameID string) ([]model.Rule, error) {
	return s.listRules(ctx, func(r model.Rule) bool {
		return r.Active && r.GameID == gameID
	})
}

func (s *Store) listRules(ctx context.Context, keep func(model.Rule) bool) ([]model.Rule, error) {
	var out []model.Rule
	prefix := []byte(ruleKeyPrefix)
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rule model.Rule
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalJSON(val, &rule)
			}); err != nil {
				return err
			}
			if keep(rule) {
				out = append(out, rule)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
