package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/vigil/internal/domain/model"
)

func guardKey(player string) []byte {
	return []byte(guardKeyPrefix + player)
}

// TryClaimActivity performs the atomic compare-and-set behind activity
// deduplication. The per-player guard's lastActivityAt is set to now only
// when no guard document existed, or its stored value was null or older
// than now-window. The claim is decided from the pre-update value, so of N
// racing callers inside one window exactly one observes a stale guard and
// wins; the rest back off.
func (s *Store) TryClaimActivity(ctx context.Context, player string, now time.Time, window time.Duration) (bool, error) {
	if player == "" {
		return false, fmt.Errorf("claim activity: missing player")
	}

	threshold := now.Add(-window)
	claimed := false
	err := s.update(ctx, func(txn *badger.Txn) error {
		claimed = false

		key := guardKey(player)
		var guard model.ActivityGuard
		switch err := getJSON(txn, key, &guard); err {
		case nil:
			if guard.LastActivityAt != nil && !guard.LastActivityAt.Before(threshold) {
				// A fresh claim exists; someone else won this window.
				return nil
			}
		case ErrNotFound:
			guard = model.ActivityGuard{Player: player}
		default:
			return err
		}

		ts := now
		guard.LastActivityAt = &ts
		if err := setJSON(txn, key, &guard); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	return claimed, err
}

// GetActivityGuard loads the guard record for a player. Used by tests and
// diagnostics; the guard is not user-visible.
func (s *Store) GetActivityGuard(ctx context.Context, player string) (model.ActivityGuard, error) {
	var guard model.ActivityGuard
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, guardKey(player), &guard)
	})
	return guard, err
}
