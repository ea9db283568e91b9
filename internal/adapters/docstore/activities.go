package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/okian/vigil/internal/domain/model"
)

func activityKey(player string, createdAt time.Time, id string) []byte {
	return []byte(activityKeyPrefix + player + keySep + timeSegment(createdAt) + keySep + id)
}

// AppendActivity appends one notification record to the player activity
// log. Records are never mutated after creation.
func (s *Store) AppendActivity(ctx context.Context, activity model.PlayerActivity) (model.PlayerActivity, error) {
	if activity.Player == "" {
		return model.PlayerActivity{}, fmt.Errorf("append activity: missing player")
	}
	if activity.Type == "" {
		return model.PlayerActivity{}, fmt.Errorf("append activity: missing type")
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, activityKey(activity.Player, activity.CreatedAt, activity.ID), &activity)
	})
	if err != nil {
		return model.PlayerActivity{}, err
	}
	return activity, nil
}

// ListActivitiesByPlayer returns up to limit activity records for one
// player, newest first.
func (s *Store) ListActivitiesByPlayer(ctx context.Context, player string, limit int) ([]model.PlayerActivity, error) {
	if limit <= 0 {
		return nil, nil
	}

	var out []model.PlayerActivity
	prefix := []byte(activityKeyPrefix + player + keySep)
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var a model.PlayerActivity
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalJSON(val, &a)
			}); err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
