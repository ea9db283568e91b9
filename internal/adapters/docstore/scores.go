package docstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/vigil/internal/domain/model"
)

func scoreKey(player, gameID, scope, localID string) []byte {
	return []byte(scoreKeyPrefix + player + keySep + gameID + keySep + scope + keySep + localID)
}

// SubmitScore applies max-merge semantics to the (player, gameID, scope,
// localID) record as one atomic conditional update: the stored score becomes
// max(stored, score) and updatedAt advances only when the maximum strictly
// increased. It reports whether the submission was a genuine increase and
// the pre-update score, nil when no record existed.
func (s *Store) SubmitScore(ctx context.Context, player, gameID, scope, localID string, score float64, now time.Time) (updated bool, previous *float64, err error) {
	if player == "" {
		return false, nil, fmt.Errorf("submit score: missing player")
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		updated = false
		previous = nil

		key := scoreKey(player, gameID, scope, localID)
		var doc model.PlayerScore
		switch err := getJSON(txn, key, &doc); err {
		case nil:
			prev := doc.Score
			previous = &prev
			if score <= prev {
				// Not an improvement; leave the record untouched so
				// updatedAt does not advance.
				return nil
			}
			doc.Score = score
			doc.UpdatedAt = now
		case ErrNotFound:
			doc = model.PlayerScore{
				Player:    player,
				GameID:    gameID,
				Scope:     scope,
				LocalID:   localID,
				Score:     score,
				CreatedAt: now,
				UpdatedAt: now,
			}
		default:
			return err
		}

		if err := setJSON(txn, key, &doc); err != nil {
			return err
		}
		updated = true
		return nil
	})
	return updated, previous, err
}

// GetScore loads one score record.
func (s *Store) GetScore(ctx context.Context, player, gameID, scope, localID string) (model.PlayerScore, error) {
	var doc model.PlayerScore
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, scoreKey(player, gameID, scope, localID), &doc)
	})
	return doc, err
}

// TopScores returns score records ordered by score descending. Empty
// gameID/scope/localID filters match everything.
func (s *Store) TopScores(ctx context.Context, gameID, scope, localID string, limit int) ([]model.PlayerScore, error) {
	if limit <= 0 {
		return nil, nil
	}

	var out []model.PlayerScore
	prefix := []byte(scoreKeyPrefix)
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var doc model.PlayerScore
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalJSON(val, &doc)
			}); err != nil {
				return err
			}
			if gameID != "" && doc.GameID != gameID {
				continue
			}
			if scope != "" && doc.Scope != scope {
				continue
			}
			if localID != "" && doc.LocalID != localID {
				continue
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
