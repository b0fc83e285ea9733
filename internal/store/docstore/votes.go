package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/edly-io/forum-sub001/internal/models"
)

type voteRepo struct {
	s *Store
}

func (r *voteRepo) Get(ctx context.Context, contentID, userID string) (*models.Vote, error) {
	v := new(models.Vote)
	err := r.s.view(func(txn *badger.Txn) error {
		return getJSON(txn, voteKey(contentID, userID), v)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load vote: %w", err)
	}
	return v, nil
}

func (r *voteRepo) Save(ctx context.Context, v *models.Vote) error {
	err := r.s.update(func(txn *badger.Txn) error {
		now := time.Now().UTC()
		var existing models.Vote
		switch err := getJSON(txn, voteKey(v.ContentID, v.UserID), &existing); {
		case err == nil:
			v.CreatedAt = existing.CreatedAt
		case errors.Is(err, badger.ErrKeyNotFound):
			v.CreatedAt = now
		default:
			return err
		}
		v.UpdatedAt = now
		return putJSON(txn, voteKey(v.ContentID, v.UserID), v)
	})
	if err != nil {
		return fmt.Errorf("save vote: %w", err)
	}
	return nil
}

func (r *voteRepo) Delete(ctx context.Context, contentID, userID string) (bool, error) {
	deleted := false
	err := r.s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(voteKey(contentID, userID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		deleted = true
		return txn.Delete(voteKey(contentID, userID))
	})
	if err != nil {
		return false, fmt.Errorf("delete vote: %w", err)
	}
	return deleted, nil
}

func (r *voteRepo) Tally(ctx context.Context, contentID string) (int, int, error) {
	var up, down int
	err := r.s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = voteKeysFor(contentID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var v models.Vote
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return err
			}
			if v.Value > 0 {
				up++
			} else {
				down++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("tally votes: %w", err)
	}
	return up, down, nil
}

// ContentIDsByUser walks the whole ledger; votes are keyed by content, so a
// per-user lookup has no index to lean on.
func (r *voteRepo) ContentIDsByUser(ctx context.Context, userID string) ([]string, []string, error) {
	var up, down []string
	err := r.s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(votePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var v models.Vote
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return err
			}
			if v.UserID != userID {
				continue
			}
			if v.Value > 0 {
				up = append(up, v.ContentID)
			} else {
				down = append(down, v.ContentID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list votes by user: %w", err)
	}
	return up, down, nil
}

func (r *voteRepo) DeleteForContent(ctx context.Context, contentID string) error {
	err := r.s.update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = voteKeysFor(contentID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete votes for content: %w", err)
	}
	return nil
}
