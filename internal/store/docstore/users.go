package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) Get(ctx context.Context, id string) (*models.User, error) {
	u := new(models.User)
	err := r.s.view(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), u)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) Save(ctx context.Context, u *models.User) error {
	err := r.s.update(func(txn *badger.Txn) error {
		now := time.Now().UTC()
		var existing models.User
		switch err := getJSON(txn, userKey(u.ID), &existing); {
		case err == nil:
			u.CreatedAt = existing.CreatedAt
		case errors.Is(err, badger.ErrKeyNotFound):
			u.CreatedAt = now
		default:
			return err
		}
		u.UpdatedAt = now
		if u.DefaultSortKey == "" {
			u.DefaultSortKey = string(store.SortDate)
		}
		return putJSON(txn, userKey(u.ID), u)
	})
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}
