package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/edly-io/forum-sub001/internal/models"
)

type subscriptionRepo struct {
	s *Store
}

func (r *subscriptionRepo) Get(ctx context.Context, subscriberID, sourceID, sourceType string) (*models.Subscription, error) {
	sub := new(models.Subscription)
	err := r.s.view(func(txn *badger.Txn) error {
		return getJSON(txn, subKey(subscriberID, sourceType, sourceID), sub)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	seq, err := r.s.seq.Next()
	if err != nil {
		return fmt.Errorf("next subscription seq: %w", err)
	}
	sub.Seq = seq
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	err = r.s.update(func(txn *badger.Txn) error {
		key := subKey(sub.SubscriberID, sub.SourceType, sub.SourceID)
		if err := putJSON(txn, key, sub); err != nil {
			return err
		}
		// The index entry points back at the primary key.
		return txn.Set(subIdxKey(sub.SourceType, sub.SourceID, sub.Seq), key)
	})
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, subscriberID, sourceID, sourceType string) (bool, error) {
	deleted := false
	err := r.s.update(func(txn *badger.Txn) error {
		var sub models.Subscription
		switch err := getJSON(txn, subKey(subscriberID, sourceType, sourceID), &sub); {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}
		if err := txn.Delete(subKey(subscriberID, sourceType, sourceID)); err != nil {
			return err
		}
		if err := txn.Delete(subIdxKey(sourceType, sourceID, sub.Seq)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return deleted, nil
}

func (r *subscriptionRepo) ListBySource(ctx context.Context, sourceID, sourceType string, skip, limit int) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := r.s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = subIdxKeysFor(sourceType, sourceID)
		it := txn.NewIterator(opts)
		defer it.Close()
		seen := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if seen < skip {
				seen++
				continue
			}
			if limit > 0 && len(subs) >= limit {
				break
			}
			var primary []byte
			err := it.Item().Value(func(val []byte) error {
				primary = append([]byte(nil), val...)
				return nil
			})
			if err != nil {
				return err
			}
			sub := new(models.Subscription)
			if err := getJSON(txn, primary, sub); err != nil {
				return err
			}
			subs = append(subs, sub)
			seen++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (r *subscriptionRepo) CountBySource(ctx context.Context, sourceID, sourceType string) (int64, error) {
	var n int64
	err := r.s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = subIdxKeysFor(sourceType, sourceID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return n, nil
}

func (r *subscriptionRepo) SourceIDs(ctx context.Context, subscriberID, sourceType string) ([]string, error) {
	var ids []string
	err := r.s.view(func(txn *badger.Txn) error {
		prefix := subKeysFor(subscriberID, sourceType)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("subscribed source ids: %w", err)
	}
	return ids, nil
}

func (r *subscriptionRepo) DeleteBySource(ctx context.Context, sourceID, sourceType string) (int64, error) {
	var n int64
	err := r.s.update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = subIdxKeysFor(sourceType, sourceID)
		it := txn.NewIterator(opts)
		var idxKeys, primaryKeys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			idxKeys = append(idxKeys, it.Item().KeyCopy(nil))
			err := it.Item().Value(func(val []byte) error {
				primaryKeys = append(primaryKeys, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()
		for i := range idxKeys {
			if err := txn.Delete(primaryKeys[i]); err != nil {
				return err
			}
			if err := txn.Delete(idxKeys[i]); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete subscriptions by source: %w", err)
	}
	return n, nil
}
