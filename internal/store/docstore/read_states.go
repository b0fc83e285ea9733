package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/edly-io/forum-sub001/internal/models"
)

type readStateRepo struct {
	s *Store
}

func (r *readStateRepo) Get(ctx context.Context, userID, courseID string) (map[string]time.Time, error) {
	state := new(models.ReadState)
	err := r.s.view(func(txn *badger.Txn) error {
		return getJSON(txn, readKey(userID, courseID), state)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return map[string]time.Time{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load read state: %w", err)
	}
	if state.Threads == nil {
		state.Threads = map[string]time.Time{}
	}
	return state.Threads, nil
}

func (r *readStateRepo) MarkRead(ctx context.Context, userID, courseID, threadID string, at time.Time) error {
	err := r.s.update(func(txn *badger.Txn) error {
		state := &models.ReadState{UserID: userID, CourseID: courseID}
		switch err := getJSON(txn, readKey(userID, courseID), state); {
		case err == nil, errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}
		if state.Threads == nil {
			state.Threads = map[string]time.Time{}
		}
		state.Threads[threadID] = at
		return putJSON(txn, readKey(userID, courseID), state)
	})
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
