package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

type courseStatRepo struct {
	s *Store
}

func (r *courseStatRepo) Get(ctx context.Context, courseID, userID string) (*models.CourseStat, error) {
	stat := new(models.CourseStat)
	err := r.s.view(func(txn *badger.Txn) error {
		return getJSON(txn, statKey(courseID, userID), stat)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load course stat: %w", err)
	}
	return stat, nil
}

func (r *courseStatRepo) Adjust(ctx context.Context, courseID, userID, username string, d store.CourseStatDelta) error {
	err := r.s.update(func(txn *badger.Txn) error {
		now := time.Now().UTC()
		stat := &models.CourseStat{CourseID: courseID, UserID: userID, CreatedAt: now}
		switch err := getJSON(txn, statKey(courseID, userID), stat); {
		case err == nil, errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}
		if username != "" {
			stat.Username = username
		}
		stat.ActiveFlags += d.ActiveFlags
		stat.InactiveFlags += d.InactiveFlags
		stat.Threads += d.Threads
		stat.Responses += d.Responses
		stat.Replies += d.Replies
		if d.LastActivityAt != nil {
			stat.LastActivityAt = *d.LastActivityAt
		}
		stat.UpdatedAt = now
		return putJSON(txn, statKey(courseID, userID), stat)
	})
	if err != nil {
		return fmt.Errorf("adjust course stat: %w", err)
	}
	return nil
}

func (r *courseStatRepo) List(ctx context.Context, courseID string, sortKey store.StatsSort, skip, limit int) ([]*models.CourseStat, error) {
	stats, err := r.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	sortStats(stats, sortKey)
	return pageSlice(stats, skip, limit), nil
}

func (r *courseStatRepo) Count(ctx context.Context, courseID string) (int64, error) {
	var n int64
	err := r.s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = statKeysFor(courseID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count course stats: %w", err)
	}
	return n, nil
}

func (r *courseStatRepo) ReplaceForCourse(ctx context.Context, courseID string, stats []*models.CourseStat) error {
	err := r.s.update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = statKeysFor(courseID)
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
		now := time.Now().UTC()
		for _, stat := range stats {
			stat.CourseID = courseID
			if stat.CreatedAt.IsZero() {
				stat.CreatedAt = now
			}
			stat.UpdatedAt = now
			if err := putJSON(txn, statKey(courseID, stat.UserID), stat); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace course stats: %w", err)
	}
	return nil
}

func (r *courseStatRepo) loadCourse(courseID string) ([]*models.CourseStat, error) {
	var stats []*models.CourseStat
	err := r.s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = statKeysFor(courseID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			stat := new(models.CourseStat)
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, stat)
			})
			if err != nil {
				return err
			}
			stats = append(stats, stat)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load course stats: %w", err)
	}
	return stats, nil
}

// sortStats orders the listing descending on the selected measure. Every
// key ends with a username descending tie-break so pages stay deterministic.
func sortStats(stats []*models.CourseStat, key store.StatsSort) {
	fields := func(s *models.CourseStat) []int {
		switch key {
		case store.StatsSortFlagged:
			return []int{s.ActiveFlags, s.InactiveFlags}
		default:
			return []int{s.Threads, s.Responses, s.Replies}
		}
	}
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if key == store.StatsSortRecency {
			if !a.LastActivityAt.Equal(b.LastActivityAt) {
				return a.LastActivityAt.After(b.LastActivityAt)
			}
		} else {
			fa, fb := fields(a), fields(b)
			for k := range fa {
				if fa[k] != fb[k] {
					return fa[k] > fb[k]
				}
			}
		}
		return a.Username > b.Username
	})
}
