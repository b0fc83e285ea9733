// Package docstore implements the storage interface on badger. Content
// lives as JSON documents in one keyspace with flag sets and edit history
// embedded; secondary index keys provide insertion-order subscription
// listing. The in-memory mode backs the test suites.
package docstore

import (
	"context"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/edly-io/forum-sub001/internal/store"
)

type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	txn *badger.Txn // non-nil while inside Atomically
}

// Open opens (or creates) the badger database at path. With inMemory set
// the path is ignored and nothing is persisted.
func Open(path string, inMemory bool) (*Store, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	seq, err := db.GetSequence([]byte(subSeqKey), 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("subscription sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

func (s *Store) Content() store.ContentRepository            { return &contentRepo{s: s} }
func (s *Store) Votes() store.VoteRepository                 { return &voteRepo{s: s} }
func (s *Store) Subscriptions() store.SubscriptionRepository { return &subscriptionRepo{s: s} }
func (s *Store) ReadStates() store.ReadStateRepository       { return &readStateRepo{s: s} }
func (s *Store) Users() store.UserRepository                 { return &userRepo{s: s} }
func (s *Store) CourseStats() store.CourseStatRepository     { return &courseStatRepo{s: s} }

// Atomically runs fn inside a single badger update transaction. Nested
// calls join the enclosing transaction.
func (s *Store) Atomically(ctx context.Context, fn func(store.Store) error) error {
	if s.txn != nil {
		return fn(s)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return fn(&Store{db: s.db, seq: s.seq, txn: txn})
	})
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("release sequence: %w", err)
	}
	return s.db.Close()
}

func (s *Store) update(fn func(*badger.Txn) error) error {
	if s.txn != nil {
		return fn(s.txn)
	}
	return s.db.Update(fn)
}

func (s *Store) view(fn func(*badger.Txn) error) error {
	if s.txn != nil {
		return fn(s.txn)
	}
	return s.db.View(fn)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, raw)
}

// badgerLogger routes badger's internal logging through zerolog. Badger's
// info output is chatty, so it logs at debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...any) {
	log.Error().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

func (badgerLogger) Warningf(f string, v ...any) {
	log.Warn().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

func (badgerLogger) Infof(f string, v ...any) {
	log.Debug().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

func (badgerLogger) Debugf(f string, v ...any) {
	log.Debug().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}
