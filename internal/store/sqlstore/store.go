// Package sqlstore implements the storage interface on Postgres through
// gorm. Content lives in one contents table discriminated by kind; flag
// sets, edit history and per-thread read times live in side tables. All
// counter maintenance runs as atomic column updates so concurrent writers
// never lose increments.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema. The dial is retried
// with backoff so the service survives a database that is still coming up;
// everything after a successful connect fails fast.
func Open(ctx context.Context, dsn string, attempts int) (*Store, error) {
	if attempts < 1 {
		attempts = 1
	}

	var db *gorm.DB
	err := retry.Do(
		func() error {
			var err error
			db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
				Logger: logger.Default.LogMode(logger.Silent),
			})
			return err
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Uint("attempt", n+1).Err(err).Msg("postgres connect failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Content{},
		&models.Vote{},
		&models.Subscription{},
		&models.ReadState{},
		&models.CourseStat{},
		&abuseFlagger{},
		&historicalAbuseFlagger{},
		&editHistory{},
		&lastReadTime{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	log.Debug().Msg("postgres schema migrated")

	return &Store{db: db}, nil
}

func (s *Store) Content() store.ContentRepository            { return &contentRepo{db: s.db} }
func (s *Store) Votes() store.VoteRepository                 { return &voteRepo{db: s.db} }
func (s *Store) Subscriptions() store.SubscriptionRepository { return &subscriptionRepo{db: s.db} }
func (s *Store) ReadStates() store.ReadStateRepository       { return &readStateRepo{db: s.db} }
func (s *Store) Users() store.UserRepository                 { return &userRepo{db: s.db} }
func (s *Store) CourseStats() store.CourseStatRepository     { return &courseStatRepo{db: s.db} }

// Atomically runs fn inside a single SQL transaction.
func (s *Store) Atomically(ctx context.Context, fn func(store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql db: %w", err)
	}
	return sqlDB.Close()
}
