package services

import (
	"context"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

// VoteService keeps the vote ledger and the denormalized summaries on
// content in step. The ledger write and the summary delta always land in
// the same transaction.
type VoteService struct {
	store      store.Store
	users      *UserService
	reconciler *Reconciler
}

func NewVoteService(st store.Store, users *UserService, rec *Reconciler) *VoteService {
	return &VoteService{store: st, users: users, reconciler: rec}
}

// Update records a vote, replacing the user's previous vote on the same
// content if their direction changed. Voting the same way twice is a
// no-op. Returns the content with its updated summary.
func (s *VoteService) Update(ctx context.Context, contentID, userID, direction string, kind models.Kind) (*models.Content, error) {
	value, ok := models.VoteValue(direction)
	if !ok {
		return nil, store.Validationf("invalid vote value: %q", direction)
	}
	if _, err := s.users.Require(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := getContent(ctx, s.store, contentID, kind); err != nil {
		return nil, err
	}

	err := s.store.Atomically(ctx, func(tx store.Store) error {
		existing, err := tx.Votes().Get(ctx, contentID, userID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Value == value {
			return nil
		}
		up, down := 0, 0
		if existing != nil {
			if existing.Value > 0 {
				up--
			} else {
				down--
			}
		}
		if value > 0 {
			up++
		} else {
			down++
		}
		vote := &models.Vote{ContentID: contentID, UserID: userID, Value: value}
		if err := tx.Votes().Save(ctx, vote); err != nil {
			return err
		}
		return tx.Content().ApplyVoteDelta(ctx, contentID, up, down)
	})
	if err != nil {
		return nil, err
	}

	s.reconciler.ScheduleContent(contentID)
	return s.store.Content().Get(ctx, contentID)
}

// Remove withdraws the user's vote. Removing a vote that was never cast
// succeeds without touching the summary.
func (s *VoteService) Remove(ctx context.Context, contentID, userID string, kind models.Kind) (*models.Content, error) {
	if _, err := s.users.Require(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := getContent(ctx, s.store, contentID, kind); err != nil {
		return nil, err
	}

	err := s.store.Atomically(ctx, func(tx store.Store) error {
		existing, err := tx.Votes().Get(ctx, contentID, userID)
		if err != nil || existing == nil {
			return err
		}
		if _, err := tx.Votes().Delete(ctx, contentID, userID); err != nil {
			return err
		}
		up, down := 0, 0
		if existing.Value > 0 {
			up--
		} else {
			down--
		}
		return tx.Content().ApplyVoteDelta(ctx, contentID, up, down)
	})
	if err != nil {
		return nil, err
	}

	s.reconciler.ScheduleContent(contentID)
	return s.store.Content().Get(ctx, contentID)
}
