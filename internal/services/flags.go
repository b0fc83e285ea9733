package services

import (
	"context"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

// FlagService tracks abuse reports per content item. Set transitions feed
// the author's course stats: the first active flag counts against
// active_flags, clearing the active set moves the content over to
// inactive_flags.
type FlagService struct {
	store store.Store
	users *UserService
}

func NewFlagService(st store.Store, users *UserService) *FlagService {
	return &FlagService{store: st, users: users}
}

// Flag adds userID to the content's active flaggers. Flagging twice keeps
// the set at one entry.
func (s *FlagService) Flag(ctx context.Context, contentID, userID string, kind models.Kind) (*models.Content, error) {
	if _, err := s.users.Require(ctx, userID); err != nil {
		return nil, err
	}
	c, err := getContent(ctx, s.store, contentID, kind)
	if err != nil {
		return nil, err
	}

	first, err := s.store.Content().AddAbuseFlagger(ctx, contentID, userID)
	if err != nil {
		return nil, err
	}
	if first && attributed(c) {
		err = s.store.CourseStats().Adjust(ctx, c.CourseID, c.AuthorID, c.AuthorUsername,
			store.CourseStatDelta{ActiveFlags: 1})
		if err != nil {
			return nil, err
		}
	}
	return s.store.Content().Get(ctx, contentID)
}

// Unflag moves userID (or, with all set, every active flagger) from the
// active set into the historical set. Unflagging a user who never flagged
// the content is a no-op.
func (s *FlagService) Unflag(ctx context.Context, contentID, userID string, all bool, kind models.Kind) (*models.Content, error) {
	if _, err := s.users.Require(ctx, userID); err != nil {
		return nil, err
	}
	c, err := getContent(ctx, s.store, contentID, kind)
	if err != nil {
		return nil, err
	}

	hadHistorical := len(c.HistoricalAbuseFlaggers) > 0
	moved := contains(c.AbuseFlaggers, userID)
	if all {
		moved = len(c.AbuseFlaggers) > 0
	}

	cleared, err := s.store.Content().RemoveAbuseFlagger(ctx, contentID, userID, all)
	if err != nil {
		return nil, err
	}

	if moved && attributed(c) {
		delta := store.CourseStatDelta{}
		if !hadHistorical {
			delta.InactiveFlags = 1
		}
		if cleared {
			delta.ActiveFlags = -1
		}
		if delta != (store.CourseStatDelta{}) {
			err = s.store.CourseStats().Adjust(ctx, c.CourseID, c.AuthorID, c.AuthorUsername, delta)
			if err != nil {
				return nil, err
			}
		}
	}
	return s.store.Content().Get(ctx, contentID)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
