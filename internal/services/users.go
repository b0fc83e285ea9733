package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
	"github.com/edly-io/forum-sub001/internal/utils"
)

const (
	userCacheSize = 500
	userCacheTTL  = 30 * time.Second
)

// UserService owns the identity records callers register before using the
// forum. Lookups ride a small TTL cache; every write path invalidates it.
type UserService struct {
	store store.Store
	cache *utils.TTLCache[string, *models.User]
}

func NewUserService(st store.Store) *UserService {
	cache, err := utils.NewTTLCache[string, *models.User](userCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		log.Fatal().Err(err).Msg("create user cache")
	}
	return &UserService{store: st, cache: cache}
}

// UserInfo is a user record plus the optional view data the LMS asks for:
// the complete voting/subscription footprint and per-course authored
// counts.
type UserInfo struct {
	*models.User

	Complete            bool
	SubscribedThreadIDs []string
	UpvotedIDs          []string
	DownvotedIDs        []string

	CourseID      string
	ThreadsCount  int
	CommentsCount int
}

// Require resolves a user id, caching hits briefly. Unknown ids map to
// ErrNotFound.
func (s *UserService) Require(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, store.Validationf("user_id is required")
	}
	if u, ok := s.cache.Get(id); ok {
		return u, nil
	}
	u, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(id, u, userCacheTTL)
	return u, nil
}

// Create registers (or refreshes) a user record.
func (s *UserService) Create(ctx context.Context, id, username string) (*models.User, error) {
	if id == "" {
		return nil, store.Validationf("id is required")
	}
	if username == "" {
		return nil, store.Validationf("username is required")
	}
	u := &models.User{ID: id, Username: username}
	if err := s.store.Users().Save(ctx, u); err != nil {
		return nil, err
	}
	s.cache.Remove(id)
	return u, nil
}

// Update changes the mutable user fields. Nil pointers leave a field
// untouched.
func (s *UserService) Update(ctx context.Context, id string, username, defaultSortKey *string) (*models.User, error) {
	u, err := s.Require(ctx, id)
	if err != nil {
		return nil, err
	}
	if username != nil && *username != "" {
		u.Username = *username
	}
	if defaultSortKey != nil && *defaultSortKey != "" {
		u.DefaultSortKey = *defaultSortKey
	}
	if err := s.store.Users().Save(ctx, u); err != nil {
		return nil, err
	}
	s.cache.Remove(id)
	return u, nil
}

// Info loads a user together with the requested view data. With complete
// set the subscription and vote footprints are included; with a course id
// the per-course authored thread and comment counts are.
func (s *UserService) Info(ctx context.Context, id, courseID string, complete bool) (*UserInfo, error) {
	u, err := s.Require(ctx, id)
	if err != nil {
		return nil, err
	}
	info := &UserInfo{User: u, Complete: complete, CourseID: courseID}

	if complete {
		subscribed, err := s.store.Subscriptions().SourceIDs(ctx, id, models.SourceTypeThread)
		if err != nil {
			return nil, err
		}
		up, down, err := s.store.Votes().ContentIDsByUser(ctx, id)
		if err != nil {
			return nil, err
		}
		info.SubscribedThreadIDs = emptyIfNil(subscribed)
		info.UpvotedIDs = emptyIfNil(up)
		info.DownvotedIDs = emptyIfNil(down)
	}

	if courseID != "" {
		counts, err := s.store.Content().AuthorCounts(ctx, courseID, id)
		if err != nil {
			return nil, err
		}
		info.ThreadsCount = counts.Threads
		info.CommentsCount = counts.Responses + counts.Replies
	}
	return info, nil
}

// MarkRead stamps the thread as read for the user at the current time.
func (s *UserService) MarkRead(ctx context.Context, userID, threadID string) error {
	if _, err := s.Require(ctx, userID); err != nil {
		return err
	}
	thread, err := getContent(ctx, s.store, threadID, models.KindThread)
	if err != nil {
		return err
	}
	return s.store.ReadStates().MarkRead(ctx, userID, thread.CourseID, threadID, time.Now().UTC())
}

// Retire scrubs a departing user: the account and all authored content
// take the retired username, bodies and titles become placeholders, and
// every subscription is dropped.
func (s *UserService) Retire(ctx context.Context, id, retiredUsername string) error {
	if retiredUsername == "" {
		return store.Validationf("retired_username is required")
	}
	u, err := s.Require(ctx, id)
	if err != nil {
		return err
	}

	u.Username = retiredUsername
	if err := s.store.Users().Save(ctx, u); err != nil {
		return err
	}
	s.cache.Remove(id)

	sourceIDs, err := s.store.Subscriptions().SourceIDs(ctx, id, models.SourceTypeThread)
	if err != nil {
		return err
	}
	for _, sourceID := range sourceIDs {
		if _, err := s.store.Subscriptions().Delete(ctx, id, sourceID, models.SourceTypeThread); err != nil {
			return fmt.Errorf("drop subscription to %s: %w", sourceID, err)
		}
	}

	n, err := s.store.Content().RetireContent(ctx, id, retiredUsername)
	if err != nil {
		return err
	}
	log.Info().Str("user_id", id).Int64("contents", n).Msg("user retired")
	return nil
}

// ReplaceUsername renames the user and rewrites the cached author name on
// everything they wrote.
func (s *UserService) ReplaceUsername(ctx context.Context, id, newUsername string) error {
	if newUsername == "" {
		return store.Validationf("new_username is required")
	}
	u, err := s.Require(ctx, id)
	if err != nil {
		return err
	}

	u.Username = newUsername
	if err := s.store.Users().Save(ctx, u); err != nil {
		return err
	}
	s.cache.Remove(id)

	if _, err := s.store.Content().ReplaceAuthorUsername(ctx, id, newUsername); err != nil {
		return err
	}
	return nil
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
