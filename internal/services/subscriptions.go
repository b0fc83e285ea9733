package services

import (
	"context"
	"fmt"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

// SubscriptionService manages who follows which thread. Subscriptions are
// unique per (subscriber, source) and listed in insertion order.
type SubscriptionService struct {
	store store.Store
	users *UserService
}

func NewSubscriptionService(st store.Store, users *UserService) *SubscriptionService {
	return &SubscriptionService{store: st, users: users}
}

// SubscriptionPage is one page of a source's subscriptions.
type SubscriptionPage struct {
	Collection         []*models.Subscription
	Page               int
	NumPages           int
	SubscriptionsCount int64
}

// Subscribe makes subscriberID follow the given thread. Subscribing twice
// returns the existing record.
func (s *SubscriptionService) Subscribe(ctx context.Context, subscriberID, sourceID string) (*models.Subscription, error) {
	if _, err := s.users.Require(ctx, subscriberID); err != nil {
		return nil, err
	}
	if _, err := getContent(ctx, s.store, sourceID, models.KindThread); err != nil {
		return nil, err
	}

	existing, err := s.store.Subscriptions().Get(ctx, subscriberID, sourceID, models.SourceTypeThread)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sub := &models.Subscription{
		SubscriberID: subscriberID,
		SourceID:     sourceID,
		SourceType:   models.SourceTypeThread,
	}
	if err := s.store.Subscriptions().Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes the subscription and returns it. A missing
// subscription is an error, unlike the idempotent subscribe path.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, subscriberID, sourceID string) (*models.Subscription, error) {
	if _, err := s.users.Require(ctx, subscriberID); err != nil {
		return nil, err
	}
	if _, err := getContent(ctx, s.store, sourceID, models.KindThread); err != nil {
		return nil, err
	}

	existing, err := s.store.Subscriptions().Get(ctx, subscriberID, sourceID, models.SourceTypeThread)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("subscription of %s to %s: %w", subscriberID, sourceID, store.ErrNotFound)
	}
	if _, err := s.store.Subscriptions().Delete(ctx, subscriberID, sourceID, models.SourceTypeThread); err != nil {
		return nil, err
	}
	return existing, nil
}

// ListSubscribers pages through a thread's subscriptions in the order
// they were created. Pages past the end come back empty.
func (s *SubscriptionService) ListSubscribers(ctx context.Context, sourceID string, page, perPage int) (*SubscriptionPage, error) {
	total, err := s.store.Subscriptions().CountBySource(ctx, sourceID, models.SourceTypeThread)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.Subscriptions().ListBySource(ctx, sourceID, models.SourceTypeThread,
		(page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	return &SubscriptionPage{
		Collection:         subs,
		Page:               page,
		NumPages:           pageCount(total, perPage),
		SubscriptionsCount: total,
	}, nil
}
