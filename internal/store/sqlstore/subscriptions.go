package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edly-io/forum-sub001/internal/models"
)

type subscriptionRepo struct {
	db *gorm.DB
}

func (r *subscriptionRepo) Get(ctx context.Context, subscriberID, sourceID, sourceType string) (*models.Subscription, error) {
	sub := new(models.Subscription)
	err := r.db.WithContext(ctx).
		First(sub, "subscriber_id = ? AND source_id = ? AND source_type = ?", subscriberID, sourceID, sourceType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
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
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, subscriberID, sourceID, sourceType string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("subscriber_id = ? AND source_id = ? AND source_type = ?", subscriberID, sourceID, sourceType).
		Delete(&models.Subscription{})
	if res.Error != nil {
		return false, fmt.Errorf("delete subscription: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *subscriptionRepo) ListBySource(ctx context.Context, sourceID, sourceType string, skip, limit int) ([]*models.Subscription, error) {
	tx := r.db.WithContext(ctx).
		Where("source_id = ? AND source_type = ?", sourceID, sourceType).
		Order("seq ASC")
	if skip > 0 {
		tx = tx.Offset(skip)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var subs []*models.Subscription
	if err := tx.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (r *subscriptionRepo) CountBySource(ctx context.Context, sourceID, sourceType string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("source_id = ? AND source_type = ?", sourceID, sourceType).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return n, nil
}

func (r *subscriptionRepo) SourceIDs(ctx context.Context, subscriberID, sourceType string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("subscriber_id = ? AND source_type = ?", subscriberID, sourceType).
		Order("seq ASC").
		Pluck("source_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("subscribed source ids: %w", err)
	}
	return ids, nil
}

func (r *subscriptionRepo) DeleteBySource(ctx context.Context, sourceID, sourceType string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("source_id = ? AND source_type = ?", sourceID, sourceType).
		Delete(&models.Subscription{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete subscriptions by source: %w", res.Error)
	}
	return res.RowsAffected, nil
}
