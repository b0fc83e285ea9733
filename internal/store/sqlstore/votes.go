package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edly-io/forum-sub001/internal/models"
)

type voteRepo struct {
	db *gorm.DB
}

func (r *voteRepo) Get(ctx context.Context, contentID, userID string) (*models.Vote, error) {
	v := new(models.Vote)
	err := r.db.WithContext(ctx).First(v, "content_id = ? AND user_id = ?", contentID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load vote: %w", err)
	}
	return v, nil
}

func (r *voteRepo) Save(ctx context.Context, v *models.Vote) error {
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"value": v.Value, "updated_at": now}),
	}).Create(v).Error
	if err != nil {
		return fmt.Errorf("save vote: %w", err)
	}
	return nil
}

func (r *voteRepo) Delete(ctx context.Context, contentID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("content_id = ? AND user_id = ?", contentID, userID).Delete(&models.Vote{})
	if res.Error != nil {
		return false, fmt.Errorf("delete vote: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *voteRepo) Tally(ctx context.Context, contentID string) (int, int, error) {
	var up, down int64
	err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("content_id = ? AND value > 0", contentID).Count(&up).Error
	if err != nil {
		return 0, 0, fmt.Errorf("tally up votes: %w", err)
	}
	err = r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("content_id = ? AND value < 0", contentID).Count(&down).Error
	if err != nil {
		return 0, 0, fmt.Errorf("tally down votes: %w", err)
	}
	return int(up), int(down), nil
}

func (r *voteRepo) ContentIDsByUser(ctx context.Context, userID string) ([]string, []string, error) {
	var up, down []string
	err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("user_id = ? AND value > 0", userID).Order("content_id").Pluck("content_id", &up).Error
	if err != nil {
		return nil, nil, fmt.Errorf("upvoted content ids: %w", err)
	}
	err = r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("user_id = ? AND value < 0", userID).Order("content_id").Pluck("content_id", &down).Error
	if err != nil {
		return nil, nil, fmt.Errorf("downvoted content ids: %w", err)
	}
	return up, down, nil
}

func (r *voteRepo) DeleteForContent(ctx context.Context, contentID string) error {
	err := r.db.WithContext(ctx).Where("content_id = ?", contentID).Delete(&models.Vote{}).Error
	if err != nil {
		return fmt.Errorf("delete votes for content: %w", err)
	}
	return nil
}
