package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

type courseStatRepo struct {
	db *gorm.DB
}

func (r *courseStatRepo) Get(ctx context.Context, courseID, userID string) (*models.CourseStat, error) {
	stat := new(models.CourseStat)
	err := r.db.WithContext(ctx).First(stat, "course_id = ? AND user_id = ?", courseID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load course stat: %w", err)
	}
	return stat, nil
}

func (r *courseStatRepo) Adjust(ctx context.Context, courseID, userID, username string, d store.CourseStatDelta) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.CourseStat{
		CourseID:  courseID,
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
	if err != nil {
		return fmt.Errorf("ensure course stat: %w", err)
	}

	values := map[string]any{"updated_at": now}
	if d.ActiveFlags != 0 {
		values["active_flags"] = gorm.Expr("active_flags + ?", d.ActiveFlags)
	}
	if d.InactiveFlags != 0 {
		values["inactive_flags"] = gorm.Expr("inactive_flags + ?", d.InactiveFlags)
	}
	if d.Threads != 0 {
		values["threads"] = gorm.Expr("threads + ?", d.Threads)
	}
	if d.Responses != 0 {
		values["responses"] = gorm.Expr("responses + ?", d.Responses)
	}
	if d.Replies != 0 {
		values["replies"] = gorm.Expr("replies + ?", d.Replies)
	}
	if d.LastActivityAt != nil {
		values["last_activity_at"] = *d.LastActivityAt
	}
	if username != "" {
		values["username"] = username
	}
	err = r.db.WithContext(ctx).Model(&models.CourseStat{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		UpdateColumns(values).Error
	if err != nil {
		return fmt.Errorf("adjust course stat: %w", err)
	}
	return nil
}

func (r *courseStatRepo) List(ctx context.Context, courseID string, sort store.StatsSort, skip, limit int) ([]*models.CourseStat, error) {
	tx := r.db.WithContext(ctx).Where("course_id = ?", courseID).Order(statsOrder(sort))
	if skip > 0 {
		tx = tx.Offset(skip)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var stats []*models.CourseStat
	if err := tx.Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("list course stats: %w", err)
	}
	return stats, nil
}

func (r *courseStatRepo) Count(ctx context.Context, courseID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CourseStat{}).Where("course_id = ?", courseID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count course stats: %w", err)
	}
	return n, nil
}

func (r *courseStatRepo) ReplaceForCourse(ctx context.Context, courseID string, stats []*models.CourseStat) error {
	err := r.db.WithContext(ctx).Where("course_id = ?", courseID).Delete(&models.CourseStat{}).Error
	if err != nil {
		return fmt.Errorf("clear course stats: %w", err)
	}
	if len(stats) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, stat := range stats {
		stat.ID = 0
		stat.CourseID = courseID
		if stat.CreatedAt.IsZero() {
			stat.CreatedAt = now
		}
		stat.UpdatedAt = now
	}
	if err := r.db.WithContext(ctx).CreateInBatches(stats, 100).Error; err != nil {
		return fmt.Errorf("replace course stats: %w", err)
	}
	return nil
}

// statsOrder maps a stats sort to its ORDER BY clause; username descending
// keeps equal rows in a stable order across pages.
func statsOrder(sort store.StatsSort) string {
	switch sort {
	case store.StatsSortRecency:
		return "last_activity_at DESC, username DESC"
	case store.StatsSortFlagged:
		return "active_flags DESC, inactive_flags DESC, username DESC"
	default:
		return "threads DESC, responses DESC, replies DESC, username DESC"
	}
}
