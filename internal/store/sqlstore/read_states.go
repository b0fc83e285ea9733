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

type readStateRepo struct {
	db *gorm.DB
}

func (r *readStateRepo) Get(ctx context.Context, userID, courseID string) (map[string]time.Time, error) {
	var state models.ReadState
	err := r.db.WithContext(ctx).First(&state, "user_id = ? AND course_id = ?", userID, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[string]time.Time{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load read state: %w", err)
	}

	var rows []lastReadTime
	if err := r.db.WithContext(ctx).Where("read_state_id = ?", state.ID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load read times: %w", err)
	}
	threads := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		threads[row.ThreadID] = row.Timestamp
	}
	return threads, nil
}

func (r *readStateRepo) MarkRead(ctx context.Context, userID, courseID, threadID string, at time.Time) error {
	state := models.ReadState{UserID: userID, CourseID: courseID}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		FirstOrCreate(&state).Error
	if err != nil {
		return fmt.Errorf("ensure read state: %w", err)
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "read_state_id"}, {Name: "thread_id"}},
		DoUpdates: clause.Assignments(map[string]any{"timestamp": at}),
	}).Create(&lastReadTime{ReadStateID: state.ID, ThreadID: threadID, Timestamp: at}).Error
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
