package models

import (
	"time"
)

// CourseStat is one user's denormalized engagement counters for a course.
// Maintained incrementally on content and flag mutations; rebuilt from the
// ground truth by the reconciler.
type CourseStat struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	CourseID       string    `gorm:"size:255;not null;index;uniqueIndex:idx_course_user" json:"course_id"`
	UserID         string    `gorm:"size:255;not null;uniqueIndex:idx_course_user" json:"user_id"`
	Username       string    `gorm:"size:255" json:"username"`
	ActiveFlags    int       `gorm:"default:0" json:"active_flags"`
	InactiveFlags  int       `gorm:"default:0" json:"inactive_flags"`
	Threads        int       `gorm:"default:0" json:"threads"`
	Responses      int       `gorm:"default:0" json:"responses"`
	Replies        int       `gorm:"default:0" json:"replies"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
