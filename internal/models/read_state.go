package models

import (
	"time"
)

// ReadState tracks which threads a user has read in a course. Threads maps
// thread id to the last-read time; a thread missing from the map has never
// been read. Stored as rows in the SQL backend, as one document per
// (user, course) in the document backend.
type ReadState struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	UserID   string `gorm:"size:255;not null;uniqueIndex:idx_user_course" json:"user_id"`
	CourseID string `gorm:"size:255;not null;uniqueIndex:idx_user_course" json:"course_id"`

	Threads map[string]time.Time `gorm:"-" json:"threads"`
}
