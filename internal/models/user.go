package models

import (
	"time"
)

// User is the read-mostly identity record. The forum never owns accounts;
// callers register users by their external id and cached display name.
type User struct {
	ID             string    `gorm:"primaryKey;size:255" json:"id"`
	Username       string    `gorm:"size:255;not null;index" json:"username"`
	DefaultSortKey string    `gorm:"size:32;default:date" json:"default_sort_key"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
