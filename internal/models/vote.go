package models

import (
	"time"
)

// Vote directions as they appear on the wire.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

// Vote is one user's vote on one content item. The composite primary key
// enforces at most one vote per (content, user).
type Vote struct {
	ContentID string    `gorm:"primaryKey;size:36" json:"content_id"`
	UserID    string    `gorm:"primaryKey;size:255" json:"user_id"`
	Value     int       `gorm:"not null" json:"value"` // 1 or -1
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (v *Vote) Direction() string {
	if v.Value > 0 {
		return VoteUp
	}
	return VoteDown
}

// VoteValue maps a wire direction to its stored value.
func VoteValue(direction string) (int, bool) {
	switch direction {
	case VoteUp:
		return 1, true
	case VoteDown:
		return -1, true
	}
	return 0, false
}
