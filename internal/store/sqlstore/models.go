package sqlstore

import "time"

// Side tables keyed by content id. The contents row itself never stores
// flagger or edit-history collections; these rows are joined in on read.

type abuseFlagger struct {
	ID        uint      `gorm:"primaryKey"`
	ContentID string    `gorm:"size:36;not null;uniqueIndex:idx_abuse_content_user;index:idx_abuse_content"`
	UserID    string    `gorm:"size:255;not null;uniqueIndex:idx_abuse_content_user"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (abuseFlagger) TableName() string { return "abuse_flaggers" }

type historicalAbuseFlagger struct {
	ID        uint      `gorm:"primaryKey"`
	ContentID string    `gorm:"size:36;not null;uniqueIndex:idx_hist_abuse_content_user;index:idx_hist_abuse_content"`
	UserID    string    `gorm:"size:255;not null;uniqueIndex:idx_hist_abuse_content_user"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (historicalAbuseFlagger) TableName() string { return "historical_abuse_flaggers" }

type editHistory struct {
	ID             uint      `gorm:"primaryKey"`
	ContentID      string    `gorm:"size:36;not null;index:idx_edit_history_content"`
	OriginalBody   string    `gorm:"type:text"`
	ReasonCode     string    `gorm:"size:64"`
	EditorUsername string    `gorm:"size:255"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (editHistory) TableName() string { return "edit_histories" }

// lastReadTime records when a user last opened one thread; rows hang off
// the per-course read_states row.
type lastReadTime struct {
	ID          uint      `gorm:"primaryKey"`
	ReadStateID uint      `gorm:"not null;uniqueIndex:idx_read_state_thread"`
	ThreadID    string    `gorm:"size:36;not null;uniqueIndex:idx_read_state_thread"`
	Timestamp   time.Time `gorm:"not null"`
}

func (lastReadTime) TableName() string { return "last_read_times" }
