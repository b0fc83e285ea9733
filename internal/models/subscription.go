package models

import (
	"time"
)

// Source types a user can subscribe to.
const (
	SourceTypeThread = "thread"
)

// Subscription links a subscriber to a source. Seq is the insertion-order
// key used for stable pagination of a source's subscribers; the SQL backend
// assigns it from the sequence, the document backend from a badger sequence.
type Subscription struct {
	Seq          uint64    `gorm:"primaryKey;autoIncrement" json:"seq"`
	ID           string    `gorm:"uniqueIndex;size:36;not null" json:"id"`
	SubscriberID string    `gorm:"size:255;not null;index;uniqueIndex:idx_subscriber_source" json:"subscriber_id"`
	SourceID     string    `gorm:"size:36;not null;index:idx_source;uniqueIndex:idx_subscriber_source" json:"source_id"`
	SourceType   string    `gorm:"size:16;not null;index:idx_source;uniqueIndex:idx_subscriber_source" json:"source_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
