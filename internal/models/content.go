package models

import (
	"time"
)

// Kind discriminates the two content variants stored in the shared
// contents collection.
type Kind string

const (
	KindThread  Kind = "Thread"
	KindComment Kind = "Comment"
)

// Thread types.
const (
	ThreadTypeDiscussion = "discussion"
	ThreadTypeQuestion   = "question"
)

// Placeholder written over retired users' content.
const (
	RetiredTitle = "[deleted]"
	RetiredBody  = "[deleted]"
)

// Content is the single polymorphic entity for threads and comments. Both
// variants share one table/collection; Kind selects which of the variant
// field groups is meaningful. Slice fields live inline in the document
// backend and in side tables in the SQL backend.
type Content struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	Kind             Kind      `gorm:"size:16;not null;index:idx_kind_course" json:"kind"`
	CourseID         string    `gorm:"size:255;not null;index:idx_kind_course" json:"course_id"`
	Body             string    `gorm:"type:text" json:"body"`
	AuthorID         string    `gorm:"size:255;index" json:"author_id"`
	AuthorUsername   string    `gorm:"size:255" json:"author_username"`
	Anonymous        bool      `gorm:"default:false" json:"anonymous"`
	AnonymousToPeers bool      `gorm:"default:false" json:"anonymous_to_peers"`
	Visible          bool      `gorm:"default:true" json:"visible"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Denormalized vote summary, kept in sync with the vote ledger.
	// count == up + down, point == up - down.
	VoteCount     int `gorm:"default:0" json:"vote_count"`
	VoteUpCount   int `gorm:"default:0" json:"vote_up_count"`
	VoteDownCount int `gorm:"default:0" json:"vote_down_count"`
	VotePoint     int `gorm:"default:0" json:"vote_point"`

	// Thread fields.
	Title           string    `gorm:"size:500" json:"title,omitempty"`
	CommentableID   string    `gorm:"size:255;index" json:"commentable_id,omitempty"`
	ThreadType      string    `gorm:"size:16" json:"thread_type,omitempty"`
	GroupID         *int64    `gorm:"index" json:"group_id,omitempty"`
	Pinned          bool      `gorm:"default:false" json:"pinned"`
	Closed          bool      `gorm:"default:false" json:"closed"`
	ClosedByID      string    `gorm:"size:255" json:"closed_by_id,omitempty"`
	CloseReasonCode string    `gorm:"size:64" json:"close_reason_code,omitempty"`
	CommentCount    int       `gorm:"default:0" json:"comment_count"`
	LastActivityAt  time.Time `json:"last_activity_at"`

	// Comment fields. Depth is 0 for thread-level responses and 1 for replies.
	ThreadID          *string    `gorm:"size:36;index" json:"thread_id,omitempty"`
	ParentID          *string    `gorm:"size:36;index" json:"parent_id,omitempty"`
	Depth             int        `gorm:"default:0" json:"depth"`
	ChildCount        int        `gorm:"default:0" json:"child_count"`
	Endorsed          bool       `gorm:"default:false" json:"endorsed"`
	EndorsementUserID string     `gorm:"size:255" json:"endorsement_user_id,omitempty"`
	EndorsementTime   *time.Time `json:"endorsement_time,omitempty"`

	// Not columns: inline in the document backend, side tables in SQL.
	AbuseFlaggers           []string           `gorm:"-" json:"abuse_flaggers,omitempty"`
	HistoricalAbuseFlaggers []string           `gorm:"-" json:"historical_abuse_flaggers,omitempty"`
	EditHistory             []EditHistoryEntry `gorm:"-" json:"edit_history,omitempty"`
}

func (c *Content) IsThread() bool  { return c.Kind == KindThread }
func (c *Content) IsComment() bool { return c.Kind == KindComment }

// EditHistoryEntry records one body edit. Appended whenever an edit supplies
// the editing user.
type EditHistoryEntry struct {
	OriginalBody   string    `json:"original_body"`
	ReasonCode     string    `json:"reason_code,omitempty"`
	EditorUsername string    `json:"editor_username"`
	CreatedAt      time.Time `json:"created_at"`
}

// Reason codes accepted on a body edit.
var EditReasonCodes = []string{
	"grammar-spelling",
	"needs-clarity",
	"academic-integrity",
	"inappropriate-language",
	"format-change",
	"post-type-change",
	"contains-pii",
	"violates-guidelines",
}

func ValidEditReason(code string) bool {
	for _, c := range EditReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}
