// Package store defines the storage interface shared by the SQL and
// document backends. Services are handed a Store at construction time and
// never learn which implementation is behind it.
package store

import (
	"context"
	"time"

	"github.com/edly-io/forum-sub001/internal/models"
)

// Store bundles the per-entity repositories of one backend.
type Store interface {
	Content() ContentRepository
	Votes() VoteRepository
	Subscriptions() SubscriptionRepository
	ReadStates() ReadStateRepository
	Users() UserRepository
	CourseStats() CourseStatRepository

	// Atomically runs fn against a transactional view of the store where
	// the backend supports one (SQL transaction, badger update txn).
	// Mutations inside fn become visible together.
	Atomically(ctx context.Context, fn func(Store) error) error

	Close() error
}

// SortKey selects the thread listing order. Unknown keys fall back to
// SortDate.
type SortKey string

const (
	SortDate     SortKey = "date"     // created_at
	SortActivity SortKey = "activity" // last_activity_at
	SortVotes    SortKey = "votes"    // vote point
	SortComments SortKey = "comments" // comment count
)

func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortActivity, SortVotes, SortComments:
		return SortKey(s)
	default:
		return SortDate
	}
}

// ThreadFilter restricts a thread query. A nil IDs slice means no id
// restriction; an empty non-nil slice matches nothing.
type ThreadFilter struct {
	CourseID         string
	IDs              []string
	CommentableIDs   []string
	AuthorID         string
	ExcludeAnonymous bool // with AuthorID: drop anonymous / anonymous-to-peers threads
	ThreadType       string
	GroupIDs         []int64 // match group in set or no group at all
	Unresponded      bool    // comment_count == 0
	Unanswered       bool    // question threads without an endorsed comment
}

// ThreadQuery orders and pages a filtered thread set. Threads always sort
// pinned-first descending on the mapped sort field; every key except date
// and activity gets a created_at descending tie-break. Limit <= 0 means no
// limit.
type ThreadQuery struct {
	Filter ThreadFilter
	Sort   SortKey
	Skip   int
	Limit  int
}

// CommentFilter restricts a comment query within the shared collection.
type CommentFilter struct {
	ThreadID        string
	ParentID        *string // direct children of one comment
	RootsOnly       bool    // parent_id is null
	AuthorID        string
	ExcludeAuthorID string
	CreatedSince    *time.Time // created_at >= t
	Endorsed        *bool
	Flagged         bool // nonempty active flagger set
}

// CommentQuery orders comments by created_at, ascending when Ascending is
// set, and pages with Skip/Limit (Limit <= 0 means no limit).
type CommentQuery struct {
	Filter    CommentFilter
	Ascending bool
	Skip      int
	Limit     int
}

// ContentUpdate is a field-level partial update. Nil pointers leave the
// stored value untouched, so concurrent updates to disjoint fields never
// clobber each other.
type ContentUpdate struct {
	Body             *string
	Title            *string
	Anonymous        *bool
	AnonymousToPeers *bool
	Visible          *bool
	AuthorUsername   *string
	CommentableID    *string
	ThreadType       *string
	GroupID          *int64
	Pinned           *bool
	Closed           *bool
	ClosedByID       *string
	CloseReasonCode  *string
	LastActivityAt   *time.Time

	Endorsed          *bool
	EndorsementUserID *string
	EndorsementTime   *time.Time
	ClearEndorsement  bool

	// AppendEdit adds one entry to the content's edit history.
	AppendEdit *models.EditHistoryEntry
}

// AuthorCounts aggregates one author's footprint in a course, used for user
// info responses and course-stat rebuilds.
type AuthorCounts struct {
	Threads        int
	Responses      int // root comments
	Replies        int // nested comments
	ActiveFlags    int // content items with a nonempty active flagger set
	InactiveFlags  int // content items with a nonempty historical flagger set
	LastActivityAt time.Time
}

// ContentRepository stores both content variants. Find results always carry
// the active flagger set; historical flaggers and edit history are only
// guaranteed on Get.
type ContentRepository interface {
	// Insert stores c, assigning a fresh id when c.ID is empty.
	Insert(ctx context.Context, c *models.Content) error
	Get(ctx context.Context, id string) (*models.Content, error)
	// Update merges the given fields and reports the affected count.
	// Unknown ids return ErrNotFound.
	Update(ctx context.Context, id string, upd ContentUpdate) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)

	FindThreads(ctx context.Context, q ThreadQuery) ([]*models.Content, error)
	CountThreads(ctx context.Context, f ThreadFilter) (int64, error)
	FindComments(ctx context.Context, q CommentQuery) ([]*models.Content, error)
	CountComments(ctx context.Context, f CommentFilter) (int64, error)

	// ApplyVoteDelta shifts the denormalized vote summary atomically;
	// count and point are derived from the up/down deltas.
	ApplyVoteDelta(ctx context.Context, id string, up, down int) error
	// SetVoteCounts overwrites the summary (reconciliation).
	SetVoteCounts(ctx context.Context, id string, up, down int) error
	AdjustCommentCount(ctx context.Context, threadID string, delta int) error
	AdjustChildCount(ctx context.Context, commentID string, delta int) error
	SetCounts(ctx context.Context, id string, commentCount, childCount int) error
	// TouchThread advances a thread's last activity timestamp.
	TouchThread(ctx context.Context, threadID string, at time.Time) error

	// AddAbuseFlagger idempotently adds userID to the active set and
	// reports whether the set went from empty to nonempty.
	AddAbuseFlagger(ctx context.Context, id, userID string) (first bool, err error)
	// RemoveAbuseFlagger moves userID (or with all set, every active
	// flagger) into the historical set and reports whether the active set
	// went from nonempty to empty.
	RemoveAbuseFlagger(ctx context.Context, id, userID string, all bool) (cleared bool, err error)
	// FlaggedThreadIDs resolves threads carrying active flags themselves
	// or on any of their comments.
	FlaggedThreadIDs(ctx context.Context, courseID string) ([]string, error)
	// FlaggedCounts returns, per thread id, how many content items of the
	// thread (itself included) carry active flags.
	FlaggedCounts(ctx context.Context, threadIDs []string) (map[string]int, error)
	// EndorsedThreadIDs reports which of the given threads have at least
	// one endorsed comment.
	EndorsedThreadIDs(ctx context.Context, threadIDs []string) (map[string]bool, error)
	// ActiveThreadIDs resolves the threads an author participated in.
	ActiveThreadIDs(ctx context.Context, courseID, authorID string) ([]string, error)
	AuthorCounts(ctx context.Context, courseID, authorID string) (AuthorCounts, error)
	// CourseAuthors lists the distinct author ids with content in a course.
	CourseAuthors(ctx context.Context, courseID string) ([]string, error)

	// RetireContent blanks an author's bodies and titles and rewrites the
	// cached username.
	RetireContent(ctx context.Context, authorID, retiredUsername string) (int64, error)
	ReplaceAuthorUsername(ctx context.Context, authorID, username string) (int64, error)
	// DeleteThreadComments removes every comment of a thread and returns
	// the deleted comment ids.
	DeleteThreadComments(ctx context.Context, threadID string) ([]string, error)
}

// VoteRepository owns the vote ledger. Get returns (nil, nil) when the user
// has not voted on the content.
type VoteRepository interface {
	Get(ctx context.Context, contentID, userID string) (*models.Vote, error)
	Save(ctx context.Context, v *models.Vote) error
	Delete(ctx context.Context, contentID, userID string) (bool, error)
	// Tally recounts the ledger for one content item.
	Tally(ctx context.Context, contentID string) (up, down int, err error)
	// ContentIDsByUser splits the content ids a user voted on by direction.
	ContentIDsByUser(ctx context.Context, userID string) (up, down []string, err error)
	DeleteForContent(ctx context.Context, contentID string) error
}

// SubscriptionRepository owns subscription lifecycle. Get returns
// (nil, nil) when no subscription exists.
type SubscriptionRepository interface {
	Get(ctx context.Context, subscriberID, sourceID, sourceType string) (*models.Subscription, error)
	// Create stores a new subscription, assigning id and insertion seq.
	Create(ctx context.Context, sub *models.Subscription) error
	Delete(ctx context.Context, subscriberID, sourceID, sourceType string) (bool, error)
	// ListBySource pages a source's subscriptions in insertion order.
	ListBySource(ctx context.Context, sourceID, sourceType string, skip, limit int) ([]*models.Subscription, error)
	CountBySource(ctx context.Context, sourceID, sourceType string) (int64, error)
	// SourceIDs lists every source id a subscriber follows of one type.
	SourceIDs(ctx context.Context, subscriberID, sourceType string) ([]string, error)
	DeleteBySource(ctx context.Context, sourceID, sourceType string) (int64, error)
}

// ReadStateRepository owns per-user read state. Get returns an empty map
// when the user has read nothing in the course.
type ReadStateRepository interface {
	Get(ctx context.Context, userID, courseID string) (map[string]time.Time, error)
	MarkRead(ctx context.Context, userID, courseID, threadID string, at time.Time) error
}

// UserRepository stores identity records. Save upserts.
type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
}

// StatsSort orders course stat listings.
type StatsSort string

const (
	StatsSortActivity StatsSort = "activity" // threads, then responses, then replies
	StatsSortRecency  StatsSort = "recency"  // last activity
	StatsSortFlagged  StatsSort = "flagged"  // active, then inactive flags
)

func ParseStatsSort(s string) (StatsSort, bool) {
	switch StatsSort(s) {
	case StatsSortActivity, StatsSortRecency, StatsSortFlagged:
		return StatsSort(s), true
	case "":
		return StatsSortActivity, true
	}
	return "", false
}

// CourseStatDelta shifts a user's course counters.
type CourseStatDelta struct {
	ActiveFlags    int
	InactiveFlags  int
	Threads        int
	Responses      int
	Replies        int
	LastActivityAt *time.Time
}

// CourseStatRepository owns the denormalized per-course engagement stats.
// Get returns (nil, nil) when the user has no stats in the course.
type CourseStatRepository interface {
	Get(ctx context.Context, courseID, userID string) (*models.CourseStat, error)
	// Adjust applies the delta atomically, creating the record on first use.
	Adjust(ctx context.Context, courseID, userID, username string, d CourseStatDelta) error
	List(ctx context.Context, courseID string, sort StatsSort, skip, limit int) ([]*models.CourseStat, error)
	Count(ctx context.Context, courseID string) (int64, error)
	// ReplaceForCourse swaps in a full rebuild.
	ReplaceForCourse(ctx context.Context, courseID string, stats []*models.CourseStat) error
}
