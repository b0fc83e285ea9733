package services

import (
	"context"
	"time"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

const (
	defaultCommentableID = "course"
	defaultPerPage       = 20
	defaultRespLimit     = 100

	// unreadBatchSize is how many sorted candidates the unread filter
	// pulls per round trip while assembling a page.
	unreadBatchSize = 100
)

// ThreadService owns thread lifecycle and the listing engine.
type ThreadService struct {
	store store.Store
	users *UserService
}

func NewThreadService(st store.Store, users *UserService) *ThreadService {
	return &ThreadService{store: st, users: users}
}

// ThreadView is a thread presented for one reader: the stored record plus
// read state, the endorsement marker, and (for moderators) the flag count.
type ThreadView struct {
	*models.Content

	Read               bool
	UnreadCommentCount int
	Endorsed           bool
	AbuseFlaggedCount  *int
}

// ThreadPage is one page of presented threads. ThreadCount is the size of
// the filtered set before any unread narrowing.
type ThreadPage struct {
	Collection  []*ThreadView
	Page        int
	NumPages    int
	ThreadCount int64
}

// ListThreadsInput mirrors the thread listing query surface.
type ListThreadsInput struct {
	CourseID       string
	UserID         string
	IDs            []string // nil means unrestricted
	CommentableIDs []string
	AuthorID       string
	ThreadType     string
	GroupIDs       []int64
	Flagged        bool
	Unread         bool
	Unanswered     bool
	Unresponded    bool
	CountFlagged   bool
	SortKey        string
	Page           int
	PerPage        int
}

// List runs the thread listing engine: filter, count, sort, paginate,
// present. The unread filter cannot be pushed into the store, so that
// path streams sorted candidates and pages in memory; thread_count still
// reflects the whole filtered set.
func (s *ThreadService) List(ctx context.Context, in ListThreadsInput) (*ThreadPage, error) {
	page, perPage := in.Page, in.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}

	filter := store.ThreadFilter{
		CourseID:       in.CourseID,
		IDs:            in.IDs,
		CommentableIDs: in.CommentableIDs,
		AuthorID:       in.AuthorID,
		ThreadType:     in.ThreadType,
		GroupIDs:       in.GroupIDs,
		Unanswered:     in.Unanswered,
		Unresponded:    in.Unresponded,
	}
	// Authors see their own anonymous threads in their listing; everyone
	// else does not.
	if in.AuthorID != "" && in.AuthorID != in.UserID {
		filter.ExcludeAnonymous = true
	}
	if in.Flagged {
		flagged, err := s.store.Content().FlaggedThreadIDs(ctx, in.CourseID)
		if err != nil {
			return nil, err
		}
		filter.IDs = intersectIDs(filter.IDs, flagged)
	}

	sort := store.ParseSortKey(in.SortKey)

	total, err := s.store.Content().CountThreads(ctx, filter)
	if err != nil {
		return nil, err
	}

	unreadMode := false
	if in.Unread && in.UserID != "" {
		_, err := s.users.Require(ctx, in.UserID)
		switch {
		case err == nil:
			unreadMode = true
		case store.IsNotFound(err):
			// Unknown reader: fall back to the plain listing.
		default:
			return nil, err
		}
	}

	var threads []*models.Content
	var numPages int
	if unreadMode {
		threads, numPages, err = s.listUnread(ctx, filter, sort, in.UserID, page, perPage)
	} else {
		threads, err = s.store.Content().FindThreads(ctx, store.ThreadQuery{
			Filter: filter,
			Sort:   sort,
			Skip:   (page - 1) * perPage,
			Limit:  perPage,
		})
		numPages = pageCount(total, perPage)
	}
	if err != nil {
		return nil, err
	}

	views, err := s.present(ctx, threads, in.UserID, in.CourseID, in.CountFlagged)
	if err != nil {
		return nil, err
	}
	return &ThreadPage{
		Collection:  views,
		Page:        page,
		NumPages:    numPages,
		ThreadCount: total,
	}, nil
}

// listUnread pages the unread subset of a sorted listing. The total size
// of that subset is never computed: the stream stops one item past the
// requested page, so num_pages only ever says whether a next page exists.
func (s *ThreadService) listUnread(ctx context.Context, filter store.ThreadFilter, sort store.SortKey, userID string, page, perPage int) ([]*models.Content, int, error) {
	readDates, err := s.store.ReadStates().Get(ctx, userID, filter.CourseID)
	if err != nil {
		return nil, 0, err
	}

	toSkip := (page - 1) * perPage
	skipped := 0
	collected := make([]*models.Content, 0, perPage)
	hasMore := false

scan:
	for offset := 0; ; offset += unreadBatchSize {
		batch, err := s.store.Content().FindThreads(ctx, store.ThreadQuery{
			Filter: filter,
			Sort:   sort,
			Skip:   offset,
			Limit:  unreadBatchSize,
		})
		if err != nil {
			return nil, 0, err
		}
		if len(batch) == 0 {
			break
		}
		for _, t := range batch {
			if readAt, ok := readDates[t.ID]; ok && !readAt.Before(t.LastActivityAt) {
				continue
			}
			if skipped < toSkip {
				skipped++
				continue
			}
			if len(collected) == perPage {
				hasMore = true
				break scan
			}
			collected = append(collected, t)
		}
		if len(batch) < unreadBatchSize {
			break
		}
	}

	numPages := page
	if hasMore {
		numPages = page + 1
	}
	return collected, numPages, nil
}

// present decorates threads with per-reader read state, the endorsement
// marker, and optionally the active flag count.
func (s *ThreadService) present(ctx context.Context, threads []*models.Content, userID, courseID string, countFlagged bool) ([]*ThreadView, error) {
	views := make([]*ThreadView, 0, len(threads))
	if len(threads) == 0 {
		return views, nil
	}

	ids := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	endorsed, err := s.store.Content().EndorsedThreadIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var flaggedCounts map[string]int
	if countFlagged {
		flaggedCounts, err = s.store.Content().FlaggedCounts(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	readDates := map[string]time.Time{}
	if userID != "" {
		readDates, err = s.store.ReadStates().Get(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
	}

	for _, t := range threads {
		v := &ThreadView{
			Content:            t,
			UnreadCommentCount: t.CommentCount,
			Endorsed:           endorsed[t.ID],
		}
		if readAt, ok := readDates[t.ID]; ok {
			v.Read = !readAt.Before(t.LastActivityAt)
			since := readAt
			n, err := s.store.Content().CountComments(ctx, store.CommentFilter{
				ThreadID:        t.ID,
				CreatedSince:    &since,
				ExcludeAuthorID: userID,
			})
			if err != nil {
				return nil, err
			}
			v.UnreadCommentCount = int(n)
		}
		if countFlagged {
			n := flaggedCounts[t.ID]
			v.AbuseFlaggedCount = &n
		}
		views = append(views, v)
	}
	return views, nil
}

// CreateThreadInput carries the writable fields of a new thread.
type CreateThreadInput struct {
	Title            string
	Body             string
	CourseID         string
	UserID           string
	CommentableID    string
	ThreadType       string
	GroupID          *int64
	Anonymous        bool
	AnonymousToPeers bool
}

func (s *ThreadService) Create(ctx context.Context, in CreateThreadInput) (*models.Content, error) {
	switch {
	case in.Title == "":
		return nil, store.Validationf("title is required")
	case in.Body == "":
		return nil, store.Validationf("body is required")
	case in.CourseID == "":
		return nil, store.Validationf("course_id is required")
	case in.UserID == "":
		return nil, store.Validationf("user_id is required")
	}
	if in.CommentableID == "" {
		in.CommentableID = defaultCommentableID
	}
	if in.ThreadType == "" {
		in.ThreadType = models.ThreadTypeDiscussion
	}
	if in.ThreadType != models.ThreadTypeDiscussion && in.ThreadType != models.ThreadTypeQuestion {
		return nil, store.Validationf("invalid thread_type: %q", in.ThreadType)
	}
	user, err := s.users.Require(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &models.Content{
		Kind:             models.KindThread,
		CourseID:         in.CourseID,
		Title:            in.Title,
		Body:             in.Body,
		AuthorID:         user.ID,
		AuthorUsername:   user.Username,
		Anonymous:        in.Anonymous,
		AnonymousToPeers: in.AnonymousToPeers,
		Visible:          true,
		CommentableID:    in.CommentableID,
		ThreadType:       in.ThreadType,
		GroupID:          in.GroupID,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastActivityAt:   now,
	}

	err = s.store.Atomically(ctx, func(tx store.Store) error {
		if err := tx.Content().Insert(ctx, t); err != nil {
			return err
		}
		if attributed(t) {
			return tx.CourseStats().Adjust(ctx, t.CourseID, t.AuthorID, t.AuthorUsername, store.CourseStatDelta{
				Threads:        1,
				LastActivityAt: &now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ThreadDetailOptions control the single-thread read.
type ThreadDetailOptions struct {
	UserID        string
	WithResponses bool
	RespSkip      int
	RespLimit     int
	ReverseOrder  bool
	MergeQuestion bool
	MarkAsRead    bool
}

// ResponseNode is a root comment with its replies attached.
type ResponseNode struct {
	*models.Content
	Children []*models.Content
}

// ThreadDetail is a presented thread, optionally with its response tree.
// Discussion threads (and question threads read with MergeQuestion) fill
// Responses; question threads split endorsed and non-endorsed responses,
// and response pagination applies to the non-endorsed side only.
type ThreadDetail struct {
	*ThreadView

	Responses            []*ResponseNode
	EndorsedResponses    []*ResponseNode
	NonEndorsedResponses []*ResponseNode
	NonEndorsedRespTotal int
	RespTotal            int
	RespSkip             int
	RespLimit            int
}

func (s *ThreadService) Get(ctx context.Context, id string, opts ThreadDetailOptions) (*ThreadDetail, error) {
	t, err := getContent(ctx, s.store, id, models.KindThread)
	if err != nil {
		return nil, err
	}

	// Mark before presenting, so the response already reads as seen.
	if opts.MarkAsRead && opts.UserID != "" {
		_, err := s.users.Require(ctx, opts.UserID)
		switch {
		case err == nil:
			if err := s.store.ReadStates().MarkRead(ctx, opts.UserID, t.CourseID, t.ID, time.Now().UTC()); err != nil {
				return nil, err
			}
		case store.IsNotFound(err):
		default:
			return nil, err
		}
	}

	views, err := s.present(ctx, []*models.Content{t}, opts.UserID, t.CourseID, false)
	if err != nil {
		return nil, err
	}
	detail := &ThreadDetail{ThreadView: views[0]}
	if !opts.WithResponses {
		return detail, nil
	}

	if opts.RespLimit <= 0 {
		opts.RespLimit = defaultRespLimit
	}
	if opts.RespSkip < 0 {
		opts.RespSkip = 0
	}

	comments, err := s.store.Content().FindComments(ctx, store.CommentQuery{
		Filter:    store.CommentFilter{ThreadID: t.ID},
		Ascending: !opts.ReverseOrder,
	})
	if err != nil {
		return nil, err
	}

	roots, children := partitionResponses(comments)
	detail.RespTotal = len(roots)
	detail.RespSkip = opts.RespSkip
	detail.RespLimit = opts.RespLimit

	attach := func(rs []*models.Content) []*ResponseNode {
		nodes := make([]*ResponseNode, 0, len(rs))
		for _, r := range rs {
			nodes = append(nodes, &ResponseNode{Content: r, Children: children[r.ID]})
		}
		return nodes
	}

	if t.ThreadType == models.ThreadTypeQuestion && !opts.MergeQuestion {
		var endorsed, rest []*models.Content
		for _, r := range roots {
			if r.Endorsed {
				endorsed = append(endorsed, r)
			} else {
				rest = append(rest, r)
			}
		}
		detail.NonEndorsedRespTotal = len(rest)
		detail.EndorsedResponses = attach(endorsed)
		detail.NonEndorsedResponses = attach(pageSlice(rest, opts.RespSkip, opts.RespLimit))
	} else {
		detail.Responses = attach(pageSlice(roots, opts.RespSkip, opts.RespLimit))
	}
	return detail, nil
}

// UpdateThreadInput carries the mutable thread fields. Nil pointers leave
// a field untouched.
type UpdateThreadInput struct {
	Title            *string
	Body             *string
	Anonymous        *bool
	AnonymousToPeers *bool
	CommentableID    *string
	ThreadType       *string
	GroupID          *int64

	// Closed transitions need an actor and a reason; reopening clears
	// both.
	Closed          *bool
	ClosedByID      string
	CloseReasonCode string

	EditingUserID  string
	EditReasonCode string
}

func (s *ThreadService) Update(ctx context.Context, id string, in UpdateThreadInput) (*models.Content, error) {
	t, err := getContent(ctx, s.store, id, models.KindThread)
	if err != nil {
		return nil, err
	}
	if in.ThreadType != nil && *in.ThreadType != models.ThreadTypeDiscussion && *in.ThreadType != models.ThreadTypeQuestion {
		return nil, store.Validationf("invalid thread_type: %q", *in.ThreadType)
	}
	if in.EditReasonCode != "" && !models.ValidEditReason(in.EditReasonCode) {
		return nil, store.Validationf("invalid edit_reason_code: %q", in.EditReasonCode)
	}

	upd := store.ContentUpdate{
		Title:            in.Title,
		Anonymous:        in.Anonymous,
		AnonymousToPeers: in.AnonymousToPeers,
		CommentableID:    in.CommentableID,
		ThreadType:       in.ThreadType,
		GroupID:          in.GroupID,
	}
	if in.Body != nil {
		upd.Body = in.Body
		if in.EditingUserID != "" && *in.Body != t.Body {
			editor, err := s.users.Require(ctx, in.EditingUserID)
			if err != nil {
				return nil, err
			}
			upd.AppendEdit = &models.EditHistoryEntry{
				OriginalBody:   t.Body,
				ReasonCode:     in.EditReasonCode,
				EditorUsername: editor.Username,
				CreatedAt:      time.Now().UTC(),
			}
		}
	}
	if in.Closed != nil {
		upd.Closed = in.Closed
		if *in.Closed {
			if in.ClosedByID == "" || in.CloseReasonCode == "" {
				return nil, store.Validationf("closing a thread requires closed_by_id and close_reason_code")
			}
			closer, err := s.users.Require(ctx, in.ClosedByID)
			if err != nil {
				return nil, err
			}
			upd.ClosedByID = &closer.ID
			upd.CloseReasonCode = &in.CloseReasonCode
		} else {
			empty := ""
			upd.ClosedByID = &empty
			upd.CloseReasonCode = &empty
		}
	}

	if _, err := s.store.Content().Update(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.store.Content().Get(ctx, id)
}

// Delete removes a thread with everything hanging off it: comments,
// votes, subscriptions, and the author's thread counter. The returned
// record is the pre-delete state.
func (s *ThreadService) Delete(ctx context.Context, id string) (*models.Content, error) {
	t, err := getContent(ctx, s.store, id, models.KindThread)
	if err != nil {
		return nil, err
	}

	err = s.store.Atomically(ctx, func(tx store.Store) error {
		commentIDs, err := tx.Content().DeleteThreadComments(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, cid := range commentIDs {
			if err := tx.Votes().DeleteForContent(ctx, cid); err != nil {
				return err
			}
		}
		if _, err := tx.Subscriptions().DeleteBySource(ctx, t.ID, models.SourceTypeThread); err != nil {
			return err
		}
		if err := tx.Votes().DeleteForContent(ctx, t.ID); err != nil {
			return err
		}
		if _, err := tx.Content().Delete(ctx, t.ID); err != nil {
			return err
		}
		if attributed(t) {
			return tx.CourseStats().Adjust(ctx, t.CourseID, t.AuthorID, t.AuthorUsername, store.CourseStatDelta{Threads: -1})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *ThreadService) Pin(ctx context.Context, threadID, userID string) (*models.Content, error) {
	return s.setPinned(ctx, threadID, userID, true)
}

func (s *ThreadService) Unpin(ctx context.Context, threadID, userID string) (*models.Content, error) {
	return s.setPinned(ctx, threadID, userID, false)
}

func (s *ThreadService) setPinned(ctx context.Context, threadID, userID string, pinned bool) (*models.Content, error) {
	if _, err := s.users.Require(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := getContent(ctx, s.store, threadID, models.KindThread); err != nil {
		return nil, err
	}
	if _, err := s.store.Content().Update(ctx, threadID, store.ContentUpdate{Pinned: &pinned}); err != nil {
		return nil, err
	}
	return s.store.Content().Get(ctx, threadID)
}

// SubscribedThreads lists the threads a user follows, through the same
// engine as the course listing.
func (s *ThreadService) SubscribedThreads(ctx context.Context, userID string, in ListThreadsInput) (*ThreadPage, error) {
	if _, err := s.users.Require(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.store.Subscriptions().SourceIDs(ctx, userID, models.SourceTypeThread)
	if err != nil {
		return nil, err
	}
	in.UserID = userID
	in.IDs = intersectIDs(in.IDs, ids)
	return s.List(ctx, in)
}

// ActiveThreads lists the threads a user wrote in, through the same
// engine as the course listing.
func (s *ThreadService) ActiveThreads(ctx context.Context, userID string, in ListThreadsInput) (*ThreadPage, error) {
	if _, err := s.users.Require(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.store.Content().ActiveThreadIDs(ctx, in.CourseID, userID)
	if err != nil {
		return nil, err
	}
	in.UserID = userID
	in.IDs = intersectIDs(in.IDs, ids)
	return s.List(ctx, in)
}

// intersectIDs narrows ids to those also in allowed. A nil ids slice
// means unrestricted, so the result is allowed itself, never nil: an
// empty intersection has to stay an empty restriction.
func intersectIDs(ids, allowed []string) []string {
	if allowed == nil {
		allowed = []string{}
	}
	if ids == nil {
		return allowed
	}
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func partitionResponses(comments []*models.Content) ([]*models.Content, map[string][]*models.Content) {
	var roots []*models.Content
	children := make(map[string][]*models.Content)
	for _, c := range comments {
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}
	return roots, children
}

func pageSlice(cs []*models.Content, skip, limit int) []*models.Content {
	if skip >= len(cs) {
		return nil
	}
	cs = cs[skip:]
	if limit > 0 && len(cs) > limit {
		cs = cs[:limit]
	}
	return cs
}
