package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

type contentRepo struct {
	s *Store
}

func (r *contentRepo) Insert(ctx context.Context, c *models.Content) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	err := r.s.update(func(txn *badger.Txn) error {
		return putJSON(txn, contentKey(c.ID), c)
	})
	if err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func (r *contentRepo) Get(ctx context.Context, id string) (*models.Content, error) {
	c := new(models.Content)
	err := r.s.view(func(txn *badger.Txn) error {
		return getJSON(txn, contentKey(id), c)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("content %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load content %s: %w", id, err)
	}
	return c, nil
}

func (r *contentRepo) Update(ctx context.Context, id string, upd store.ContentUpdate) (int64, error) {
	err := r.mutate(id, func(c *models.Content) {
		applyContentUpdate(c, upd)
		c.UpdatedAt = time.Now().UTC()
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (r *contentRepo) Delete(ctx context.Context, id string) (int64, error) {
	err := r.s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(contentKey(id)); err != nil {
			return err
		}
		return txn.Delete(contentKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("content %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("delete content %s: %w", id, err)
	}
	return 1, nil
}

func (r *contentRepo) FindThreads(ctx context.Context, q store.ThreadQuery) ([]*models.Content, error) {
	var out []*models.Content
	err := r.s.view(func(txn *badger.Txn) error {
		m, err := newThreadMatcher(txn, q.Filter)
		if err != nil {
			return err
		}
		return scanContent(txn, func(c *models.Content) error {
			if m.match(c) {
				out = append(out, c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find threads: %w", err)
	}
	sortThreads(out, q.Sort)
	return pageSlice(out, q.Skip, q.Limit), nil
}

func (r *contentRepo) CountThreads(ctx context.Context, f store.ThreadFilter) (int64, error) {
	var n int64
	err := r.s.view(func(txn *badger.Txn) error {
		m, err := newThreadMatcher(txn, f)
		if err != nil {
			return err
		}
		return scanContent(txn, func(c *models.Content) error {
			if m.match(c) {
				n++
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("count threads: %w", err)
	}
	return n, nil
}

func (r *contentRepo) FindComments(ctx context.Context, q store.CommentQuery) ([]*models.Content, error) {
	var out []*models.Content
	err := r.s.view(func(txn *badger.Txn) error {
		return scanContent(txn, func(c *models.Content) error {
			if matchComment(q.Filter, c) {
				out = append(out, c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Ascending {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return pageSlice(out, q.Skip, q.Limit), nil
}

func (r *contentRepo) CountComments(ctx context.Context, f store.CommentFilter) (int64, error) {
	var n int64
	err := r.s.view(func(txn *badger.Txn) error {
		return scanContent(txn, func(c *models.Content) error {
			if matchComment(f, c) {
				n++
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

func (r *contentRepo) ApplyVoteDelta(ctx context.Context, id string, up, down int) error {
	return r.mutate(id, func(c *models.Content) {
		c.VoteUpCount += up
		c.VoteDownCount += down
		c.VoteCount = c.VoteUpCount + c.VoteDownCount
		c.VotePoint = c.VoteUpCount - c.VoteDownCount
	})
}

func (r *contentRepo) SetVoteCounts(ctx context.Context, id string, up, down int) error {
	return r.mutate(id, func(c *models.Content) {
		c.VoteUpCount = up
		c.VoteDownCount = down
		c.VoteCount = up + down
		c.VotePoint = up - down
	})
}

func (r *contentRepo) AdjustCommentCount(ctx context.Context, threadID string, delta int) error {
	return r.mutate(threadID, func(c *models.Content) {
		c.CommentCount += delta
	})
}

func (r *contentRepo) AdjustChildCount(ctx context.Context, commentID string, delta int) error {
	return r.mutate(commentID, func(c *models.Content) {
		c.ChildCount += delta
	})
}

func (r *contentRepo) SetCounts(ctx context.Context, id string, commentCount, childCount int) error {
	return r.mutate(id, func(c *models.Content) {
		c.CommentCount = commentCount
		c.ChildCount = childCount
	})
}

func (r *contentRepo) TouchThread(ctx context.Context, threadID string, at time.Time) error {
	return r.mutate(threadID, func(c *models.Content) {
		c.LastActivityAt = at
	})
}

func (r *contentRepo) AddAbuseFlagger(ctx context.Context, id, userID string) (bool, error) {
	var first bool
	err := r.mutate(id, func(c *models.Content) {
		for _, u := range c.AbuseFlaggers {
			if u == userID {
				return
			}
		}
		first = len(c.AbuseFlaggers) == 0
		c.AbuseFlaggers = append(c.AbuseFlaggers, userID)
	})
	return first, err
}

func (r *contentRepo) RemoveAbuseFlagger(ctx context.Context, id, userID string, all bool) (bool, error) {
	var cleared bool
	err := r.mutate(id, func(c *models.Content) {
		if len(c.AbuseFlaggers) == 0 {
			return
		}
		if all {
			c.HistoricalAbuseFlaggers = union(c.HistoricalAbuseFlaggers, c.AbuseFlaggers...)
			c.AbuseFlaggers = nil
			cleared = true
			return
		}
		kept := c.AbuseFlaggers[:0]
		removed := false
		for _, u := range c.AbuseFlaggers {
			if u == userID {
				removed = true
				continue
			}
			kept = append(kept, u)
		}
		if !removed {
			return
		}
		c.AbuseFlaggers = kept
		if len(kept) == 0 {
			c.AbuseFlaggers = nil
		}
		c.HistoricalAbuseFlaggers = union(c.HistoricalAbuseFlaggers, userID)
		cleared = len(c.AbuseFlaggers) == 0
	})
	return cleared, err
}

func (r *contentRepo) FlaggedThreadIDs(ctx context.Context, courseID string) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	err := r.s.view(func(txn *badger.Txn) error {
		return scanContent(txn, func(c *models.Content) error {
			if c.CourseID != courseID || len(c.AbuseFlaggers) == 0 {
				return nil
			}
			tid := c.ID
			if c.IsComment() {
				if c.ThreadID == nil {
					return nil
				}
				tid = *c.ThreadID
			}
			if !seen[tid] {
				seen[tid] = true
				ids = append(ids, tid)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("flagged thread ids: %w", err)
	}
	return ids, nil
}

func (r *contentRepo) FlaggedCounts(ctx context.Context, threadIDs []string) (map[string]int, error) {
	want := map[string]bool{}
	for _, id := range threadIDs {
		want[id] = true
	}
	counts := map[string]int{}
	err := r.s.view(func(txn *badger.Txn) error {
		return scanContent(txn, func(c *models.Content) error {
			if len(c.AbuseFlaggers) == 0 {
				return nil
			}
			tid := c.ID
			if c.IsComment() {
				if c.ThreadID == nil {
					return nil
				}
				tid = *c.ThreadID
			}
			if want[tid] {
				counts[tid]++
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("flagged counts: %w", err)
	}
	return counts, nil
}

func (r *contentRepo) EndorsedThreadIDs(ctx context.Context, threadIDs []string) (map[string]bool, error) {
	want := map[string]bool{}
	for _, id := range threadIDs {
		want[id] = true
	}
	endorsed := map[string]bool{}
	err := r.s.view(func(txn *badger.Txn) error {
		return scanContent(txn, func(c *models.Content) error {
			if !c.IsComment() || !c.Endorsed || c.ThreadID == nil {
				return nil
			}
			if want[*c.ThreadID] {
				endorsed[*c.ThreadID] = true
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("endorsed thread ids: %w", err)
	}
	return endorsed, nil
}

func (r *contentRepo) ActiveThreadIDs(ctx context.Context, courseID, authorID string) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	err := r.s.view(func(txn *badger.Txn) error {
		return scanContent(txn, func(c *models.Content) error {
			if c.CourseID != courseID || c.AuthorID != authorID || c.Anonymous || c.AnonymousToPeers {
				return nil
			}
			tid := c.ID
			if c.IsComment() {
				if c.ThreadID == nil {
					return nil
				}
				tid = *c.ThreadID
			}
			if !seen[tid] {
				seen[tid] = true
				ids = append(ids, tid)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("active thread ids: %w", err)
	}
	return ids, nil
}

// AuthorCounts covers attributed content only; anonymous items never feed
// the public engagement stats.
func (r *contentRepo) AuthorCounts(ctx context.Context, courseID, authorID string) (store.AuthorCounts, error) {
	var ac store.AuthorCounts
	err := r.s.view(func(txn *badger.Txn) error {
		return scanContent(txn, func(c *models.Content) error {
			if c.CourseID != courseID || c.AuthorID != authorID || c.Anonymous || c.AnonymousToPeers {
				return nil
			}
			switch {
			case c.IsThread():
				ac.Threads++
			case c.Depth == 0:
				ac.Responses++
			default:
				ac.Replies++
			}
			if len(c.AbuseFlaggers) > 0 {
				ac.ActiveFlags++
			}
			if len(c.HistoricalAbuseFlaggers) > 0 {
				ac.InactiveFlags++
			}
			if c.UpdatedAt.After(ac.LastActivityAt) {
				ac.LastActivityAt = c.UpdatedAt
			}
			return nil
		})
	})
	if err != nil {
		return store.AuthorCounts{}, fmt.Errorf("author counts: %w", err)
	}
	return ac, nil
}

func (r *contentRepo) CourseAuthors(ctx context.Context, courseID string) ([]string, error) {
	seen := map[string]bool{}
	var authors []string
	err := r.s.view(func(txn *badger.Txn) error {
		return scanContent(txn, func(c *models.Content) error {
			if c.CourseID != courseID || c.AuthorID == "" || c.Anonymous || c.AnonymousToPeers || seen[c.AuthorID] {
				return nil
			}
			seen[c.AuthorID] = true
			authors = append(authors, c.AuthorID)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("course authors: %w", err)
	}
	sort.Strings(authors)
	return authors, nil
}

func (r *contentRepo) RetireContent(ctx context.Context, authorID, retiredUsername string) (int64, error) {
	var n int64
	err := r.s.update(func(txn *badger.Txn) error {
		var docs []*models.Content
		if err := scanContent(txn, func(c *models.Content) error {
			if c.AuthorID == authorID {
				docs = append(docs, c)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, c := range docs {
			c.Body = models.RetiredBody
			if c.IsThread() {
				c.Title = models.RetiredTitle
			}
			c.AuthorUsername = retiredUsername
			c.UpdatedAt = time.Now().UTC()
			if err := putJSON(txn, contentKey(c.ID), c); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("retire content: %w", err)
	}
	return n, nil
}

func (r *contentRepo) ReplaceAuthorUsername(ctx context.Context, authorID, username string) (int64, error) {
	var n int64
	err := r.s.update(func(txn *badger.Txn) error {
		var docs []*models.Content
		if err := scanContent(txn, func(c *models.Content) error {
			if c.AuthorID == authorID {
				docs = append(docs, c)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, c := range docs {
			c.AuthorUsername = username
			if err := putJSON(txn, contentKey(c.ID), c); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replace author username: %w", err)
	}
	return n, nil
}

func (r *contentRepo) DeleteThreadComments(ctx context.Context, threadID string) ([]string, error) {
	var ids []string
	err := r.s.update(func(txn *badger.Txn) error {
		ids = ids[:0]
		if err := scanContent(txn, func(c *models.Content) error {
			if c.IsComment() && c.ThreadID != nil && *c.ThreadID == threadID {
				ids = append(ids, c.ID)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, id := range ids {
			if err := txn.Delete(contentKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete thread comments: %w", err)
	}
	return ids, nil
}

// mutate loads one document, applies fn, and writes it back in the same
// transaction.
func (r *contentRepo) mutate(id string, fn func(*models.Content)) error {
	err := r.s.update(func(txn *badger.Txn) error {
		var c models.Content
		if err := getJSON(txn, contentKey(id), &c); err != nil {
			return err
		}
		fn(&c)
		return putJSON(txn, contentKey(id), &c)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("content %s: %w", id, store.ErrNotFound)
	}
	return err
}

func scanContent(txn *badger.Txn, fn func(*models.Content) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(contentPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		c := new(models.Content)
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, c)
		})
		if err != nil {
			return fmt.Errorf("decode content document: %w", err)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

type threadMatcher struct {
	f        store.ThreadFilter
	idSet    map[string]bool // nil when unrestricted
	answered map[string]bool // thread ids with an endorsed comment
}

func newThreadMatcher(txn *badger.Txn, f store.ThreadFilter) (*threadMatcher, error) {
	m := &threadMatcher{f: f}
	if f.IDs != nil {
		m.idSet = map[string]bool{}
		for _, id := range f.IDs {
			m.idSet[id] = true
		}
	}
	if f.Unanswered {
		// Only an endorsed root comment answers a question.
		m.answered = map[string]bool{}
		err := scanContent(txn, func(c *models.Content) error {
			if c.IsComment() && c.Endorsed && c.ParentID == nil && c.ThreadID != nil {
				m.answered[*c.ThreadID] = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *threadMatcher) match(c *models.Content) bool {
	f := m.f
	if !c.IsThread() || c.CourseID != f.CourseID {
		return false
	}
	if m.idSet != nil && !m.idSet[c.ID] {
		return false
	}
	if len(f.CommentableIDs) > 0 && !containsString(f.CommentableIDs, c.CommentableID) {
		return false
	}
	if f.AuthorID != "" {
		if c.AuthorID != f.AuthorID {
			return false
		}
		if f.ExcludeAnonymous && (c.Anonymous || c.AnonymousToPeers) {
			return false
		}
	}
	if f.ThreadType != "" && c.ThreadType != f.ThreadType {
		return false
	}
	if len(f.GroupIDs) > 0 && c.GroupID != nil && !containsInt64(f.GroupIDs, *c.GroupID) {
		return false
	}
	if f.Unresponded && c.CommentCount != 0 {
		return false
	}
	if f.Unanswered {
		if c.ThreadType != models.ThreadTypeQuestion || m.answered[c.ID] {
			return false
		}
	}
	return true
}

func matchComment(f store.CommentFilter, c *models.Content) bool {
	if !c.IsComment() {
		return false
	}
	if f.ThreadID != "" && (c.ThreadID == nil || *c.ThreadID != f.ThreadID) {
		return false
	}
	if f.ParentID != nil && (c.ParentID == nil || *c.ParentID != *f.ParentID) {
		return false
	}
	if f.RootsOnly && c.ParentID != nil {
		return false
	}
	if f.AuthorID != "" && c.AuthorID != f.AuthorID {
		return false
	}
	if f.ExcludeAuthorID != "" && c.AuthorID == f.ExcludeAuthorID {
		return false
	}
	if f.CreatedSince != nil && c.CreatedAt.Before(*f.CreatedSince) {
		return false
	}
	if f.Endorsed != nil && c.Endorsed != *f.Endorsed {
		return false
	}
	if f.Flagged && len(c.AbuseFlaggers) == 0 {
		return false
	}
	return true
}

// sortThreads orders pinned first, then the mapped sort field descending.
// Votes and comment counts tie-break on created_at descending.
func sortThreads(threads []*models.Content, key store.SortKey) {
	sort.SliceStable(threads, func(i, j int) bool {
		a, b := threads[i], threads[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		switch key {
		case store.SortActivity:
			return a.LastActivityAt.After(b.LastActivityAt)
		case store.SortVotes:
			if a.VotePoint != b.VotePoint {
				return a.VotePoint > b.VotePoint
			}
		case store.SortComments:
			if a.CommentCount != b.CommentCount {
				return a.CommentCount > b.CommentCount
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func applyContentUpdate(c *models.Content, upd store.ContentUpdate) {
	if upd.Body != nil {
		c.Body = *upd.Body
	}
	if upd.Title != nil {
		c.Title = *upd.Title
	}
	if upd.Anonymous != nil {
		c.Anonymous = *upd.Anonymous
	}
	if upd.AnonymousToPeers != nil {
		c.AnonymousToPeers = *upd.AnonymousToPeers
	}
	if upd.Visible != nil {
		c.Visible = *upd.Visible
	}
	if upd.AuthorUsername != nil {
		c.AuthorUsername = *upd.AuthorUsername
	}
	if upd.CommentableID != nil {
		c.CommentableID = *upd.CommentableID
	}
	if upd.ThreadType != nil {
		c.ThreadType = *upd.ThreadType
	}
	if upd.GroupID != nil {
		c.GroupID = upd.GroupID
	}
	if upd.Pinned != nil {
		c.Pinned = *upd.Pinned
	}
	if upd.Closed != nil {
		c.Closed = *upd.Closed
	}
	if upd.ClosedByID != nil {
		c.ClosedByID = *upd.ClosedByID
	}
	if upd.CloseReasonCode != nil {
		c.CloseReasonCode = *upd.CloseReasonCode
	}
	if upd.LastActivityAt != nil {
		c.LastActivityAt = *upd.LastActivityAt
	}
	if upd.Endorsed != nil {
		c.Endorsed = *upd.Endorsed
	}
	if upd.EndorsementUserID != nil {
		c.EndorsementUserID = *upd.EndorsementUserID
	}
	if upd.EndorsementTime != nil {
		c.EndorsementTime = upd.EndorsementTime
	}
	if upd.ClearEndorsement {
		c.Endorsed = false
		c.EndorsementUserID = ""
		c.EndorsementTime = nil
	}
	if upd.AppendEdit != nil {
		c.EditHistory = append(c.EditHistory, *upd.AppendEdit)
	}
}

func union(set []string, add ...string) []string {
	for _, a := range add {
		if !containsString(set, a) {
			set = append(set, a)
		}
	}
	return set
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsInt64(s []int64, v int64) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func pageSlice[T any](s []T, skip, limit int) []T {
	if skip >= len(s) {
		return nil
	}
	s = s[skip:]
	if limit > 0 && limit < len(s) {
		s = s[:limit]
	}
	return s
}
