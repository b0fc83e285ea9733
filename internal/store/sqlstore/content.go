package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

type contentRepo struct {
	db *gorm.DB
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
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func (r *contentRepo) Get(ctx context.Context, id string) (*models.Content, error) {
	c := new(models.Content)
	err := r.db.WithContext(ctx).First(c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("content %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load content %s: %w", id, err)
	}

	var active []abuseFlagger
	if err := r.db.WithContext(ctx).Where("content_id = ?", id).Order("id").Find(&active).Error; err != nil {
		return nil, fmt.Errorf("load flaggers for %s: %w", id, err)
	}
	for _, f := range active {
		c.AbuseFlaggers = append(c.AbuseFlaggers, f.UserID)
	}

	var historical []historicalAbuseFlagger
	if err := r.db.WithContext(ctx).Where("content_id = ?", id).Order("id").Find(&historical).Error; err != nil {
		return nil, fmt.Errorf("load historical flaggers for %s: %w", id, err)
	}
	for _, f := range historical {
		c.HistoricalAbuseFlaggers = append(c.HistoricalAbuseFlaggers, f.UserID)
	}

	var edits []editHistory
	if err := r.db.WithContext(ctx).Where("content_id = ?", id).Order("id").Find(&edits).Error; err != nil {
		return nil, fmt.Errorf("load edit history for %s: %w", id, err)
	}
	for _, e := range edits {
		c.EditHistory = append(c.EditHistory, models.EditHistoryEntry{
			OriginalBody:   e.OriginalBody,
			ReasonCode:     e.ReasonCode,
			EditorUsername: e.EditorUsername,
			CreatedAt:      e.CreatedAt,
		})
	}
	return c, nil
}

func (r *contentRepo) Update(ctx context.Context, id string, upd store.ContentUpdate) (int64, error) {
	values := contentUpdateValues(upd)
	var affected int64
	if len(values) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return 0, fmt.Errorf("update content %s: %w", id, res.Error)
		}
		affected = res.RowsAffected
		if affected == 0 {
			return 0, fmt.Errorf("content %s: %w", id, store.ErrNotFound)
		}
	} else {
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return 0, fmt.Errorf("update content %s: %w", id, err)
		}
		if n == 0 {
			return 0, fmt.Errorf("content %s: %w", id, store.ErrNotFound)
		}
		affected = n
	}
	if upd.AppendEdit != nil {
		entry := editHistory{
			ContentID:      id,
			OriginalBody:   upd.AppendEdit.OriginalBody,
			ReasonCode:     upd.AppendEdit.ReasonCode,
			EditorUsername: upd.AppendEdit.EditorUsername,
			CreatedAt:      upd.AppendEdit.CreatedAt,
		}
		if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
			return 0, fmt.Errorf("append edit history for %s: %w", id, err)
		}
	}
	return affected, nil
}

func (r *contentRepo) Delete(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Content{}, "id = ?", id)
	if res.Error != nil {
		return 0, fmt.Errorf("delete content %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("content %s: %w", id, store.ErrNotFound)
	}
	if err := r.deleteSideRows(ctx, []string{id}); err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

func (r *contentRepo) FindThreads(ctx context.Context, q store.ThreadQuery) ([]*models.Content, error) {
	tx := r.threadScope(ctx, q.Filter).Order(threadOrder(q.Sort))
	if q.Skip > 0 {
		tx = tx.Offset(q.Skip)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var out []*models.Content
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find threads: %w", err)
	}
	if err := r.fillFlaggers(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentRepo) CountThreads(ctx context.Context, f store.ThreadFilter) (int64, error) {
	var n int64
	if err := r.threadScope(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count threads: %w", err)
	}
	return n, nil
}

func (r *contentRepo) FindComments(ctx context.Context, q store.CommentQuery) ([]*models.Content, error) {
	order := "created_at DESC, id DESC"
	if q.Ascending {
		order = "created_at ASC, id ASC"
	}
	tx := r.commentScope(ctx, q.Filter).Order(order)
	if q.Skip > 0 {
		tx = tx.Offset(q.Skip)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var out []*models.Content
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}
	if err := r.fillFlaggers(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentRepo) CountComments(ctx context.Context, f store.CommentFilter) (int64, error) {
	var n int64
	if err := r.commentScope(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

func (r *contentRepo) ApplyVoteDelta(ctx context.Context, id string, up, down int) error {
	err := r.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", id).
		UpdateColumns(map[string]any{
			"vote_up_count":   gorm.Expr("vote_up_count + ?", up),
			"vote_down_count": gorm.Expr("vote_down_count + ?", down),
			"vote_count":      gorm.Expr("vote_count + ?", up+down),
			"vote_point":      gorm.Expr("vote_point + ?", up-down),
		}).Error
	if err != nil {
		return fmt.Errorf("apply vote delta to %s: %w", id, err)
	}
	return nil
}

func (r *contentRepo) SetVoteCounts(ctx context.Context, id string, up, down int) error {
	err := r.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", id).
		UpdateColumns(map[string]any{
			"vote_up_count":   up,
			"vote_down_count": down,
			"vote_count":      up + down,
			"vote_point":      up - down,
		}).Error
	if err != nil {
		return fmt.Errorf("set vote counts on %s: %w", id, err)
	}
	return nil
}

func (r *contentRepo) AdjustCommentCount(ctx context.Context, threadID string, delta int) error {
	err := r.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", threadID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("adjust comment count on %s: %w", threadID, err)
	}
	return nil
}

func (r *contentRepo) AdjustChildCount(ctx context.Context, commentID string, delta int) error {
	err := r.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", commentID).
		UpdateColumn("child_count", gorm.Expr("child_count + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("adjust child count on %s: %w", commentID, err)
	}
	return nil
}

func (r *contentRepo) SetCounts(ctx context.Context, id string, commentCount, childCount int) error {
	err := r.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", id).
		UpdateColumns(map[string]any{
			"comment_count": commentCount,
			"child_count":   childCount,
		}).Error
	if err != nil {
		return fmt.Errorf("set counts on %s: %w", id, err)
	}
	return nil
}

func (r *contentRepo) TouchThread(ctx context.Context, threadID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", threadID).
		UpdateColumn("last_activity_at", at).Error
	if err != nil {
		return fmt.Errorf("touch thread %s: %w", threadID, err)
	}
	return nil
}

func (r *contentRepo) AddAbuseFlagger(ctx context.Context, id, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&abuseFlagger{ContentID: id, UserID: userID})
	if res.Error != nil {
		return false, fmt.Errorf("add abuse flagger on %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&abuseFlagger{}).Where("content_id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count abuse flaggers on %s: %w", id, err)
	}
	return n == 1, nil
}

func (r *contentRepo) RemoveAbuseFlagger(ctx context.Context, id, userID string, all bool) (bool, error) {
	tx := r.db.WithContext(ctx)
	if all {
		var rows []abuseFlagger
		if err := tx.Where("content_id = ?", id).Find(&rows).Error; err != nil {
			return false, fmt.Errorf("load abuse flaggers on %s: %w", id, err)
		}
		if len(rows) == 0 {
			return false, nil
		}
		hist := make([]historicalAbuseFlagger, 0, len(rows))
		for _, row := range rows {
			hist = append(hist, historicalAbuseFlagger{ContentID: id, UserID: row.UserID})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&hist).Error; err != nil {
			return false, fmt.Errorf("archive abuse flaggers on %s: %w", id, err)
		}
		if err := tx.Where("content_id = ?", id).Delete(&abuseFlagger{}).Error; err != nil {
			return false, fmt.Errorf("clear abuse flaggers on %s: %w", id, err)
		}
		return true, nil
	}

	res := tx.Where("content_id = ? AND user_id = ?", id, userID).Delete(&abuseFlagger{})
	if res.Error != nil {
		return false, fmt.Errorf("remove abuse flagger on %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&historicalAbuseFlagger{ContentID: id, UserID: userID}).Error
	if err != nil {
		return false, fmt.Errorf("archive abuse flagger on %s: %w", id, err)
	}
	var remaining int64
	if err := tx.Model(&abuseFlagger{}).Where("content_id = ?", id).Count(&remaining).Error; err != nil {
		return false, fmt.Errorf("count abuse flaggers on %s: %w", id, err)
	}
	return remaining == 0, nil
}

func (r *contentRepo) FlaggedThreadIDs(ctx context.Context, courseID string) ([]string, error) {
	var threadIDs []string
	err := r.db.WithContext(ctx).Model(&models.Content{}).Distinct().
		Joins("JOIN abuse_flaggers ON abuse_flaggers.content_id = contents.id").
		Where("contents.kind = ? AND contents.course_id = ?", models.KindThread, courseID).
		Pluck("contents.id", &threadIDs).Error
	if err != nil {
		return nil, fmt.Errorf("flagged thread ids: %w", err)
	}
	var fromComments []string
	err = r.db.WithContext(ctx).Model(&models.Content{}).Distinct().
		Joins("JOIN abuse_flaggers ON abuse_flaggers.content_id = contents.id").
		Where("contents.kind = ? AND contents.course_id = ? AND contents.thread_id IS NOT NULL", models.KindComment, courseID).
		Pluck("contents.thread_id", &fromComments).Error
	if err != nil {
		return nil, fmt.Errorf("flagged comment thread ids: %w", err)
	}
	return dedupe(append(threadIDs, fromComments...)), nil
}

func (r *contentRepo) FlaggedCounts(ctx context.Context, threadIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(threadIDs))
	if len(threadIDs) == 0 {
		return counts, nil
	}

	var flaggedThreads []string
	err := r.db.WithContext(ctx).Model(&models.Content{}).Distinct().
		Joins("JOIN abuse_flaggers ON abuse_flaggers.content_id = contents.id").
		Where("contents.kind = ? AND contents.id IN ?", models.KindThread, threadIDs).
		Pluck("contents.id", &flaggedThreads).Error
	if err != nil {
		return nil, fmt.Errorf("flagged counts: %w", err)
	}
	for _, id := range flaggedThreads {
		counts[id]++
	}

	var rows []struct {
		ThreadID string
		N        int
	}
	err = r.db.WithContext(ctx).Model(&models.Content{}).
		Select("contents.thread_id AS thread_id, COUNT(DISTINCT contents.id) AS n").
		Joins("JOIN abuse_flaggers ON abuse_flaggers.content_id = contents.id").
		Where("contents.kind = ? AND contents.thread_id IN ?", models.KindComment, threadIDs).
		Group("contents.thread_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("flagged comment counts: %w", err)
	}
	for _, row := range rows {
		counts[row.ThreadID] += row.N
	}
	return counts, nil
}

func (r *contentRepo) EndorsedThreadIDs(ctx context.Context, threadIDs []string) (map[string]bool, error) {
	endorsed := make(map[string]bool, len(threadIDs))
	if len(threadIDs) == 0 {
		return endorsed, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Content{}).Distinct().
		Where("kind = ? AND endorsed = true AND thread_id IN ?", models.KindComment, threadIDs).
		Pluck("thread_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("endorsed thread ids: %w", err)
	}
	for _, id := range ids {
		endorsed[id] = true
	}
	return endorsed, nil
}

func (r *contentRepo) ActiveThreadIDs(ctx context.Context, courseID, authorID string) ([]string, error) {
	attributed := "course_id = ? AND author_id = ? AND anonymous = false AND anonymous_to_peers = false"
	var threadIDs []string
	err := r.db.WithContext(ctx).Model(&models.Content{}).
		Where("kind = ? AND "+attributed, models.KindThread, courseID, authorID).
		Pluck("id", &threadIDs).Error
	if err != nil {
		return nil, fmt.Errorf("active thread ids: %w", err)
	}
	var fromComments []string
	err = r.db.WithContext(ctx).Model(&models.Content{}).Distinct().
		Where("kind = ? AND thread_id IS NOT NULL AND "+attributed, models.KindComment, courseID, authorID).
		Pluck("thread_id", &fromComments).Error
	if err != nil {
		return nil, fmt.Errorf("active comment thread ids: %w", err)
	}
	return dedupe(append(threadIDs, fromComments...)), nil
}

// AuthorCounts covers attributed content only; anonymous items never feed
// the public engagement stats.
func (r *contentRepo) AuthorCounts(ctx context.Context, courseID, authorID string) (store.AuthorCounts, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Content{}).
			Where("course_id = ? AND author_id = ? AND anonymous = false AND anonymous_to_peers = false", courseID, authorID)
	}

	var ac store.AuthorCounts
	counts := []struct {
		dst   *int
		scope func(*gorm.DB) *gorm.DB
	}{
		{&ac.Threads, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("kind = ?", models.KindThread)
		}},
		{&ac.Responses, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("kind = ? AND parent_id IS NULL", models.KindComment)
		}},
		{&ac.Replies, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("kind = ? AND parent_id IS NOT NULL", models.KindComment)
		}},
		{&ac.ActiveFlags, func(tx *gorm.DB) *gorm.DB {
			return tx.Distinct("contents.id").Joins("JOIN abuse_flaggers ON abuse_flaggers.content_id = contents.id")
		}},
		{&ac.InactiveFlags, func(tx *gorm.DB) *gorm.DB {
			return tx.Distinct("contents.id").Joins("JOIN historical_abuse_flaggers ON historical_abuse_flaggers.content_id = contents.id")
		}},
	}
	for _, c := range counts {
		var n int64
		if err := c.scope(base()).Count(&n).Error; err != nil {
			return store.AuthorCounts{}, fmt.Errorf("author counts: %w", err)
		}
		*c.dst = int(n)
	}

	var last sql.NullTime
	if err := base().Select("MAX(updated_at)").Scan(&last).Error; err != nil {
		return store.AuthorCounts{}, fmt.Errorf("author last activity: %w", err)
	}
	if last.Valid {
		ac.LastActivityAt = last.Time
	}
	return ac, nil
}

func (r *contentRepo) CourseAuthors(ctx context.Context, courseID string) ([]string, error) {
	var authors []string
	err := r.db.WithContext(ctx).Model(&models.Content{}).Distinct().
		Where("course_id = ? AND author_id <> '' AND anonymous = false AND anonymous_to_peers = false", courseID).
		Order("author_id").
		Pluck("author_id", &authors).Error
	if err != nil {
		return nil, fmt.Errorf("course authors: %w", err)
	}
	return authors, nil
}

func (r *contentRepo) RetireContent(ctx context.Context, authorID, retiredUsername string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Content{}).Where("author_id = ?", authorID).
		Updates(map[string]any{
			"body":            models.RetiredBody,
			"author_username": retiredUsername,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("retire content: %w", res.Error)
	}
	err := r.db.WithContext(ctx).Model(&models.Content{}).
		Where("author_id = ? AND kind = ?", authorID, models.KindThread).
		Update("title", models.RetiredTitle).Error
	if err != nil {
		return 0, fmt.Errorf("retire thread titles: %w", err)
	}
	return res.RowsAffected, nil
}

func (r *contentRepo) ReplaceAuthorUsername(ctx context.Context, authorID, username string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Content{}).Where("author_id = ?", authorID).
		UpdateColumn("author_username", username)
	if res.Error != nil {
		return 0, fmt.Errorf("replace author username: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *contentRepo) DeleteThreadComments(ctx context.Context, threadID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Content{}).
		Where("kind = ? AND thread_id = ?", models.KindComment, threadID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list thread comments: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Delete(&models.Content{}, "id IN ?", ids).Error; err != nil {
		return nil, fmt.Errorf("delete thread comments: %w", err)
	}
	if err := r.deleteSideRows(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *contentRepo) threadScope(ctx context.Context, f store.ThreadFilter) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&models.Content{}).
		Where("kind = ?", models.KindThread).
		Where("course_id = ?", f.CourseID)
	if f.IDs != nil {
		tx = tx.Where("id IN ?", f.IDs)
	}
	if len(f.CommentableIDs) > 0 {
		tx = tx.Where("commentable_id IN ?", f.CommentableIDs)
	}
	if f.AuthorID != "" {
		tx = tx.Where("author_id = ?", f.AuthorID)
		if f.ExcludeAnonymous {
			tx = tx.Where("anonymous = false AND anonymous_to_peers = false")
		}
	}
	if f.ThreadType != "" {
		tx = tx.Where("thread_type = ?", f.ThreadType)
	}
	if len(f.GroupIDs) > 0 {
		tx = tx.Where("(group_id IN ? OR group_id IS NULL)", f.GroupIDs)
	}
	if f.Unresponded {
		tx = tx.Where("comment_count = 0")
	}
	if f.Unanswered {
		// Only an endorsed root comment answers a question.
		answered := r.db.Model(&models.Content{}).Select("thread_id").
			Where("kind = ? AND endorsed = true AND parent_id IS NULL AND thread_id IS NOT NULL", models.KindComment)
		tx = tx.Where("thread_type = ?", models.ThreadTypeQuestion).
			Where("id NOT IN (?)", answered)
	}
	return tx
}

func (r *contentRepo) commentScope(ctx context.Context, f store.CommentFilter) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&models.Content{}).Where("kind = ?", models.KindComment)
	if f.ThreadID != "" {
		tx = tx.Where("thread_id = ?", f.ThreadID)
	}
	if f.ParentID != nil {
		tx = tx.Where("parent_id = ?", *f.ParentID)
	}
	if f.RootsOnly {
		tx = tx.Where("parent_id IS NULL")
	}
	if f.AuthorID != "" {
		tx = tx.Where("author_id = ?", f.AuthorID)
	}
	if f.ExcludeAuthorID != "" {
		tx = tx.Where("author_id <> ?", f.ExcludeAuthorID)
	}
	if f.CreatedSince != nil {
		tx = tx.Where("created_at >= ?", *f.CreatedSince)
	}
	if f.Endorsed != nil {
		tx = tx.Where("endorsed = ?", *f.Endorsed)
	}
	if f.Flagged {
		tx = tx.Where("EXISTS (SELECT 1 FROM abuse_flaggers WHERE abuse_flaggers.content_id = contents.id)")
	}
	return tx
}

// threadOrder maps a sort key to its ORDER BY clause. Pinned threads always
// lead; vote and comment orderings tie-break on created_at.
func threadOrder(key store.SortKey) string {
	switch key {
	case store.SortActivity:
		return "pinned DESC, last_activity_at DESC"
	case store.SortVotes:
		return "pinned DESC, vote_point DESC, created_at DESC"
	case store.SortComments:
		return "pinned DESC, comment_count DESC, created_at DESC"
	default:
		return "pinned DESC, created_at DESC"
	}
}

// fillFlaggers attaches the active flagger sets to a result page in one
// batched query.
func (r *contentRepo) fillFlaggers(ctx context.Context, items []*models.Content) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	byID := make(map[string]*models.Content, len(items))
	for _, c := range items {
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}
	var rows []abuseFlagger
	if err := r.db.WithContext(ctx).Where("content_id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return fmt.Errorf("load flagger sets: %w", err)
	}
	for _, row := range rows {
		if c := byID[row.ContentID]; c != nil {
			c.AbuseFlaggers = append(c.AbuseFlaggers, row.UserID)
		}
	}
	return nil
}

func (r *contentRepo) deleteSideRows(ctx context.Context, contentIDs []string) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("content_id IN ?", contentIDs).Delete(&abuseFlagger{}).Error; err != nil {
		return fmt.Errorf("delete flagger rows: %w", err)
	}
	if err := tx.Where("content_id IN ?", contentIDs).Delete(&historicalAbuseFlagger{}).Error; err != nil {
		return fmt.Errorf("delete historical flagger rows: %w", err)
	}
	if err := tx.Where("content_id IN ?", contentIDs).Delete(&editHistory{}).Error; err != nil {
		return fmt.Errorf("delete edit history rows: %w", err)
	}
	return nil
}

func contentUpdateValues(upd store.ContentUpdate) map[string]any {
	values := map[string]any{}
	if upd.Body != nil {
		values["body"] = *upd.Body
	}
	if upd.Title != nil {
		values["title"] = *upd.Title
	}
	if upd.Anonymous != nil {
		values["anonymous"] = *upd.Anonymous
	}
	if upd.AnonymousToPeers != nil {
		values["anonymous_to_peers"] = *upd.AnonymousToPeers
	}
	if upd.Visible != nil {
		values["visible"] = *upd.Visible
	}
	if upd.AuthorUsername != nil {
		values["author_username"] = *upd.AuthorUsername
	}
	if upd.CommentableID != nil {
		values["commentable_id"] = *upd.CommentableID
	}
	if upd.ThreadType != nil {
		values["thread_type"] = *upd.ThreadType
	}
	if upd.GroupID != nil {
		values["group_id"] = *upd.GroupID
	}
	if upd.Pinned != nil {
		values["pinned"] = *upd.Pinned
	}
	if upd.Closed != nil {
		values["closed"] = *upd.Closed
	}
	if upd.ClosedByID != nil {
		values["closed_by_id"] = *upd.ClosedByID
	}
	if upd.CloseReasonCode != nil {
		values["close_reason_code"] = *upd.CloseReasonCode
	}
	if upd.LastActivityAt != nil {
		values["last_activity_at"] = *upd.LastActivityAt
	}
	if upd.Endorsed != nil {
		values["endorsed"] = *upd.Endorsed
	}
	if upd.EndorsementUserID != nil {
		values["endorsement_user_id"] = *upd.EndorsementUserID
	}
	if upd.EndorsementTime != nil {
		values["endorsement_time"] = *upd.EndorsementTime
	}
	if upd.ClearEndorsement {
		values["endorsed"] = false
		values["endorsement_user_id"] = ""
		values["endorsement_time"] = nil
	}
	return values
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
