package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/services"
)

// wireTimeLayout is the timestamp format of every serialized date.
const wireTimeLayout = "2006-01-02T15:04:05Z"

// serializer assembles response payloads. It holds the user service only
// to resolve the closing moderator's username on closed threads.
type serializer struct {
	users *services.UserService
}

func newSerializer(users *services.UserService) *serializer {
	return &serializer{users: users}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

// stringList keeps empty sets serializing as [] instead of null.
func stringList(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func votesHash(c *models.Content) gin.H {
	return gin.H{
		"count":      c.VoteCount,
		"up_count":   c.VoteUpCount,
		"down_count": c.VoteDownCount,
		"point":      c.VotePoint,
	}
}

func editHistoryList(entries []models.EditHistoryEntry) []gin.H {
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"original_body":   e.OriginalBody,
			"reason_code":     nullIfEmpty(e.ReasonCode),
			"editor_username": e.EditorUsername,
			"created_at":      formatTime(e.CreatedAt),
		})
	}
	return out
}

// thread serializes a presented thread.
func (sz *serializer) thread(ctx context.Context, v *services.ThreadView) gin.H {
	t := v.Content
	h := gin.H{
		"id":                    t.ID,
		"thread_type":           t.ThreadType,
		"title":                 t.Title,
		"body":                  t.Body,
		"course_id":             t.CourseID,
		"anonymous":             t.Anonymous,
		"anonymous_to_peers":    t.AnonymousToPeers,
		"commentable_id":        t.CommentableID,
		"created_at":            formatTime(t.CreatedAt),
		"updated_at":            formatTime(t.UpdatedAt),
		"at_position_list":      []string{},
		"closed":                t.Closed,
		"context":               "course",
		"last_activity_at":      formatTime(t.LastActivityAt),
		"user_id":               t.AuthorID,
		"username":              t.AuthorUsername,
		"votes":                 votesHash(t),
		"abuse_flaggers":        stringList(t.AbuseFlaggers),
		"edit_history":          editHistoryList(t.EditHistory),
		"closed_by":             sz.closedBy(ctx, t),
		"tags":                  []string{},
		"type":                  "thread",
		"group_id":              t.GroupID,
		"pinned":                t.Pinned,
		"comments_count":        t.CommentCount,
		"read":                  v.Read,
		"unread_comments_count": v.UnreadCommentCount,
		"endorsed":              v.Endorsed,
	}
	if v.AbuseFlaggedCount != nil {
		h["abuse_flagged_count"] = *v.AbuseFlaggedCount
	}
	return h
}

// threadDefaults serializes a thread for mutation responses, where read
// state is not computed: the caller just acted on the thread, so it reads
// as seen.
func (sz *serializer) threadDefaults(ctx context.Context, t *models.Content) gin.H {
	return sz.thread(ctx, &services.ThreadView{Content: t, Read: true})
}

func (sz *serializer) closedBy(ctx context.Context, t *models.Content) any {
	if t.ClosedByID == "" {
		return nil
	}
	u, err := sz.users.Require(ctx, t.ClosedByID)
	if err != nil {
		return nil
	}
	return u.Username
}

// threadPage serializes one listing page.
func (sz *serializer) threadPage(ctx context.Context, p *services.ThreadPage) gin.H {
	collection := make([]gin.H, 0, len(p.Collection))
	for _, v := range p.Collection {
		collection = append(collection, sz.thread(ctx, v))
	}
	return gin.H{
		"collection":   collection,
		"page":         p.Page,
		"num_pages":    p.NumPages,
		"thread_count": p.ThreadCount,
	}
}

// threadDetail serializes a single-thread read, nesting the response tree
// when it was loaded. Question threads carry their responses split by
// endorsement.
func (sz *serializer) threadDetail(ctx context.Context, d *services.ThreadDetail, withResponses bool) gin.H {
	h := sz.thread(ctx, d.ThreadView)
	if !withResponses {
		return h
	}
	h["resp_skip"] = d.RespSkip
	h["resp_limit"] = d.RespLimit
	h["resp_total"] = d.RespTotal
	if d.Responses != nil {
		h["children"] = sz.responseNodes(d.Responses)
	} else {
		h["endorsed_responses"] = sz.responseNodes(d.EndorsedResponses)
		h["non_endorsed_responses"] = sz.responseNodes(d.NonEndorsedResponses)
		h["non_endorsed_resp_total"] = d.NonEndorsedRespTotal
	}
	return h
}

func (sz *serializer) responseNodes(nodes []*services.ResponseNode) []gin.H {
	out := make([]gin.H, 0, len(nodes))
	for _, n := range nodes {
		h := sz.comment(n.Content, true)
		children := make([]gin.H, 0, len(n.Children))
		for _, ch := range n.Children {
			children = append(children, sz.comment(ch, false))
		}
		h["children"] = children
		out = append(out, h)
	}
	return out
}

// comment serializes a comment. The endorsement object only appears on
// root comments read in place; replies and create/delete responses omit
// it.
func (sz *serializer) comment(c *models.Content, withEndorsement bool) gin.H {
	var threadID any
	if c.ThreadID != nil {
		threadID = *c.ThreadID
	}
	var parentID any
	if c.ParentID != nil {
		parentID = *c.ParentID
	}
	h := gin.H{
		"id":                 c.ID,
		"user_id":            c.AuthorID,
		"thread_id":          threadID,
		"username":           c.AuthorUsername,
		"parent_id":          parentID,
		"endorsed":           c.Endorsed,
		"anonymous":          c.Anonymous,
		"anonymous_to_peers": c.AnonymousToPeers,
		"closed":             c.Closed,
		"body":               c.Body,
		"course_id":          c.CourseID,
		"commentable_id":     c.CommentableID,
		"created_at":         formatTime(c.CreatedAt),
		"updated_at":         formatTime(c.UpdatedAt),
		"depth":              c.Depth,
		"abuse_flaggers":     stringList(c.AbuseFlaggers),
		"type":               "comment",
		"child_count":        c.ChildCount,
		"votes":              votesHash(c),
		"edit_history":       editHistoryList(c.EditHistory),
	}
	if withEndorsement {
		h["endorsement"] = endorsementHash(c)
	}
	return h
}

func endorsementHash(c *models.Content) any {
	if !c.Endorsed || c.EndorsementUserID == "" {
		return nil
	}
	h := gin.H{"user_id": c.EndorsementUserID}
	if c.EndorsementTime != nil {
		h["time"] = formatTime(*c.EndorsementTime)
	}
	return h
}

// contentDefaults serializes either content variant for vote and flag
// responses.
func (sz *serializer) contentDefaults(ctx context.Context, c *models.Content) gin.H {
	if c.IsThread() {
		return sz.threadDefaults(ctx, c)
	}
	return sz.comment(c, c.ParentID == nil)
}

// user serializes a user record with whatever view data was loaded.
func (sz *serializer) user(info *services.UserInfo) gin.H {
	h := gin.H{
		"id":          info.ID,
		"external_id": info.ID,
		"username":    info.Username,
	}
	if info.Complete {
		h["subscribed_thread_ids"] = stringList(info.SubscribedThreadIDs)
		h["subscribed_commentable_ids"] = []string{}
		h["subscribed_user_ids"] = []string{}
		h["follower_ids"] = []string{}
		h["upvoted_ids"] = stringList(info.UpvotedIDs)
		h["downvoted_ids"] = stringList(info.DownvotedIDs)
		h["default_sort_key"] = info.DefaultSortKey
	}
	if info.CourseID != "" {
		h["threads_count"] = info.ThreadsCount
		h["comments_count"] = info.CommentsCount
	}
	return h
}

func (sz *serializer) subscription(sub *models.Subscription) gin.H {
	return gin.H{
		"id":            sub.ID,
		"subscriber_id": sub.SubscriberID,
		"source_id":     sub.SourceID,
		"source_type":   sub.SourceType,
	}
}

func (sz *serializer) courseStat(st *models.CourseStat, withTimestamps bool) gin.H {
	h := gin.H{
		"username":       st.Username,
		"active_flags":   st.ActiveFlags,
		"inactive_flags": st.InactiveFlags,
		"threads":        st.Threads,
		"responses":      st.Responses,
		"replies":        st.Replies,
	}
	if withTimestamps {
		h["last_activity_at"] = timeOrNil(st.LastActivityAt)
	}
	return h
}
