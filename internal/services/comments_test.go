package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

func TestCreateRootComment(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Comments.store
	ctx := context.Background()
	mustUser(t, svc, "1", "author")
	mustUser(t, svc, "2", "responder")
	th := mustThread(t, svc, "1", "discussed thread")

	c, err := svc.Comments.CreateRoot(ctx, th.ID, CreateCommentInput{
		Body:     "a response",
		CourseID: testCourse,
		UserID:   "2",
	})
	require.NoError(t, err)
	require.True(t, c.IsComment())
	require.Equal(t, 0, c.Depth)
	require.Nil(t, c.ParentID)
	require.NotNil(t, c.ThreadID)
	require.Equal(t, th.ID, *c.ThreadID)
	require.Equal(t, th.CommentableID, c.CommentableID)
	require.Equal(t, "responder", c.AuthorUsername)

	t.Run("thread counters move", func(t *testing.T) {
		got, err := st.Content().Get(ctx, th.ID)
		require.NoError(t, err)
		require.Equal(t, 1, got.CommentCount)
		require.True(t, got.LastActivityAt.After(th.LastActivityAt))
	})

	t.Run("the responder has read their own response", func(t *testing.T) {
		read, err := st.ReadStates().Get(ctx, "2", testCourse)
		require.NoError(t, err)
		require.Contains(t, read, th.ID)
	})

	t.Run("responder stats", func(t *testing.T) {
		stats, err := st.CourseStats().Get(ctx, testCourse, "2")
		require.NoError(t, err)
		require.NotNil(t, stats)
		require.Equal(t, 1, stats.Responses)
		require.Equal(t, 0, stats.Threads)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := svc.Comments.CreateRoot(ctx, th.ID, CreateCommentInput{CourseID: testCourse, UserID: "2"})
		requireValidation(t, err)
		_, err = svc.Comments.CreateRoot(ctx, "nope", CreateCommentInput{Body: "b", CourseID: testCourse, UserID: "2"})
		require.True(t, store.IsNotFound(err))
	})
}

func TestCreateChildComment(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Comments.store
	ctx := context.Background()
	mustUser(t, svc, "1", "author")
	mustUser(t, svc, "2", "responder")
	mustUser(t, svc, "3", "replier")
	th := mustThread(t, svc, "1", "thread")
	root := mustComment(t, svc, th.ID, "2", "a response")

	c, err := svc.Comments.CreateChild(ctx, root.ID, CreateCommentInput{
		Body:     "a reply",
		CourseID: testCourse,
		UserID:   "3",
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Depth)
	require.NotNil(t, c.ParentID)
	require.Equal(t, root.ID, *c.ParentID)
	require.Equal(t, th.ID, *c.ThreadID)

	t.Run("parent child count moves, thread comment count does not", func(t *testing.T) {
		gotRoot, err := st.Content().Get(ctx, root.ID)
		require.NoError(t, err)
		require.Equal(t, 1, gotRoot.ChildCount)

		gotThread, err := st.Content().Get(ctx, th.ID)
		require.NoError(t, err)
		require.Equal(t, 1, gotThread.CommentCount)
	})

	t.Run("replier stats", func(t *testing.T) {
		stats, err := st.CourseStats().Get(ctx, testCourse, "3")
		require.NoError(t, err)
		require.NotNil(t, stats)
		require.Equal(t, 1, stats.Replies)
		require.Equal(t, 0, stats.Responses)
	})

	t.Run("replying to a reply is rejected", func(t *testing.T) {
		_, err := svc.Comments.CreateChild(ctx, c.ID, CreateCommentInput{
			Body:     "too deep",
			CourseID: testCourse,
			UserID:   "2",
		})
		requireValidation(t, err)
	})
}

func TestCommentUpdate(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "author")
	mustUser(t, svc, "2", "responder")
	mustUser(t, svc, "5", "moderator")
	th := mustThread(t, svc, "1", "thread")
	cm := mustComment(t, svc, th.ID, "2", "original text")

	t.Run("attributed body edit lands in history", func(t *testing.T) {
		body := "revised text"
		c, err := svc.Comments.Update(ctx, cm.ID, UpdateCommentInput{
			Body:           &body,
			EditingUserID:  "5",
			EditReasonCode: "grammar-spelling",
		})
		require.NoError(t, err)
		require.Equal(t, "revised text", c.Body)
		require.Len(t, c.EditHistory, 1)
		require.Equal(t, "original text", c.EditHistory[0].OriginalBody)
		require.Equal(t, "moderator", c.EditHistory[0].EditorUsername)
		require.Equal(t, "grammar-spelling", c.EditHistory[0].ReasonCode)
	})

	t.Run("anonymous edits skip history", func(t *testing.T) {
		body := "revised again"
		c, err := svc.Comments.Update(ctx, cm.ID, UpdateCommentInput{Body: &body})
		require.NoError(t, err)
		require.Equal(t, "revised again", c.Body)
		require.Len(t, c.EditHistory, 1)
	})

	t.Run("unknown reason code", func(t *testing.T) {
		body := "whatever"
		_, err := svc.Comments.Update(ctx, cm.ID, UpdateCommentInput{
			Body:           &body,
			EditingUserID:  "5",
			EditReasonCode: "just-because",
		})
		requireValidation(t, err)
	})

	t.Run("endorse and clear", func(t *testing.T) {
		yes := true
		c, err := svc.Comments.Update(ctx, cm.ID, UpdateCommentInput{
			Endorsed:          &yes,
			EndorsementUserID: "1",
		})
		require.NoError(t, err)
		require.True(t, c.Endorsed)
		require.Equal(t, "1", c.EndorsementUserID)
		require.NotNil(t, c.EndorsementTime)

		no := false
		c, err = svc.Comments.Update(ctx, cm.ID, UpdateCommentInput{Endorsed: &no})
		require.NoError(t, err)
		require.False(t, c.Endorsed)
		require.Empty(t, c.EndorsementUserID)
		require.Nil(t, c.EndorsementTime)
	})
}

func TestDeleteRootCommentCascades(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Comments.store
	ctx := context.Background()
	mustUser(t, svc, "1", "author")
	mustUser(t, svc, "2", "responder")
	mustUser(t, svc, "3", "voter")
	th := mustThread(t, svc, "1", "thread")
	root := mustComment(t, svc, th.ID, "2", "a response")
	reply := mustReply(t, svc, root.ID, "2", "a reply")

	_, err := svc.Votes.Update(ctx, reply.ID, "3", "up", models.KindComment)
	require.NoError(t, err)

	deleted, err := svc.Comments.Delete(ctx, root.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, deleted.ID)

	t.Run("replies go with the root", func(t *testing.T) {
		_, err := st.Content().Get(ctx, reply.ID)
		require.True(t, store.IsNotFound(err))
	})

	t.Run("votes on removed replies are dropped", func(t *testing.T) {
		v, err := st.Votes().Get(ctx, reply.ID, "3")
		require.NoError(t, err)
		require.Nil(t, v)
	})

	t.Run("thread comment count settles", func(t *testing.T) {
		got, err := st.Content().Get(ctx, th.ID)
		require.NoError(t, err)
		require.Equal(t, 0, got.CommentCount)
	})

	t.Run("the response counter settles, cascaded replies do not", func(t *testing.T) {
		stats, err := st.CourseStats().Get(ctx, testCourse, "2")
		require.NoError(t, err)
		require.Equal(t, 0, stats.Responses)
		require.Equal(t, 1, stats.Replies)
	})
}

func TestDeleteChildComment(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Comments.store
	ctx := context.Background()
	mustUser(t, svc, "1", "author")
	mustUser(t, svc, "2", "responder")
	th := mustThread(t, svc, "1", "thread")
	root := mustComment(t, svc, th.ID, "2", "a response")
	reply := mustReply(t, svc, root.ID, "2", "a reply")

	_, err := svc.Comments.Delete(ctx, reply.ID)
	require.NoError(t, err)

	gotRoot, err := st.Content().Get(ctx, root.ID)
	require.NoError(t, err)
	require.Equal(t, 0, gotRoot.ChildCount)

	stats, err := st.CourseStats().Get(ctx, testCourse, "2")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Responses)
	require.Equal(t, 0, stats.Replies)
}
