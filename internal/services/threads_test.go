package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

func TestThreadCreate(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Threads.store
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")

	t.Run("defaults", func(t *testing.T) {
		th, err := svc.Threads.Create(ctx, CreateThreadInput{
			Title:    "hello",
			Body:     "world",
			CourseID: testCourse,
			UserID:   "1",
		})
		require.NoError(t, err)
		require.True(t, th.IsThread())
		require.Equal(t, "course", th.CommentableID)
		require.Equal(t, models.ThreadTypeDiscussion, th.ThreadType)
		require.Equal(t, "alice", th.AuthorUsername)
		require.False(t, th.LastActivityAt.IsZero())
		require.True(t, th.Visible)

		stats, err := st.CourseStats().Get(ctx, testCourse, "1")
		require.NoError(t, err)
		require.Equal(t, 1, stats.Threads)
	})

	t.Run("validation", func(t *testing.T) {
		cases := []CreateThreadInput{
			{Body: "b", CourseID: testCourse, UserID: "1"},
			{Title: "t", CourseID: testCourse, UserID: "1"},
			{Title: "t", Body: "b", UserID: "1"},
			{Title: "t", Body: "b", CourseID: testCourse},
			{Title: "t", Body: "b", CourseID: testCourse, UserID: "1", ThreadType: "poll"},
		}
		for _, in := range cases {
			_, err := svc.Threads.Create(ctx, in)
			requireValidation(t, err)
		}
	})

	t.Run("anonymous threads stay out of the stats", func(t *testing.T) {
		_, err := svc.Threads.Create(ctx, CreateThreadInput{
			Title:            "quiet",
			Body:             "b",
			CourseID:         testCourse,
			UserID:           "1",
			AnonymousToPeers: true,
		})
		require.NoError(t, err)

		stats, err := st.CourseStats().Get(ctx, testCourse, "1")
		require.NoError(t, err)
		require.Equal(t, 1, stats.Threads)
	})

	t.Run("unknown author", func(t *testing.T) {
		_, err := svc.Threads.Create(ctx, CreateThreadInput{
			Title: "t", Body: "b", CourseID: testCourse, UserID: "9",
		})
		require.True(t, store.IsNotFound(err))
	})
}

func TestThreadListing(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")
	mustUser(t, svc, "3", "carol")

	th1 := mustThread(t, svc, "1", "intro")
	th2, err := svc.Threads.Create(ctx, CreateThreadInput{
		Title: "how does gradient descent work", Body: "b", CourseID: testCourse,
		UserID: "1", ThreadType: models.ThreadTypeQuestion, CommentableID: "unit-2",
	})
	require.NoError(t, err)
	th3 := mustThread(t, svc, "3", "reading list")
	th4, err := svc.Threads.Create(ctx, CreateThreadInput{
		Title: "is the midterm cumulative", Body: "b", CourseID: testCourse,
		UserID: "1", ThreadType: models.ThreadTypeQuestion,
	})
	require.NoError(t, err)
	groupID := int64(7)
	th5, err := svc.Threads.Create(ctx, CreateThreadInput{
		Title: "cohort seven notes", Body: "b", CourseID: testCourse,
		UserID: "3", GroupID: &groupID,
	})
	require.NoError(t, err)

	answer := mustComment(t, svc, th2.ID, "2", "it follows the negative gradient")
	yes := true
	_, err = svc.Comments.Update(ctx, answer.ID, UpdateCommentInput{Endorsed: &yes, EndorsementUserID: "1"})
	require.NoError(t, err)
	_, err = svc.Votes.Update(ctx, th1.ID, "2", "up", models.KindThread)
	require.NoError(t, err)

	list := func(in ListThreadsInput) *ThreadPage {
		in.CourseID = testCourse
		page, err := svc.Threads.List(ctx, in)
		require.NoError(t, err)
		return page
	}
	ids := func(page *ThreadPage) []string {
		out := make([]string, 0, len(page.Collection))
		for _, v := range page.Collection {
			out = append(out, v.ID)
		}
		return out
	}

	t.Run("newest first by default", func(t *testing.T) {
		page := list(ListThreadsInput{})
		require.Equal(t, int64(5), page.ThreadCount)
		require.Equal(t, []string{th5.ID, th4.ID, th3.ID, th2.ID, th1.ID}, ids(page))
	})

	t.Run("activity order follows the latest comment", func(t *testing.T) {
		page := list(ListThreadsInput{SortKey: "activity"})
		require.Equal(t, []string{th2.ID, th5.ID, th4.ID, th3.ID, th1.ID}, ids(page))
	})

	t.Run("vote order puts the upvoted thread first", func(t *testing.T) {
		page := list(ListThreadsInput{SortKey: "votes"})
		require.Equal(t, []string{th1.ID, th5.ID, th4.ID, th3.ID, th2.ID}, ids(page))
	})

	t.Run("comment count order", func(t *testing.T) {
		page := list(ListThreadsInput{SortKey: "comments"})
		require.Equal(t, []string{th2.ID, th5.ID, th4.ID, th3.ID, th1.ID}, ids(page))
	})

	t.Run("thread type filter", func(t *testing.T) {
		page := list(ListThreadsInput{ThreadType: models.ThreadTypeQuestion})
		require.Equal(t, []string{th4.ID, th2.ID}, ids(page))
	})

	t.Run("commentable filter", func(t *testing.T) {
		page := list(ListThreadsInput{CommentableIDs: []string{"unit-2"}})
		require.Equal(t, []string{th2.ID}, ids(page))
	})

	t.Run("unresponded keeps threads without responses", func(t *testing.T) {
		page := list(ListThreadsInput{Unresponded: true})
		require.Equal(t, int64(4), page.ThreadCount)
		require.Equal(t, []string{th5.ID, th4.ID, th3.ID, th1.ID}, ids(page))
	})

	t.Run("unanswered keeps questions without an endorsed response", func(t *testing.T) {
		page := list(ListThreadsInput{Unanswered: true})
		require.Equal(t, []string{th4.ID}, ids(page))
	})

	t.Run("group filter admits ungrouped threads", func(t *testing.T) {
		page := list(ListThreadsInput{GroupIDs: []int64{8}})
		require.Equal(t, []string{th4.ID, th3.ID, th2.ID, th1.ID}, ids(page))

		page = list(ListThreadsInput{GroupIDs: []int64{7}})
		require.Equal(t, int64(5), page.ThreadCount)
	})

	t.Run("endorsement marker on the listing", func(t *testing.T) {
		page := list(ListThreadsInput{})
		for _, v := range page.Collection {
			require.Equal(t, v.ID == th2.ID, v.Endorsed)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		page := list(ListThreadsInput{PerPage: 2})
		require.Equal(t, 1, page.Page)
		require.Equal(t, 3, page.NumPages)
		require.Equal(t, []string{th5.ID, th4.ID}, ids(page))

		page = list(ListThreadsInput{PerPage: 2, Page: 3})
		require.Equal(t, []string{th1.ID}, ids(page))

		page = list(ListThreadsInput{PerPage: 2, Page: 9})
		require.Empty(t, page.Collection)
		require.Equal(t, 3, page.NumPages)
	})

	t.Run("flagged filter", func(t *testing.T) {
		_, err := svc.Flags.Flag(ctx, th3.ID, "2", models.KindThread)
		require.NoError(t, err)

		page := list(ListThreadsInput{Flagged: true})
		require.Equal(t, []string{th3.ID}, ids(page))
	})

	t.Run("a flagged comment surfaces its thread", func(t *testing.T) {
		_, err := svc.Flags.Flag(ctx, answer.ID, "3", models.KindComment)
		require.NoError(t, err)

		page := list(ListThreadsInput{Flagged: true})
		require.Equal(t, []string{th3.ID, th2.ID}, ids(page))
	})

	t.Run("count_flagged adds per-thread flag counts", func(t *testing.T) {
		page := list(ListThreadsInput{CountFlagged: true})
		counts := map[string]int{}
		for _, v := range page.Collection {
			require.NotNil(t, v.AbuseFlaggedCount)
			counts[v.ID] = *v.AbuseFlaggedCount
		}
		require.Equal(t, 1, counts[th3.ID])
		require.Equal(t, 1, counts[th2.ID])
		require.Equal(t, 0, counts[th1.ID])
	})

	t.Run("pinned threads lead every order", func(t *testing.T) {
		_, err := svc.Threads.Pin(ctx, th1.ID, "1")
		require.NoError(t, err)

		page := list(ListThreadsInput{})
		require.Equal(t, th1.ID, ids(page)[0])

		page = list(ListThreadsInput{SortKey: "activity"})
		require.Equal(t, []string{th1.ID, th2.ID}, ids(page)[:2])

		_, err = svc.Threads.Unpin(ctx, th1.ID, "1")
		require.NoError(t, err)
	})

	t.Run("authors see their own anonymous threads", func(t *testing.T) {
		anon, err := svc.Threads.Create(ctx, CreateThreadInput{
			Title: "anonymous worry", Body: "b", CourseID: testCourse,
			UserID: "1", Anonymous: true,
		})
		require.NoError(t, err)

		page := list(ListThreadsInput{AuthorID: "1"})
		require.Equal(t, []string{th4.ID, th2.ID, th1.ID}, ids(page))

		page = list(ListThreadsInput{AuthorID: "1", UserID: "1"})
		require.Equal(t, []string{anon.ID, th4.ID, th2.ID, th1.ID}, ids(page))
	})
}

func TestThreadListingUnread(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")

	th1 := mustThread(t, svc, "1", "first")
	th2 := mustThread(t, svc, "1", "second")
	th3 := mustThread(t, svc, "1", "third")

	require.NoError(t, svc.Users.MarkRead(ctx, "2", th2.ID))

	list := func(in ListThreadsInput) *ThreadPage {
		in.CourseID = testCourse
		in.UserID = "2"
		in.Unread = true
		page, err := svc.Threads.List(ctx, in)
		require.NoError(t, err)
		return page
	}
	ids := func(page *ThreadPage) []string {
		out := make([]string, 0, len(page.Collection))
		for _, v := range page.Collection {
			out = append(out, v.ID)
		}
		return out
	}

	t.Run("read threads drop out, the count does not", func(t *testing.T) {
		page := list(ListThreadsInput{})
		require.Equal(t, []string{th3.ID, th1.ID}, ids(page))
		require.Equal(t, int64(3), page.ThreadCount)
		require.Equal(t, 1, page.NumPages)
	})

	t.Run("a full page with more behind reports a next page", func(t *testing.T) {
		page := list(ListThreadsInput{PerPage: 1})
		require.Equal(t, []string{th3.ID}, ids(page))
		require.Equal(t, 2, page.NumPages)

		page = list(ListThreadsInput{PerPage: 1, Page: 2})
		require.Equal(t, []string{th1.ID}, ids(page))
		require.Equal(t, 2, page.NumPages)
	})

	t.Run("pages past the unread set come back empty", func(t *testing.T) {
		page := list(ListThreadsInput{Page: 2})
		require.Empty(t, page.Collection)
		require.Equal(t, 2, page.NumPages)
	})

	t.Run("new activity makes a read thread unread again", func(t *testing.T) {
		mustComment(t, svc, th2.ID, "1", "follow-up")

		page := list(ListThreadsInput{})
		require.Equal(t, []string{th3.ID, th2.ID, th1.ID}, ids(page))
	})

	t.Run("unknown readers fall back to the plain listing", func(t *testing.T) {
		page, err := svc.Threads.List(ctx, ListThreadsInput{
			CourseID: testCourse, UserID: "ghost", Unread: true,
		})
		require.NoError(t, err)
		require.Len(t, page.Collection, 3)
	})
}

func TestThreadListingReadState(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")

	th := mustThread(t, svc, "1", "watched thread")
	require.NoError(t, svc.Users.MarkRead(ctx, "2", th.ID))
	mustComment(t, svc, th.ID, "1", "news")

	page, err := svc.Threads.List(ctx, ListThreadsInput{CourseID: testCourse, UserID: "2"})
	require.NoError(t, err)
	require.Len(t, page.Collection, 1)

	v := page.Collection[0]
	require.False(t, v.Read)
	require.Equal(t, 1, v.UnreadCommentCount)

	// Reading again clears both.
	require.NoError(t, svc.Users.MarkRead(ctx, "2", th.ID))
	page, err = svc.Threads.List(ctx, ListThreadsInput{CourseID: testCourse, UserID: "2"})
	require.NoError(t, err)
	v = page.Collection[0]
	require.True(t, v.Read)
	require.Equal(t, 0, v.UnreadCommentCount)
}

func TestThreadDetail(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")
	mustUser(t, svc, "3", "carol")

	th, err := svc.Threads.Create(ctx, CreateThreadInput{
		Title: "question thread", Body: "b", CourseID: testCourse,
		UserID: "1", ThreadType: models.ThreadTypeQuestion,
	})
	require.NoError(t, err)
	r1 := mustComment(t, svc, th.ID, "2", "first answer")
	r2 := mustComment(t, svc, th.ID, "2", "second answer")
	r3 := mustComment(t, svc, th.ID, "2", "third answer")
	c1 := mustReply(t, svc, r1.ID, "3", "nested remark")

	yes := true
	_, err = svc.Comments.Update(ctx, r2.ID, UpdateCommentInput{Endorsed: &yes, EndorsementUserID: "1"})
	require.NoError(t, err)

	t.Run("without responses", func(t *testing.T) {
		d, err := svc.Threads.Get(ctx, th.ID, ThreadDetailOptions{})
		require.NoError(t, err)
		require.Equal(t, th.ID, d.ID)
		require.True(t, d.Endorsed)
		require.Nil(t, d.Responses)
		require.Nil(t, d.EndorsedResponses)
	})

	t.Run("question threads split endorsed responses out", func(t *testing.T) {
		d, err := svc.Threads.Get(ctx, th.ID, ThreadDetailOptions{WithResponses: true})
		require.NoError(t, err)
		require.Equal(t, 3, d.RespTotal)
		require.Equal(t, 2, d.NonEndorsedRespTotal)

		require.Len(t, d.EndorsedResponses, 1)
		require.Equal(t, r2.ID, d.EndorsedResponses[0].ID)

		require.Len(t, d.NonEndorsedResponses, 2)
		require.Equal(t, r1.ID, d.NonEndorsedResponses[0].ID)
		require.Equal(t, r3.ID, d.NonEndorsedResponses[1].ID)

		require.Len(t, d.NonEndorsedResponses[0].Children, 1)
		require.Equal(t, c1.ID, d.NonEndorsedResponses[0].Children[0].ID)
	})

	t.Run("response pagination applies to the non-endorsed side", func(t *testing.T) {
		d, err := svc.Threads.Get(ctx, th.ID, ThreadDetailOptions{
			WithResponses: true, RespSkip: 1, RespLimit: 1,
		})
		require.NoError(t, err)
		require.Len(t, d.EndorsedResponses, 1)
		require.Len(t, d.NonEndorsedResponses, 1)
		require.Equal(t, r3.ID, d.NonEndorsedResponses[0].ID)
		require.Equal(t, 1, d.RespSkip)
		require.Equal(t, 1, d.RespLimit)
	})

	t.Run("merged question reads like a discussion", func(t *testing.T) {
		d, err := svc.Threads.Get(ctx, th.ID, ThreadDetailOptions{
			WithResponses: true, MergeQuestion: true,
		})
		require.NoError(t, err)
		require.Nil(t, d.EndorsedResponses)
		require.Len(t, d.Responses, 3)
		require.Equal(t, r1.ID, d.Responses[0].ID)
	})

	t.Run("reverse order", func(t *testing.T) {
		d, err := svc.Threads.Get(ctx, th.ID, ThreadDetailOptions{
			WithResponses: true, MergeQuestion: true, ReverseOrder: true,
		})
		require.NoError(t, err)
		require.Equal(t, r3.ID, d.Responses[0].ID)
	})

	t.Run("mark as read", func(t *testing.T) {
		d, err := svc.Threads.Get(ctx, th.ID, ThreadDetailOptions{UserID: "2", MarkAsRead: true})
		require.NoError(t, err)
		require.True(t, d.Read)

		read, err := svc.Threads.store.ReadStates().Get(ctx, "2", testCourse)
		require.NoError(t, err)
		require.Contains(t, read, th.ID)
	})

	t.Run("unknown readers do not break the read", func(t *testing.T) {
		d, err := svc.Threads.Get(ctx, th.ID, ThreadDetailOptions{UserID: "ghost", MarkAsRead: true})
		require.NoError(t, err)
		require.False(t, d.Read)
	})
}

func TestThreadUpdate(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "5", "moderator")
	th := mustThread(t, svc, "1", "original title")

	t.Run("partial update", func(t *testing.T) {
		title := "new title"
		got, err := svc.Threads.Update(ctx, th.ID, UpdateThreadInput{Title: &title})
		require.NoError(t, err)
		require.Equal(t, "new title", got.Title)
		require.Equal(t, th.Body, got.Body)
	})

	t.Run("attributed body edit lands in history", func(t *testing.T) {
		body := "clarified body"
		got, err := svc.Threads.Update(ctx, th.ID, UpdateThreadInput{
			Body:           &body,
			EditingUserID:  "5",
			EditReasonCode: "needs-clarity",
		})
		require.NoError(t, err)
		require.Len(t, got.EditHistory, 1)
		require.Equal(t, th.Body, got.EditHistory[0].OriginalBody)
		require.Equal(t, "moderator", got.EditHistory[0].EditorUsername)
	})

	t.Run("closing requires an actor and a reason", func(t *testing.T) {
		closed := true
		_, err := svc.Threads.Update(ctx, th.ID, UpdateThreadInput{Closed: &closed})
		requireValidation(t, err)

		got, err := svc.Threads.Update(ctx, th.ID, UpdateThreadInput{
			Closed: &closed, ClosedByID: "5", CloseReasonCode: "off-topic",
		})
		require.NoError(t, err)
		require.True(t, got.Closed)
		require.Equal(t, "5", got.ClosedByID)
		require.Equal(t, "off-topic", got.CloseReasonCode)
	})

	t.Run("reopening clears the close fields", func(t *testing.T) {
		open := false
		got, err := svc.Threads.Update(ctx, th.ID, UpdateThreadInput{Closed: &open})
		require.NoError(t, err)
		require.False(t, got.Closed)
		require.Empty(t, got.ClosedByID)
		require.Empty(t, got.CloseReasonCode)
	})

	t.Run("invalid thread type", func(t *testing.T) {
		bad := "poll"
		_, err := svc.Threads.Update(ctx, th.ID, UpdateThreadInput{ThreadType: &bad})
		requireValidation(t, err)
	})
}

func TestThreadDelete(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Threads.store
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")

	th := mustThread(t, svc, "1", "doomed thread")
	cm := mustComment(t, svc, th.ID, "2", "doomed response")
	_, err := svc.Votes.Update(ctx, cm.ID, "1", "up", models.KindComment)
	require.NoError(t, err)
	_, err = svc.Subscriptions.Subscribe(ctx, "2", th.ID)
	require.NoError(t, err)

	deleted, err := svc.Threads.Delete(ctx, th.ID)
	require.NoError(t, err)
	require.Equal(t, th.ID, deleted.ID)

	t.Run("everything hanging off the thread goes", func(t *testing.T) {
		_, err := st.Content().Get(ctx, th.ID)
		require.True(t, store.IsNotFound(err))
		_, err = st.Content().Get(ctx, cm.ID)
		require.True(t, store.IsNotFound(err))

		v, err := st.Votes().Get(ctx, cm.ID, "1")
		require.NoError(t, err)
		require.Nil(t, v)

		sub, err := st.Subscriptions().Get(ctx, "2", th.ID, "thread")
		require.NoError(t, err)
		require.Nil(t, sub)
	})

	t.Run("the author's thread counter settles, the responder's waits for a rebuild", func(t *testing.T) {
		stats, err := st.CourseStats().Get(ctx, testCourse, "1")
		require.NoError(t, err)
		require.Equal(t, 0, stats.Threads)

		stats, err = st.CourseStats().Get(ctx, testCourse, "2")
		require.NoError(t, err)
		require.Equal(t, 1, stats.Responses)

		_, err = svc.Stats.Rebuild(ctx, testCourse)
		require.NoError(t, err)

		stats, err = st.CourseStats().Get(ctx, testCourse, "2")
		require.NoError(t, err)
		require.Nil(t, stats)
	})
}

func TestPinRequiresKnownUser(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	th := mustThread(t, svc, "1", "thread")

	_, err := svc.Threads.Pin(ctx, th.ID, "ghost")
	require.True(t, store.IsNotFound(err))

	got, err := svc.Threads.Pin(ctx, th.ID, "1")
	require.NoError(t, err)
	require.True(t, got.Pinned)

	got, err = svc.Threads.Unpin(ctx, th.ID, "1")
	require.NoError(t, err)
	require.False(t, got.Pinned)
}

func TestSubscribedAndActiveThreads(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")

	th1 := mustThread(t, svc, "1", "first")
	th2 := mustThread(t, svc, "1", "second")

	_, err := svc.Subscriptions.Subscribe(ctx, "2", th1.ID)
	require.NoError(t, err)
	mustComment(t, svc, th2.ID, "2", "bob was here")

	t.Run("subscribed threads", func(t *testing.T) {
		page, err := svc.Threads.SubscribedThreads(ctx, "2", ListThreadsInput{CourseID: testCourse})
		require.NoError(t, err)
		require.Len(t, page.Collection, 1)
		require.Equal(t, th1.ID, page.Collection[0].ID)
		require.Equal(t, int64(1), page.ThreadCount)
	})

	t.Run("active threads follow participation", func(t *testing.T) {
		page, err := svc.Threads.ActiveThreads(ctx, "2", ListThreadsInput{CourseID: testCourse})
		require.NoError(t, err)
		require.Len(t, page.Collection, 1)
		require.Equal(t, th2.ID, page.Collection[0].ID)
	})

	t.Run("authors are active in their own threads", func(t *testing.T) {
		page, err := svc.Threads.ActiveThreads(ctx, "1", ListThreadsInput{CourseID: testCourse})
		require.NoError(t, err)
		require.Equal(t, int64(2), page.ThreadCount)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Threads.SubscribedThreads(ctx, "ghost", ListThreadsInput{CourseID: testCourse})
		require.True(t, store.IsNotFound(err))
	})
}
