package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

func TestUserCreate(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	t.Run("create and refresh", func(t *testing.T) {
		u, err := svc.Users.Create(ctx, "1", "alice")
		require.NoError(t, err)
		require.Equal(t, "1", u.ID)
		require.Equal(t, "alice", u.Username)

		// Registering the same id again refreshes the record.
		_, err = svc.Users.Create(ctx, "1", "alice-2")
		require.NoError(t, err)
		got, err := svc.Users.Require(ctx, "1")
		require.NoError(t, err)
		require.Equal(t, "alice-2", got.Username)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := svc.Users.Create(ctx, "", "alice")
		requireValidation(t, err)
		_, err = svc.Users.Create(ctx, "1", "")
		requireValidation(t, err)
	})

	t.Run("unknown user lookups", func(t *testing.T) {
		_, err := svc.Users.Require(ctx, "404")
		require.True(t, store.IsNotFound(err))
		_, err = svc.Users.Require(ctx, "")
		requireValidation(t, err)
	})
}

func TestUserUpdate(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")

	// Prime the lookup cache, then make sure the update punches through it.
	_, err := svc.Users.Require(ctx, "1")
	require.NoError(t, err)

	name := "alicia"
	sortKey := "votes"
	u, err := svc.Users.Update(ctx, "1", &name, &sortKey)
	require.NoError(t, err)
	require.Equal(t, "alicia", u.Username)
	require.Equal(t, "votes", u.DefaultSortKey)

	got, err := svc.Users.Require(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "alicia", got.Username)

	// Nil fields stay untouched.
	u, err = svc.Users.Update(ctx, "1", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "alicia", u.Username)
	require.Equal(t, "votes", u.DefaultSortKey)

	_, err = svc.Users.Update(ctx, "404", &name, nil)
	require.True(t, store.IsNotFound(err))
}

func TestUserInfo(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")

	th1 := mustThread(t, svc, "1", "first")
	mustThread(t, svc, "1", "second")
	cm := mustComment(t, svc, th1.ID, "1", "self reply")

	_, err := svc.Subscriptions.Subscribe(ctx, "2", th1.ID)
	require.NoError(t, err)
	_, err = svc.Votes.Update(ctx, th1.ID, "2", "up", models.KindThread)
	require.NoError(t, err)
	_, err = svc.Votes.Update(ctx, cm.ID, "2", "down", models.KindComment)
	require.NoError(t, err)

	t.Run("complete footprint", func(t *testing.T) {
		info, err := svc.Users.Info(ctx, "2", "", true)
		require.NoError(t, err)
		require.True(t, info.Complete)
		require.Equal(t, []string{th1.ID}, info.SubscribedThreadIDs)
		require.Equal(t, []string{th1.ID}, info.UpvotedIDs)
		require.Equal(t, []string{cm.ID}, info.DownvotedIDs)
	})

	t.Run("an empty footprint stays non-nil", func(t *testing.T) {
		info, err := svc.Users.Info(ctx, "1", "", true)
		require.NoError(t, err)
		require.NotNil(t, info.SubscribedThreadIDs)
		require.Empty(t, info.SubscribedThreadIDs)
		require.NotNil(t, info.UpvotedIDs)
		require.Empty(t, info.UpvotedIDs)
	})

	t.Run("course counts", func(t *testing.T) {
		info, err := svc.Users.Info(ctx, "1", testCourse, false)
		require.NoError(t, err)
		require.Equal(t, 2, info.ThreadsCount)
		require.Equal(t, 1, info.CommentsCount)
		require.Nil(t, info.SubscribedThreadIDs)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Users.Info(ctx, "404", "", false)
		require.True(t, store.IsNotFound(err))
	})
}

func TestUserMarkRead(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")
	th := mustThread(t, svc, "1", "thread")
	cm := mustComment(t, svc, th.ID, "1", "response")

	require.NoError(t, svc.Users.MarkRead(ctx, "2", th.ID))
	read, err := svc.Users.store.ReadStates().Get(ctx, "2", testCourse)
	require.NoError(t, err)
	require.Contains(t, read, th.ID)

	require.True(t, store.IsNotFound(svc.Users.MarkRead(ctx, "2", "missing")))
	require.True(t, store.IsNotFound(svc.Users.MarkRead(ctx, "2", cm.ID)))
	require.True(t, store.IsNotFound(svc.Users.MarkRead(ctx, "404", th.ID)))
}

func TestUserRetire(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Users.store
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")

	mine := mustThread(t, svc, "1", "my thread")
	theirs := mustThread(t, svc, "2", "their thread")
	cm := mustComment(t, svc, theirs.ID, "1", "my response")
	_, err := svc.Subscriptions.Subscribe(ctx, "1", theirs.ID)
	require.NoError(t, err)

	requireValidation(t, svc.Users.Retire(ctx, "1", ""))
	require.NoError(t, svc.Users.Retire(ctx, "1", "retired_user_3f9a"))

	t.Run("the account takes the retired name", func(t *testing.T) {
		u, err := svc.Users.Require(ctx, "1")
		require.NoError(t, err)
		require.Equal(t, "retired_user_3f9a", u.Username)
	})

	t.Run("authored content is scrubbed", func(t *testing.T) {
		got, err := st.Content().Get(ctx, mine.ID)
		require.NoError(t, err)
		require.Equal(t, models.RetiredTitle, got.Title)
		require.Equal(t, models.RetiredBody, got.Body)
		require.Equal(t, "retired_user_3f9a", got.AuthorUsername)

		got, err = st.Content().Get(ctx, cm.ID)
		require.NoError(t, err)
		require.Equal(t, models.RetiredBody, got.Body)
		require.Equal(t, "retired_user_3f9a", got.AuthorUsername)
	})

	t.Run("other authors keep their content", func(t *testing.T) {
		got, err := st.Content().Get(ctx, theirs.ID)
		require.NoError(t, err)
		require.Equal(t, "their thread", got.Title)
		require.Equal(t, "bob", got.AuthorUsername)
	})

	t.Run("subscriptions are dropped", func(t *testing.T) {
		ids, err := st.Subscriptions().SourceIDs(ctx, "1", models.SourceTypeThread)
		require.NoError(t, err)
		require.Empty(t, ids)
	})
}

func TestUserReplaceUsername(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Users.store
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	th := mustThread(t, svc, "1", "thread")
	cm := mustComment(t, svc, th.ID, "1", "response")

	requireValidation(t, svc.Users.ReplaceUsername(ctx, "1", ""))
	require.NoError(t, svc.Users.ReplaceUsername(ctx, "1", "alice_renamed"))

	u, err := svc.Users.Require(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "alice_renamed", u.Username)

	for _, id := range []string{th.ID, cm.ID} {
		got, err := st.Content().Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "alice_renamed", got.AuthorUsername)
	}

	// The body survives a rename, unlike a retirement.
	got, err := st.Content().Get(ctx, th.ID)
	require.NoError(t, err)
	require.Equal(t, "thread", got.Title)

	require.True(t, store.IsNotFound(svc.Users.ReplaceUsername(ctx, "404", "x")))
}
