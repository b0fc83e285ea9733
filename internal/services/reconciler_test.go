package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

func TestReconcilerRunOnce(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Threads.store
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	mustUser(t, svc, "2", "bob")

	th := mustThread(t, svc, "1", "thread")
	root := mustComment(t, svc, th.ID, "2", "response")
	mustReply(t, svc, root.ID, "1", "reply")
	_, err := svc.Votes.Update(ctx, th.ID, "2", "up", models.KindThread)
	require.NoError(t, err)

	// Knock every counter off its ground truth.
	require.NoError(t, st.Content().SetVoteCounts(ctx, th.ID, 9, 9))
	require.NoError(t, st.Content().SetCounts(ctx, th.ID, 5, 0))
	require.NoError(t, st.Content().SetCounts(ctx, root.ID, 0, 7))
	require.NoError(t, st.CourseStats().Adjust(ctx, testCourse, "1", "alice", store.CourseStatDelta{Threads: 4}))

	rec := NewReconciler(st, 0, 0)
	require.NoError(t, rec.RunOnce(ctx, testCourse))

	got, err := st.Content().Get(ctx, th.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.VoteUpCount)
	require.Equal(t, 0, got.VoteDownCount)
	require.Equal(t, 1, got.VotePoint)
	require.Equal(t, 1, got.CommentCount)

	got, err = st.Content().Get(ctx, root.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ChildCount)

	stats, err := st.CourseStats().Get(ctx, testCourse, "1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Threads)
	require.Equal(t, 1, stats.Replies)
}

func TestReconcileOneTolerates(t *testing.T) {
	svc := newTestServices(t)
	rec := NewReconciler(svc.Threads.store, 0, 0)
	ctx := context.Background()

	t.Run("content deleted while queued", func(t *testing.T) {
		require.NoError(t, rec.reconcileOne(ctx, "gone"))
	})

	t.Run("content already in sync", func(t *testing.T) {
		mustUser(t, svc, "1", "alice")
		th := mustThread(t, svc, "1", "thread")
		require.NoError(t, rec.reconcileOne(ctx, th.ID))

		got, err := svc.Threads.store.Content().Get(ctx, th.ID)
		require.NoError(t, err)
		require.Equal(t, 0, got.VoteUpCount)
		require.Equal(t, 0, got.CommentCount)
	})
}

func TestReconcilerSchedule(t *testing.T) {
	t.Run("nil reconciler drops schedules", func(t *testing.T) {
		var rec *Reconciler
		rec.ScheduleContent("a")
		rec.ScheduleCourse("b")
	})

	svc := newTestServices(t)
	rec := NewReconciler(svc.Threads.store, 0, 0)
	require.Equal(t, time.Minute, rec.interval)
	require.Equal(t, 100, rec.batchSize)

	t.Run("duplicate schedules collapse", func(t *testing.T) {
		rec.ScheduleContent("a")
		rec.ScheduleContent("a")
		rec.ScheduleCourse("a") // different kind, same id
		require.Len(t, rec.queue, 2)
	})

	t.Run("empty ids are ignored", func(t *testing.T) {
		before := len(rec.queue)
		rec.ScheduleContent("")
		require.Len(t, rec.queue, before)
	})

	t.Run("a full queue drops instead of blocking", func(t *testing.T) {
		for i := 0; len(rec.queue) < cap(rec.queue); i++ {
			rec.ScheduleContent(fmt.Sprintf("fill-%d", i))
		}
		rec.ScheduleContent("overflow")
		require.Len(t, rec.queue, cap(rec.queue))

		// The dropped task is re-schedulable once there is room again.
		<-rec.queue
		rec.ScheduleContent("overflow")
		require.Len(t, rec.queue, cap(rec.queue))
	})
}

func TestReconcilerProcessBatch(t *testing.T) {
	svc := newTestServices(t)
	st := svc.Threads.store
	ctx := context.Background()
	mustUser(t, svc, "1", "alice")
	th := mustThread(t, svc, "1", "thread")

	require.NoError(t, st.Content().SetVoteCounts(ctx, th.ID, 3, 3))

	rec := NewReconciler(st, 0, 0)
	task := reconcileTask{kind: reconcileContent, id: th.ID}
	rec.pending[task] = struct{}{}
	rec.processBatch(ctx, []reconcileTask{task})

	got, err := st.Content().Get(ctx, th.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.VoteUpCount)
	require.Equal(t, 0, got.VoteDownCount)

	rec.mu.Lock()
	_, stillPending := rec.pending[task]
	rec.mu.Unlock()
	require.False(t, stillPending)
}
