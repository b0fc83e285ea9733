package services

import (
	"context"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog/log"

	"github.com/edly-io/forum-sub001/internal/store"
)

type reconcileKind int

const (
	reconcileContent reconcileKind = iota
	reconcileCourse
)

type reconcileTask struct {
	kind reconcileKind
	id   string
}

// Reconciler settles denormalized counters against their ground truth:
// vote summaries against the vote ledger, comment and reply counts
// against the content collection, course stats against both. Services
// enqueue ids after writes; a background worker drains the queue in
// batches. A nil Reconciler accepts schedules and drops them, so
// services run fine without the worker.
type Reconciler struct {
	store     store.Store
	interval  time.Duration
	batchSize int

	queue   chan reconcileTask
	mu      sync.Mutex
	pending map[reconcileTask]struct{}
}

func NewReconciler(st store.Store, interval time.Duration, batchSize int) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reconciler{
		store:     st,
		interval:  interval,
		batchSize: batchSize,
		queue:     make(chan reconcileTask, 1000),
		pending:   make(map[reconcileTask]struct{}),
	}
}

// ScheduleContent queues a recount of one content item and, for threads
// and root comments, their descendant counters.
func (r *Reconciler) ScheduleContent(id string) {
	r.schedule(reconcileTask{kind: reconcileContent, id: id})
}

// ScheduleCourse queues a full stats rebuild for a course.
func (r *Reconciler) ScheduleCourse(courseID string) {
	r.schedule(reconcileTask{kind: reconcileCourse, id: courseID})
}

func (r *Reconciler) schedule(t reconcileTask) {
	if r == nil || t.id == "" {
		return
	}
	r.mu.Lock()
	if _, ok := r.pending[t]; ok {
		r.mu.Unlock()
		return
	}
	r.pending[t] = struct{}{}
	r.mu.Unlock()

	select {
	case r.queue <- t:
	default:
		r.mu.Lock()
		delete(r.pending, t)
		r.mu.Unlock()
		log.Warn().Str("id", t.id).Msg("reconcile queue full, dropping task")
	}
}

// Start launches the background worker. The worker drains scheduled
// tasks until ctx is done, flushing any leftover batch on the way out.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	batch := make([]reconcileTask, 0, r.batchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case t := <-r.queue:
			batch = append(batch, t)
			if len(batch) >= r.batchSize {
				r.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			if len(batch) > 0 {
				r.processBatch(context.WithoutCancel(ctx), batch)
			}
			return
		}
	}
}

func (r *Reconciler) processBatch(ctx context.Context, batch []reconcileTask) {
	for _, t := range batch {
		err := retry.Do(
			func() error { return r.process(ctx, t) },
			retry.Attempts(3),
			retry.Delay(100*time.Millisecond),
			retry.Context(ctx),
		)
		if err != nil {
			log.Error().Err(err).Str("id", t.id).Msg("reconcile failed")
		}

		r.mu.Lock()
		delete(r.pending, t)
		r.mu.Unlock()
	}
}

func (r *Reconciler) process(ctx context.Context, t reconcileTask) error {
	if t.kind == reconcileCourse {
		_, err := rebuildCourseStats(ctx, r.store, t.id)
		return err
	}
	return r.reconcileOne(ctx, t.id)
}

// reconcileOne recounts a single content item. Vote summaries are
// recounted for every kind; threads additionally get their root comment
// count and root comments their reply count.
func (r *Reconciler) reconcileOne(ctx context.Context, id string) error {
	c, err := r.store.Content().Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			// Deleted while queued.
			return nil
		}
		return err
	}

	up, down, err := r.store.Votes().Tally(ctx, id)
	if err != nil {
		return err
	}
	if up != c.VoteUpCount || down != c.VoteDownCount {
		log.Debug().Str("id", id).
			Int("up", up).Int("stored_up", c.VoteUpCount).
			Int("down", down).Int("stored_down", c.VoteDownCount).
			Msg("vote summary drifted")
		if err := r.store.Content().SetVoteCounts(ctx, id, up, down); err != nil {
			return err
		}
	}

	switch {
	case c.IsThread():
		n, err := r.store.Content().CountComments(ctx, store.CommentFilter{ThreadID: id, RootsOnly: true})
		if err != nil {
			return err
		}
		if int(n) != c.CommentCount {
			if err := r.store.Content().SetCounts(ctx, id, int(n), c.ChildCount); err != nil {
				return err
			}
		}
	case c.ParentID == nil:
		n, err := r.store.Content().CountComments(ctx, store.CommentFilter{ParentID: &id})
		if err != nil {
			return err
		}
		if int(n) != c.ChildCount {
			if err := r.store.Content().SetCounts(ctx, id, c.CommentCount, int(n)); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunOnce reconciles a whole course in one pass: every thread and every
// comment recounted, then the stats rebuild. Backs the reconcile CLI
// command.
func (r *Reconciler) RunOnce(ctx context.Context, courseID string) error {
	threads, err := r.store.Content().FindThreads(ctx, store.ThreadQuery{
		Filter: store.ThreadFilter{CourseID: courseID},
	})
	if err != nil {
		return err
	}
	for _, t := range threads {
		if err := r.reconcileOne(ctx, t.ID); err != nil {
			return err
		}
		comments, err := r.store.Content().FindComments(ctx, store.CommentQuery{
			Filter: store.CommentFilter{ThreadID: t.ID},
		})
		if err != nil {
			return err
		}
		for _, c := range comments {
			if err := r.reconcileOne(ctx, c.ID); err != nil {
				return err
			}
		}
	}
	if _, err := rebuildCourseStats(ctx, r.store, courseID); err != nil {
		return err
	}
	log.Info().Str("course_id", courseID).Int("threads", len(threads)).Msg("course reconciled")
	return nil
}
