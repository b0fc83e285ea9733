// Package services holds the domain logic between the HTTP handlers and
// the storage backends: vote accounting, abuse-flag bookkeeping,
// subscriptions, read state, the comment lifecycle, the thread listing
// engine, per-course engagement stats, and the reconciler worker.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

// Services bundles one instance of every domain service over a shared
// store. The reconciler is optional; a nil reconciler turns scheduling
// into a no-op.
type Services struct {
	Users         *UserService
	Threads       *ThreadService
	Comments      *CommentService
	Votes         *VoteService
	Flags         *FlagService
	Subscriptions *SubscriptionService
	Stats         *StatsService
	Reconciler    *Reconciler
}

func New(st store.Store, rec *Reconciler) *Services {
	users := NewUserService(st)
	return &Services{
		Users:         users,
		Threads:       NewThreadService(st, users),
		Comments:      NewCommentService(st, users, rec),
		Votes:         NewVoteService(st, users, rec),
		Flags:         NewFlagService(st, users),
		Subscriptions: NewSubscriptionService(st, users),
		Stats:         NewStatsService(st),
		Reconciler:    rec,
	}
}

// getContent loads a content item and checks its variant. A kind mismatch
// reads as absence: the thread endpoints never see comments and vice versa.
func getContent(ctx context.Context, st store.Store, id string, kind models.Kind) (*models.Content, error) {
	c, err := st.Content().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Kind != kind {
		return nil, fmt.Errorf("%s %s: %w", strings.ToLower(string(kind)), id, store.ErrNotFound)
	}
	return c, nil
}

// attributed reports whether content counts toward its author's public
// engagement stats.
func attributed(c *models.Content) bool {
	return !c.Anonymous && !c.AnonymousToPeers
}

// pageCount computes the page total for offset pagination, never less
// than one.
func pageCount(total int64, perPage int) int {
	if perPage < 1 {
		return 1
	}
	n := int((total + int64(perPage) - 1) / int64(perPage))
	if n < 1 {
		n = 1
	}
	return n
}
