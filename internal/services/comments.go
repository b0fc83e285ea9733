package services

import (
	"context"
	"time"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

// CommentService owns the comment lifecycle. Root comments count toward
// the thread's comment_count; replies only toward their parent's
// child_count. Both bump the thread's activity timestamp.
type CommentService struct {
	store      store.Store
	users      *UserService
	reconciler *Reconciler
}

func NewCommentService(st store.Store, users *UserService, rec *Reconciler) *CommentService {
	return &CommentService{store: st, users: users, reconciler: rec}
}

// CreateCommentInput carries the writable fields of a new comment.
type CreateCommentInput struct {
	Body             string
	CourseID         string
	UserID           string
	Anonymous        bool
	AnonymousToPeers bool
}

func (in *CreateCommentInput) validate() error {
	if in.Body == "" {
		return store.Validationf("body is required")
	}
	if in.CourseID == "" {
		return store.Validationf("course_id is required")
	}
	if in.UserID == "" {
		return store.Validationf("user_id is required")
	}
	return nil
}

// CreateRoot adds a response to a thread.
func (s *CommentService) CreateRoot(ctx context.Context, threadID string, in CreateCommentInput) (*models.Content, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	thread, err := getContent(ctx, s.store, threadID, models.KindThread)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Require(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &models.Content{
		Kind:             models.KindComment,
		CourseID:         in.CourseID,
		Body:             in.Body,
		AuthorID:         user.ID,
		AuthorUsername:   user.Username,
		Anonymous:        in.Anonymous,
		AnonymousToPeers: in.AnonymousToPeers,
		Visible:          true,
		CommentableID:    thread.CommentableID,
		ThreadID:         &thread.ID,
		Depth:            0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.store.Atomically(ctx, func(tx store.Store) error {
		if err := tx.Content().Insert(ctx, c); err != nil {
			return err
		}
		if err := tx.Content().AdjustCommentCount(ctx, thread.ID, 1); err != nil {
			return err
		}
		if err := tx.Content().TouchThread(ctx, thread.ID, now); err != nil {
			return err
		}
		// The author has seen everything up to their own response.
		if err := tx.ReadStates().MarkRead(ctx, user.ID, thread.CourseID, thread.ID, now); err != nil {
			return err
		}
		if attributed(c) {
			return tx.CourseStats().Adjust(ctx, c.CourseID, c.AuthorID, c.AuthorUsername, store.CourseStatDelta{
				Responses:      1,
				LastActivityAt: &now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reconciler.ScheduleContent(thread.ID)
	return c, nil
}

// CreateChild adds a reply under a root comment. Replying to a reply is
// rejected; the tree is two levels deep.
func (s *CommentService) CreateChild(ctx context.Context, parentID string, in CreateCommentInput) (*models.Content, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	parent, err := getContent(ctx, s.store, parentID, models.KindComment)
	if err != nil {
		return nil, err
	}
	if parent.ParentID != nil {
		return nil, store.Validationf("comment depth limit reached")
	}
	user, err := s.users.Require(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	threadID := *parent.ThreadID
	now := time.Now().UTC()
	c := &models.Content{
		Kind:             models.KindComment,
		CourseID:         in.CourseID,
		Body:             in.Body,
		AuthorID:         user.ID,
		AuthorUsername:   user.Username,
		Anonymous:        in.Anonymous,
		AnonymousToPeers: in.AnonymousToPeers,
		Visible:          true,
		CommentableID:    parent.CommentableID,
		ThreadID:         &threadID,
		ParentID:         &parent.ID,
		Depth:            1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.store.Atomically(ctx, func(tx store.Store) error {
		if err := tx.Content().Insert(ctx, c); err != nil {
			return err
		}
		if err := tx.Content().AdjustChildCount(ctx, parent.ID, 1); err != nil {
			return err
		}
		if err := tx.Content().TouchThread(ctx, threadID, now); err != nil {
			return err
		}
		if err := tx.ReadStates().MarkRead(ctx, user.ID, parent.CourseID, threadID, now); err != nil {
			return err
		}
		if attributed(c) {
			return tx.CourseStats().Adjust(ctx, c.CourseID, c.AuthorID, c.AuthorUsername, store.CourseStatDelta{
				Replies:        1,
				LastActivityAt: &now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reconciler.ScheduleContent(parent.ID)
	return c, nil
}

func (s *CommentService) Get(ctx context.Context, id string) (*models.Content, error) {
	return getContent(ctx, s.store, id, models.KindComment)
}

// UpdateCommentInput carries the mutable comment fields. Nil pointers
// leave a field untouched.
type UpdateCommentInput struct {
	Body             *string
	Anonymous        *bool
	AnonymousToPeers *bool

	// Endorsed toggles the endorsement; setting it records the endorsing
	// user and time, clearing it wipes both.
	Endorsed          *bool
	EndorsementUserID string

	// EditingUserID attributes a body edit in the edit history.
	EditingUserID  string
	EditReasonCode string
}

// Update applies a partial edit. A body change made by an identified
// editor lands in the comment's edit history with the original text.
func (s *CommentService) Update(ctx context.Context, id string, in UpdateCommentInput) (*models.Content, error) {
	c, err := getContent(ctx, s.store, id, models.KindComment)
	if err != nil {
		return nil, err
	}
	if in.EditReasonCode != "" && !models.ValidEditReason(in.EditReasonCode) {
		return nil, store.Validationf("invalid edit_reason_code: %q", in.EditReasonCode)
	}

	upd := store.ContentUpdate{
		Anonymous:        in.Anonymous,
		AnonymousToPeers: in.AnonymousToPeers,
	}
	if in.Body != nil {
		upd.Body = in.Body
		if in.EditingUserID != "" && *in.Body != c.Body {
			editor, err := s.users.Require(ctx, in.EditingUserID)
			if err != nil {
				return nil, err
			}
			upd.AppendEdit = &models.EditHistoryEntry{
				OriginalBody:   c.Body,
				ReasonCode:     in.EditReasonCode,
				EditorUsername: editor.Username,
				CreatedAt:      time.Now().UTC(),
			}
		}
	}
	if in.Endorsed != nil {
		if *in.Endorsed {
			endorsed := true
			upd.Endorsed = &endorsed
			if in.EndorsementUserID != "" {
				now := time.Now().UTC()
				upd.EndorsementUserID = &in.EndorsementUserID
				upd.EndorsementTime = &now
			}
		} else {
			upd.ClearEndorsement = true
		}
	}

	if _, err := s.store.Content().Update(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.store.Content().Get(ctx, id)
}

// Delete removes a comment, its replies, and every vote on them, then
// settles the thread's counters. The returned record is the pre-delete
// state.
func (s *CommentService) Delete(ctx context.Context, id string) (*models.Content, error) {
	c, err := getContent(ctx, s.store, id, models.KindComment)
	if err != nil {
		return nil, err
	}
	threadID := *c.ThreadID
	now := time.Now().UTC()

	err = s.store.Atomically(ctx, func(tx store.Store) error {
		if c.ParentID == nil {
			children, err := tx.Content().FindComments(ctx, store.CommentQuery{
				Filter: store.CommentFilter{ParentID: &c.ID},
			})
			if err != nil {
				return err
			}
			for _, child := range children {
				if err := tx.Votes().DeleteForContent(ctx, child.ID); err != nil {
					return err
				}
				if _, err := tx.Content().Delete(ctx, child.ID); err != nil {
					return err
				}
			}
		}

		if err := tx.Votes().DeleteForContent(ctx, c.ID); err != nil {
			return err
		}
		if _, err := tx.Content().Delete(ctx, c.ID); err != nil {
			return err
		}

		if c.ParentID == nil {
			if err := tx.Content().AdjustCommentCount(ctx, threadID, -1); err != nil {
				return err
			}
		} else {
			if err := tx.Content().AdjustChildCount(ctx, *c.ParentID, -1); err != nil {
				return err
			}
		}
		if err := tx.Content().TouchThread(ctx, threadID, now); err != nil {
			return err
		}

		if attributed(c) {
			delta := store.CourseStatDelta{Responses: -1}
			if c.ParentID != nil {
				delta = store.CourseStatDelta{Replies: -1}
			}
			return tx.CourseStats().Adjust(ctx, c.CourseID, c.AuthorID, c.AuthorUsername, delta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reconciler.ScheduleContent(threadID)
	return c, nil
}
