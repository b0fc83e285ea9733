package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edly-io/forum-sub001/internal/services"
)

type CommentHandler struct {
	svc *services.Services
	sz  *serializer
}

func NewCommentHandler(svc *services.Services) *CommentHandler {
	return &CommentHandler{svc: svc, sz: newSerializer(svc.Users)}
}

type createCommentRequest struct {
	Body             string `json:"body"`
	CourseID         string `json:"course_id"`
	UserID           string `json:"user_id"`
	Anonymous        bool   `json:"anonymous"`
	AnonymousToPeers bool   `json:"anonymous_to_peers"`
}

func (r createCommentRequest) input() services.CreateCommentInput {
	return services.CreateCommentInput{
		Body:             r.Body,
		CourseID:         r.CourseID,
		UserID:           r.UserID,
		Anonymous:        r.Anonymous,
		AnonymousToPeers: r.AnonymousToPeers,
	}
}

// CreateRoot handles POST /threads/:thread_id/comments.
func (h *CommentHandler) CreateRoot(c *gin.Context) {
	var req createCommentRequest
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	comment, err := h.svc.Comments.CreateRoot(c.Request.Context(), c.Param("thread_id"), req.input())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.comment(comment, false))
}

// CreateChild handles POST /comments/:comment_id, replying to a root
// comment.
func (h *CommentHandler) CreateChild(c *gin.Context) {
	var req createCommentRequest
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	comment, err := h.svc.Comments.CreateChild(c.Request.Context(), c.Param("comment_id"), req.input())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.comment(comment, false))
}

// Get handles GET /comments/:comment_id.
func (h *CommentHandler) Get(c *gin.Context) {
	comment, err := h.svc.Comments.Get(c.Request.Context(), c.Param("comment_id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.comment(comment, comment.ParentID == nil))
}

// Update handles PUT /comments/:comment_id.
func (h *CommentHandler) Update(c *gin.Context) {
	var req struct {
		Body              *string `json:"body"`
		Anonymous         *bool   `json:"anonymous"`
		AnonymousToPeers  *bool   `json:"anonymous_to_peers"`
		Endorsed          *bool   `json:"endorsed"`
		EndorsementUserID string  `json:"endorsement_user_id"`
		EditingUserID     string  `json:"editing_user_id"`
		EditReasonCode    string  `json:"edit_reason_code"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	comment, err := h.svc.Comments.Update(c.Request.Context(), c.Param("comment_id"), services.UpdateCommentInput{
		Body:              req.Body,
		Anonymous:         req.Anonymous,
		AnonymousToPeers:  req.AnonymousToPeers,
		Endorsed:          req.Endorsed,
		EndorsementUserID: req.EndorsementUserID,
		EditingUserID:     req.EditingUserID,
		EditReasonCode:    req.EditReasonCode,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.comment(comment, comment.ParentID == nil))
}

// Delete handles DELETE /comments/:comment_id. The response carries the
// comment as it was before deletion.
func (h *CommentHandler) Delete(c *gin.Context) {
	comment, err := h.svc.Comments.Delete(c.Request.Context(), c.Param("comment_id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.comment(comment, false))
}
