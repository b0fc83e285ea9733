package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/services"
)

type VoteHandler struct {
	svc *services.Services
	sz  *serializer
}

func NewVoteHandler(svc *services.Services) *VoteHandler {
	return &VoteHandler{svc: svc, sz: newSerializer(svc.Users)}
}

// UpdateThreadVotes handles PUT /threads/:thread_id/votes.
func (h *VoteHandler) UpdateThreadVotes(c *gin.Context) {
	h.update(c, c.Param("thread_id"), models.KindThread)
}

// DeleteThreadVote handles DELETE /threads/:thread_id/votes.
func (h *VoteHandler) DeleteThreadVote(c *gin.Context) {
	h.remove(c, c.Param("thread_id"), models.KindThread)
}

// UpdateCommentVotes handles PUT /comments/:comment_id/votes.
func (h *VoteHandler) UpdateCommentVotes(c *gin.Context) {
	h.update(c, c.Param("comment_id"), models.KindComment)
}

// DeleteCommentVote handles DELETE /comments/:comment_id/votes.
func (h *VoteHandler) DeleteCommentVote(c *gin.Context) {
	h.remove(c, c.Param("comment_id"), models.KindComment)
}

func (h *VoteHandler) update(c *gin.Context, contentID string, kind models.Kind) {
	var req struct {
		UserID string `json:"user_id"`
		Value  string `json:"value"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	content, err := h.svc.Votes.Update(c.Request.Context(), contentID, req.UserID, req.Value, kind)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.contentDefaults(c.Request.Context(), content))
}

func (h *VoteHandler) remove(c *gin.Context, contentID string, kind models.Kind) {
	content, err := h.svc.Votes.Remove(c.Request.Context(), contentID, c.Query("user_id"), kind)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.contentDefaults(c.Request.Context(), content))
}
