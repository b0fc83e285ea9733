package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/services"
)

type FlagHandler struct {
	svc *services.Services
	sz  *serializer
}

func NewFlagHandler(svc *services.Services) *FlagHandler {
	return &FlagHandler{svc: svc, sz: newSerializer(svc.Users)}
}

// FlagThread handles PUT /threads/:thread_id/abuse_flag.
func (h *FlagHandler) FlagThread(c *gin.Context) {
	h.flag(c, c.Param("thread_id"), models.KindThread)
}

// UnflagThread handles PUT /threads/:thread_id/abuse_unflag.
func (h *FlagHandler) UnflagThread(c *gin.Context) {
	h.unflag(c, c.Param("thread_id"), models.KindThread)
}

// FlagComment handles PUT /comments/:comment_id/abuse_flag.
func (h *FlagHandler) FlagComment(c *gin.Context) {
	h.flag(c, c.Param("comment_id"), models.KindComment)
}

// UnflagComment handles PUT /comments/:comment_id/abuse_unflag.
func (h *FlagHandler) UnflagComment(c *gin.Context) {
	h.unflag(c, c.Param("comment_id"), models.KindComment)
}

func (h *FlagHandler) flag(c *gin.Context, contentID string, kind models.Kind) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	content, err := h.svc.Flags.Flag(c.Request.Context(), contentID, req.UserID, kind)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.contentDefaults(c.Request.Context(), content))
}

func (h *FlagHandler) unflag(c *gin.Context, contentID string, kind models.Kind) {
	var req struct {
		UserID string `json:"user_id"`
		All    bool   `json:"all"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	content, err := h.svc.Flags.Unflag(c.Request.Context(), contentID, req.UserID, req.All, kind)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.contentDefaults(c.Request.Context(), content))
}
