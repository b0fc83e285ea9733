package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edly-io/forum-sub001/internal/config"
	"github.com/edly-io/forum-sub001/internal/services"
	"github.com/edly-io/forum-sub001/internal/store"
)

// userThreadsParams is the accepted query surface of the per-user thread
// listings (active and subscribed threads).
var userThreadsParams = map[string]bool{
	"course_id":       true,
	"thread_type":     true,
	"group_id":        true,
	"group_ids":       true,
	"commentable_ids": true,
	"flagged":         true,
	"unread":          true,
	"unanswered":      true,
	"unresponded":     true,
	"count_flagged":   true,
	"sort_key":        true,
	"page":            true,
	"per_page":        true,
	"request_id":      true,
}

var statsParams = map[string]bool{
	"sort_key":        true,
	"page":            true,
	"per_page":        true,
	"with_timestamps": true,
	"request_id":      true,
}

type UserHandler struct {
	svc *services.Services
	sz  *serializer
	api config.APIConfig
}

func NewUserHandler(svc *services.Services, api config.APIConfig) *UserHandler {
	return &UserHandler{svc: svc, sz: newSerializer(svc.Users), api: api}
}

// Create handles POST /users. The body may carry nothing but id and
// username.
func (h *UserHandler) Create(c *gin.Context) {
	var raw map[string]any
	if err := bindJSON(c, &raw); err != nil {
		renderError(c, err)
		return
	}
	for key := range raw {
		if key != "id" && key != "username" {
			renderError(c, store.Validationf("Invalid parameter: %s", key))
			return
		}
	}
	id, _ := raw["id"].(string)
	username, _ := raw["username"].(string)

	user, err := h.svc.Users.Create(c.Request.Context(), id, username)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.user(&services.UserInfo{User: user}))
}

// Get handles GET /users/:user_id.
func (h *UserHandler) Get(c *gin.Context) {
	info, err := h.svc.Users.Info(c.Request.Context(), c.Param("user_id"), c.Query("course_id"), queryBool(c, "complete"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.user(info))
}

// Update handles PUT /users/:user_id.
func (h *UserHandler) Update(c *gin.Context) {
	var req struct {
		Username       *string `json:"username"`
		DefaultSortKey *string `json:"default_sort_key"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	user, err := h.svc.Users.Update(c.Request.Context(), c.Param("user_id"), req.Username, req.DefaultSortKey)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.user(&services.UserInfo{User: user}))
}

// MarkRead handles POST /users/:user_id/read.
func (h *UserHandler) MarkRead(c *gin.Context) {
	var req struct {
		SourceType string `json:"source_type"`
		SourceID   string `json:"source_id"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	userID := c.Param("user_id")
	if err := h.svc.Users.MarkRead(c.Request.Context(), userID, req.SourceID); err != nil {
		renderError(c, err)
		return
	}
	user, err := h.svc.Users.Require(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.user(&services.UserInfo{User: user}))
}

// Retire handles POST /users/:user_id/retire.
func (h *UserHandler) Retire(c *gin.Context) {
	var req struct {
		RetiredUsername string `json:"retired_username"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	if err := h.svc.Users.Retire(c.Request.Context(), c.Param("user_id"), req.RetiredUsername); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// ReplaceUsername handles POST /users/:user_id/replace_username.
func (h *UserHandler) ReplaceUsername(c *gin.Context) {
	var req struct {
		NewUsername string `json:"new_username"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	if err := h.svc.Users.ReplaceUsername(c.Request.Context(), c.Param("user_id"), req.NewUsername); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// ActiveThreads handles GET /users/:user_id/active_threads.
func (h *UserHandler) ActiveThreads(c *gin.Context) {
	in, err := h.userThreadsInput(c)
	if err != nil {
		renderError(c, err)
		return
	}
	result, err := h.svc.Threads.ActiveThreads(c.Request.Context(), c.Param("user_id"), in)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.threadPage(c.Request.Context(), result))
}

// SubscribedThreads handles GET /users/:user_id/subscribed_threads.
func (h *UserHandler) SubscribedThreads(c *gin.Context) {
	in, err := h.userThreadsInput(c)
	if err != nil {
		renderError(c, err)
		return
	}
	result, err := h.svc.Threads.SubscribedThreads(c.Request.Context(), c.Param("user_id"), in)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.threadPage(c.Request.Context(), result))
}

func (h *UserHandler) userThreadsInput(c *gin.Context) (services.ListThreadsInput, error) {
	if err := allowParams(c, userThreadsParams); err != nil {
		return services.ListThreadsInput{}, err
	}
	courseID := c.Query("course_id")
	if courseID == "" {
		return services.ListThreadsInput{}, store.Validationf("course_id is required")
	}
	groupIDs, err := parseGroupIDs(c)
	if err != nil {
		return services.ListThreadsInput{}, err
	}
	page, perPage := paging(c, h.api)
	return services.ListThreadsInput{
		CourseID:       courseID,
		ThreadType:     c.Query("thread_type"),
		GroupIDs:       groupIDs,
		CommentableIDs: splitCSV(c.Query("commentable_ids")),
		Flagged:        queryBool(c, "flagged"),
		Unread:         queryBool(c, "unread"),
		Unanswered:     queryBool(c, "unanswered"),
		Unresponded:    queryBool(c, "unresponded"),
		CountFlagged:   queryBool(c, "count_flagged"),
		SortKey:        c.Query("sort_key"),
		Page:           page,
		PerPage:        perPage,
	}, nil
}

// Stats handles GET /users/:user_id/stats. The course id rides the user
// slot of the path.
func (h *UserHandler) Stats(c *gin.Context) {
	if err := allowParams(c, statsParams); err != nil {
		renderError(c, err)
		return
	}
	page, perPage := paging(c, h.api)
	result, err := h.svc.Stats.List(c.Request.Context(), c.Param("user_id"), c.Query("sort_key"), page, perPage)
	if err != nil {
		renderError(c, err)
		return
	}

	withTimestamps := queryBool(c, "with_timestamps")
	userStats := make([]gin.H, 0, len(result.UserStats))
	for _, st := range result.UserStats {
		userStats = append(userStats, h.sz.courseStat(st, withTimestamps))
	}
	c.JSON(http.StatusOK, gin.H{
		"user_stats": userStats,
		"page":       result.Page,
		"num_pages":  result.NumPages,
		"count":      result.Count,
	})
}

// UpdateStats handles POST /users/:user_id/update_stats, rebuilding
// every author's counters for the course named by the path. The response
// lists the user ids that were recomputed.
func (h *UserHandler) UpdateStats(c *gin.Context) {
	userIDs, err := h.svc.Stats.Rebuild(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		renderError(c, err)
		return
	}
	if userIDs == nil {
		userIDs = []string{}
	}
	c.JSON(http.StatusOK, userIDs)
}
