package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edly-io/forum-sub001/internal/config"
	"github.com/edly-io/forum-sub001/internal/services"
	"github.com/edly-io/forum-sub001/internal/store"
)

// threadListParams is the accepted query surface of the thread listing.
// Anything else is rejected rather than silently ignored.
var threadListParams = map[string]bool{
	"course_id":          true,
	"user_id":            true,
	"author_id":          true,
	"thread_type":        true,
	"group_id":           true,
	"group_ids":          true,
	"commentable_ids":    true,
	"filter_flagged":     true,
	"filter_unresponded": true,
	"unread":             true,
	"unanswered":         true,
	"count_flagged":      true,
	"sort_key":           true,
	"page":               true,
	"per_page":           true,
	"request_id":         true,
}

type ThreadHandler struct {
	svc *services.Services
	sz  *serializer
	api config.APIConfig
}

func NewThreadHandler(svc *services.Services, api config.APIConfig) *ThreadHandler {
	return &ThreadHandler{svc: svc, sz: newSerializer(svc.Users), api: api}
}

// List handles GET /threads.
func (h *ThreadHandler) List(c *gin.Context) {
	if err := allowParams(c, threadListParams); err != nil {
		renderError(c, err)
		return
	}
	courseID := c.Query("course_id")
	if courseID == "" {
		renderError(c, store.Validationf("course_id is required"))
		return
	}
	groupIDs, err := parseGroupIDs(c)
	if err != nil {
		renderError(c, err)
		return
	}
	page, perPage := paging(c, h.api)

	result, err := h.svc.Threads.List(c.Request.Context(), services.ListThreadsInput{
		CourseID:       courseID,
		UserID:         c.Query("user_id"),
		AuthorID:       c.Query("author_id"),
		ThreadType:     c.Query("thread_type"),
		GroupIDs:       groupIDs,
		CommentableIDs: splitCSV(c.Query("commentable_ids")),
		Flagged:        queryBool(c, "filter_flagged"),
		Unresponded:    queryBool(c, "filter_unresponded"),
		Unread:         queryBool(c, "unread"),
		Unanswered:     queryBool(c, "unanswered"),
		CountFlagged:   queryBool(c, "count_flagged"),
		SortKey:        c.Query("sort_key"),
		Page:           page,
		PerPage:        perPage,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.threadPage(c.Request.Context(), result))
}

// Get handles GET /threads/:thread_id.
func (h *ThreadHandler) Get(c *gin.Context) {
	opts := services.ThreadDetailOptions{
		UserID:        c.Query("user_id"),
		WithResponses: queryBool(c, "with_responses"),
		RespSkip:      queryInt(c, "resp_skip", 0),
		RespLimit:     queryInt(c, "resp_limit", 100),
		ReverseOrder:  queryBool(c, "reverse_order"),
		MergeQuestion: queryBool(c, "merge_question_type_responses"),
		MarkAsRead:    queryBool(c, "mark_as_read"),
	}
	detail, err := h.svc.Threads.Get(c.Request.Context(), c.Param("thread_id"), opts)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.threadDetail(c.Request.Context(), detail, opts.WithResponses))
}

// Create handles POST /threads.
func (h *ThreadHandler) Create(c *gin.Context) {
	var req struct {
		Title            string `json:"title"`
		Body             string `json:"body"`
		CourseID         string `json:"course_id"`
		UserID           string `json:"user_id"`
		CommentableID    string `json:"commentable_id"`
		ThreadType       string `json:"thread_type"`
		GroupID          *int64 `json:"group_id"`
		Anonymous        bool   `json:"anonymous"`
		AnonymousToPeers bool   `json:"anonymous_to_peers"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	thread, err := h.svc.Threads.Create(c.Request.Context(), services.CreateThreadInput{
		Title:            req.Title,
		Body:             req.Body,
		CourseID:         req.CourseID,
		UserID:           req.UserID,
		CommentableID:    req.CommentableID,
		ThreadType:       req.ThreadType,
		GroupID:          req.GroupID,
		Anonymous:        req.Anonymous,
		AnonymousToPeers: req.AnonymousToPeers,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.threadDefaults(c.Request.Context(), thread))
}

// Update handles PUT /threads/:thread_id.
func (h *ThreadHandler) Update(c *gin.Context) {
	var req struct {
		Title            *string `json:"title"`
		Body             *string `json:"body"`
		Anonymous        *bool   `json:"anonymous"`
		AnonymousToPeers *bool   `json:"anonymous_to_peers"`
		CommentableID    *string `json:"commentable_id"`
		ThreadType       *string `json:"thread_type"`
		GroupID          *int64  `json:"group_id"`
		Closed           *bool   `json:"closed"`
		ClosedByID       string  `json:"closed_by_id"`
		CloseReasonCode  string  `json:"close_reason_code"`
		EditingUserID    string  `json:"editing_user_id"`
		EditReasonCode   string  `json:"edit_reason_code"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	thread, err := h.svc.Threads.Update(c.Request.Context(), c.Param("thread_id"), services.UpdateThreadInput{
		Title:            req.Title,
		Body:             req.Body,
		Anonymous:        req.Anonymous,
		AnonymousToPeers: req.AnonymousToPeers,
		CommentableID:    req.CommentableID,
		ThreadType:       req.ThreadType,
		GroupID:          req.GroupID,
		Closed:           req.Closed,
		ClosedByID:       req.ClosedByID,
		CloseReasonCode:  req.CloseReasonCode,
		EditingUserID:    req.EditingUserID,
		EditReasonCode:   req.EditReasonCode,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.threadDefaults(c.Request.Context(), thread))
}

// Delete handles DELETE /threads/:thread_id. The response carries the
// thread as it was before deletion.
func (h *ThreadHandler) Delete(c *gin.Context) {
	thread, err := h.svc.Threads.Delete(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.threadDefaults(c.Request.Context(), thread))
}

// Pin handles PUT /threads/:thread_id/pin.
func (h *ThreadHandler) Pin(c *gin.Context) {
	h.setPinned(c, true)
}

// Unpin handles PUT /threads/:thread_id/unpin.
func (h *ThreadHandler) Unpin(c *gin.Context) {
	h.setPinned(c, false)
}

func (h *ThreadHandler) setPinned(c *gin.Context, pinned bool) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	op := h.svc.Threads.Pin
	if !pinned {
		op = h.svc.Threads.Unpin
	}
	thread, err := op(c.Request.Context(), c.Param("thread_id"), req.UserID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.threadDefaults(c.Request.Context(), thread))
}
