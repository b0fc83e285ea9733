package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edly-io/forum-sub001/internal/config"
	"github.com/edly-io/forum-sub001/internal/services"
	"github.com/edly-io/forum-sub001/internal/store"
)

type SubscriptionHandler struct {
	svc *services.Services
	sz  *serializer
	api config.APIConfig
}

func NewSubscriptionHandler(svc *services.Services, api config.APIConfig) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, sz: newSerializer(svc.Users), api: api}
}

// Subscribe handles POST /users/:user_id/subscriptions. Only threads can
// be followed.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req struct {
		SourceID   string `json:"source_id"`
		SourceType string `json:"source_type"`
	}
	if err := bindJSON(c, &req); err != nil {
		renderError(c, err)
		return
	}
	if req.SourceType != "" && req.SourceType != "thread" {
		renderError(c, store.Validationf("invalid source_type: %q", req.SourceType))
		return
	}
	sub, err := h.svc.Subscriptions.Subscribe(c.Request.Context(), c.Param("user_id"), req.SourceID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.subscription(sub))
}

// Unsubscribe handles DELETE /users/:user_id/subscriptions. The source
// rides the query string.
func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	sourceType := c.Query("source_type")
	if sourceType != "" && sourceType != "thread" {
		renderError(c, store.Validationf("invalid source_type: %q", sourceType))
		return
	}
	sub, err := h.svc.Subscriptions.Unsubscribe(c.Request.Context(), c.Param("user_id"), c.Query("source_id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sz.subscription(sub))
}

// ListSubscribers handles GET /threads/:thread_id/subscriptions.
func (h *SubscriptionHandler) ListSubscribers(c *gin.Context) {
	page, perPage := paging(c, h.api)
	result, err := h.svc.Subscriptions.ListSubscribers(c.Request.Context(), c.Param("thread_id"), page, perPage)
	if err != nil {
		renderError(c, err)
		return
	}

	collection := make([]gin.H, 0, len(result.Collection))
	for _, sub := range result.Collection {
		collection = append(collection, h.sz.subscription(sub))
	}
	c.JSON(http.StatusOK, gin.H{
		"collection":          collection,
		"subscriptions_count": result.SubscriptionsCount,
		"page":                result.Page,
		"num_pages":           result.NumPages,
	})
}
