// Package handlers is the JSON surface over the domain services. One
// handler struct per entity, registered by the router.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/edly-io/forum-sub001/internal/config"
	"github.com/edly-io/forum-sub001/internal/store"
)

// renderError maps a service error to its response. Validation and query
// errors carry their message out; unexpected errors are logged and reach
// the client as a bare 500.
func renderError(c *gin.Context, err error) {
	var verr *store.ValidationError
	var qerr *store.InvalidQueryError
	switch {
	case store.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "requested object not found"})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	case errors.As(err, &qerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": qerr.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	default:
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// bindJSON decodes the request body, turning malformed payloads into a
// validation error.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return store.Validationf("invalid request body")
	}
	return nil
}

// paging reads page and per_page, applying the configured default and cap.
func paging(c *gin.Context, api config.APIConfig) (page, perPage int) {
	page = queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage = queryInt(c, "per_page", api.PerPageDefault)
	if perPage < 1 {
		perPage = api.PerPageDefault
	}
	if perPage > api.PerPageMax {
		perPage = api.PerPageMax
	}
	return page, perPage
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryBool(c *gin.Context, name string) bool {
	return strings.EqualFold(c.Query(name), "true")
}

// splitCSV parses a comma separated id list; empty input stays nil so
// filters can tell "absent" from "empty".
func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseGroupIDs reads group_ids (comma separated) or the single group_id
// param.
func parseGroupIDs(c *gin.Context) ([]int64, error) {
	raw := c.Query("group_ids")
	if raw == "" {
		raw = c.Query("group_id")
	}
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, store.Validationf("invalid group id: %q", p)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

// allowParams rejects any query parameter outside the given set.
func allowParams(c *gin.Context, allowed map[string]bool) error {
	for key := range c.Request.URL.Query() {
		if !allowed[key] {
			return &store.InvalidQueryError{Param: key}
		}
	}
	return nil
}

// Heartbeat answers liveness probes.
func Heartbeat(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"OK": true})
}
