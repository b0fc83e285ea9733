package router

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edly-io/forum-sub001/internal/config"
	"github.com/edly-io/forum-sub001/internal/services"
	"github.com/edly-io/forum-sub001/internal/store/docstore"
)

const testCourse = "course-v1:edX+DemoX+2026"

// courseQuery is the course id as it travels in a query string, where a
// bare + would decode to a space.
var courseQuery = url.QueryEscape(testCourse)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st, err := docstore.Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	r := gin.New()
	RegisterRoutes(r, services.New(st, nil), config.APIConfig{PerPageDefault: 20, PerPageMax: 100})
	return r
}

func do(t *testing.T, r *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func registerUser(t *testing.T, r *gin.Engine, id, username string) {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v2/users", gin.H{"id": id, "username": username})
	require.Equal(t, http.StatusOK, w.Code)
}

func createThread(t *testing.T, r *gin.Engine, userID, title string) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v2/threads", gin.H{
		"title": title, "body": "body", "course_id": testCourse, "user_id": userID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	return decode(t, w)["id"].(string)
}

func createComment(t *testing.T, r *gin.Engine, threadID, userID, body string) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v2/threads/"+threadID+"/comments", gin.H{
		"body": body, "course_id": testCourse, "user_id": userID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	return decode(t, w)["id"].(string)
}

func TestHeartbeatAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/heartbeat", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"OK":true}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "forum_requests_total")
}

func TestUserEndpoints(t *testing.T) {
	r := newTestRouter(t)

	t.Run("create", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/users", gin.H{"id": "1", "username": "alice"})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "1", body["id"])
		assert.Equal(t, "1", body["external_id"])
		assert.Equal(t, "alice", body["username"])
	})

	t.Run("create rejects unknown fields", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/users", gin.H{"id": "2", "username": "bob", "admin": true})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Invalid parameter: admin"}`, w.Body.String())
	})

	t.Run("complete view", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/users/1?complete=true", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, []any{}, body["subscribed_thread_ids"])
		assert.Equal(t, []any{}, body["upvoted_ids"])
		assert.Contains(t, body, "default_sort_key")
	})

	t.Run("unknown user", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/users/404", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"requested object not found"}`, w.Body.String())
	})

	t.Run("update", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v2/users/1", gin.H{"default_sort_key": "votes"})
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, r, http.MethodGet, "/api/v2/users/1?complete=true", nil)
		assert.Equal(t, "votes", decode(t, w)["default_sort_key"])
	})
}

func TestThreadEndpoints(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "1", "alice")
	registerUser(t, r, "2", "bob")

	var threadID string
	t.Run("create", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/threads", gin.H{
			"title": "hello", "body": "world", "course_id": testCourse, "user_id": "1",
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		threadID = body["id"].(string)
		assert.NotEmpty(t, threadID)
		assert.Equal(t, "thread", body["type"])
		assert.Equal(t, "discussion", body["thread_type"])
		assert.Equal(t, "course", body["commentable_id"])
		assert.Equal(t, "alice", body["username"])
		assert.EqualValues(t, 0, body["comments_count"])
		assert.Equal(t, true, body["read"])
	})

	t.Run("create without a title", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/threads", gin.H{
			"body": "world", "course_id": testCourse, "user_id": "1",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"title is required"}`, w.Body.String())
	})

	t.Run("listing requires course_id", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/threads", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("listing rejects unknown params", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/threads?course_id="+courseQuery+"&sort=hot", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"unsupported query parameter: sort"}`, w.Body.String())
	})

	t.Run("listing", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/threads?course_id="+courseQuery, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 1, body["thread_count"])
		assert.EqualValues(t, 1, body["num_pages"])
		assert.Len(t, body["collection"], 1)
	})

	t.Run("pagination", func(t *testing.T) {
		createThread(t, r, "1", "second")
		createThread(t, r, "1", "third")

		w := do(t, r, http.MethodGet, "/api/v2/threads?course_id="+courseQuery+"&per_page=2", nil)
		body := decode(t, w)
		assert.Len(t, body["collection"], 2)
		assert.EqualValues(t, 2, body["num_pages"])
		assert.EqualValues(t, 3, body["thread_count"])

		w = do(t, r, http.MethodGet, "/api/v2/threads?course_id="+courseQuery+"&per_page=2&page=2", nil)
		assert.Len(t, decode(t, w)["collection"], 1)
	})

	t.Run("get and update", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/threads/"+threadID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, threadID, decode(t, w)["id"])

		w = do(t, r, http.MethodPut, "/api/v2/threads/"+threadID, gin.H{"title": "renamed"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "renamed", decode(t, w)["title"])

		w = do(t, r, http.MethodGet, "/api/v2/threads/missing", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("votes", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v2/threads/"+threadID+"/votes", gin.H{"user_id": "2", "value": "up"})
		require.Equal(t, http.StatusOK, w.Code)
		votes := decode(t, w)["votes"].(map[string]any)
		assert.EqualValues(t, 1, votes["up_count"])
		assert.EqualValues(t, 1, votes["point"])

		w = do(t, r, http.MethodPut, "/api/v2/threads/"+threadID+"/votes", gin.H{"user_id": "2", "value": "sideways"})
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = do(t, r, http.MethodDelete, "/api/v2/threads/"+threadID+"/votes?user_id=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		votes = decode(t, w)["votes"].(map[string]any)
		assert.EqualValues(t, 0, votes["point"])
	})

	t.Run("abuse flags", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v2/threads/"+threadID+"/abuse_flag", gin.H{"user_id": "2"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{"2"}, decode(t, w)["abuse_flaggers"])

		w = do(t, r, http.MethodPut, "/api/v2/threads/"+threadID+"/abuse_unflag", gin.H{"user_id": "2"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{}, decode(t, w)["abuse_flaggers"])
	})

	t.Run("pin and unpin", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v2/threads/"+threadID+"/pin", gin.H{"user_id": "1"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["pinned"])

		w = do(t, r, http.MethodPut, "/api/v2/threads/"+threadID+"/unpin", gin.H{"user_id": "1"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decode(t, w)["pinned"])
	})

	t.Run("responses", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/threads/"+threadID+"/comments", gin.H{
			"body": "a response", "course_id": testCourse, "user_id": "2",
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "comment", body["type"])
		assert.EqualValues(t, 0, body["depth"])
		assert.Equal(t, threadID, body["thread_id"])
		assert.Nil(t, body["parent_id"])

		w = do(t, r, http.MethodGet, "/api/v2/threads/"+threadID+"?with_responses=true", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body = decode(t, w)
		assert.EqualValues(t, 1, body["resp_total"])
		assert.Len(t, body["children"], 1)
	})

	t.Run("delete", func(t *testing.T) {
		w := do(t, r, http.MethodDelete, "/api/v2/threads/"+threadID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, r, http.MethodGet, "/api/v2/threads/"+threadID, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCommentEndpoints(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "1", "alice")
	registerUser(t, r, "2", "bob")
	threadID := createThread(t, r, "1", "thread")
	rootID := createComment(t, r, threadID, "2", "response")

	var replyID string
	t.Run("replies", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/comments/"+rootID, gin.H{
			"body": "a reply", "course_id": testCourse, "user_id": "1",
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		replyID = body["id"].(string)
		assert.EqualValues(t, 1, body["depth"])
		assert.Equal(t, rootID, body["parent_id"])
		assert.Equal(t, threadID, body["thread_id"])
	})

	t.Run("replying to a reply", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/comments/"+replyID, gin.H{
			"body": "too deep", "course_id": testCourse, "user_id": "1",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/comments/"+rootID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 1, body["child_count"])
		assert.Nil(t, body["endorsement"])
	})

	t.Run("endorse", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v2/comments/"+rootID, gin.H{
			"endorsed": true, "endorsement_user_id": "1",
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["endorsed"])
		endorsement := body["endorsement"].(map[string]any)
		assert.Equal(t, "1", endorsement["user_id"])
	})

	t.Run("edit with history", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v2/comments/"+rootID, gin.H{
			"body": "edited", "editing_user_id": "1", "edit_reason_code": "grammar-spelling",
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "edited", body["body"])
		assert.Len(t, body["edit_history"], 1)
	})

	t.Run("delete", func(t *testing.T) {
		w := do(t, r, http.MethodDelete, "/api/v2/comments/"+rootID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, r, http.MethodGet, "/api/v2/comments/"+rootID, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		w = do(t, r, http.MethodGet, "/api/v2/comments/"+replyID, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSubscriptionEndpoints(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "1", "alice")
	registerUser(t, r, "2", "bob")
	threadID := createThread(t, r, "1", "thread")

	t.Run("subscribe", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/users/2/subscriptions", gin.H{
			"source_id": threadID, "source_type": "thread",
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "2", body["subscriber_id"])
		assert.Equal(t, threadID, body["source_id"])
		assert.Equal(t, "thread", body["source_type"])
	})

	t.Run("only threads can be followed", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/users/2/subscriptions", gin.H{
			"source_id": threadID, "source_type": "user",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("subscriber listing", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/threads/"+threadID+"/subscriptions", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 1, body["subscriptions_count"])
		assert.Len(t, body["collection"], 1)
	})

	t.Run("subscribed threads", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/users/2/subscribed_threads?course_id="+courseQuery, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["collection"], 1)

		w = do(t, r, http.MethodGet, "/api/v2/users/2/subscribed_threads", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unsubscribe", func(t *testing.T) {
		w := do(t, r, http.MethodDelete, "/api/v2/users/2/subscriptions?source_id="+threadID+"&source_type=thread", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, r, http.MethodGet, "/api/v2/users/2/subscribed_threads?course_id="+courseQuery, nil)
		assert.Len(t, decode(t, w)["collection"], 0)
	})
}

func TestUserContentEndpoints(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "1", "alice")
	registerUser(t, r, "2", "bob")
	threadID := createThread(t, r, "1", "thread")

	t.Run("mark read", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/users/2/read", gin.H{
			"source_type": "thread", "source_id": threadID,
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "bob", decode(t, w)["username"])
	})

	t.Run("active threads", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v2/users/1/active_threads?course_id="+courseQuery, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["collection"], 1)
	})

	t.Run("replace username", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/users/1/replace_username", gin.H{"new_username": "neo"})
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, r, http.MethodGet, "/api/v2/users/1", nil)
		assert.Equal(t, "neo", decode(t, w)["username"])

		w = do(t, r, http.MethodGet, "/api/v2/threads/"+threadID, nil)
		assert.Equal(t, "neo", decode(t, w)["username"])
	})

	t.Run("retire", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v2/users/2/retire", gin.H{"retired_username": "retired_user_7b2c"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())

		w = do(t, r, http.MethodGet, "/api/v2/users/2", nil)
		assert.Equal(t, "retired_user_7b2c", decode(t, w)["username"])
	})
}

func TestStatsEndpoints(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "1", "alice")
	registerUser(t, r, "2", "bob")
	threadID := createThread(t, r, "1", "thread")
	createComment(t, r, threadID, "2", "response")

	statsPath := fmt.Sprintf("/api/v2/users/%s/stats", testCourse)

	t.Run("listing", func(t *testing.T) {
		w := do(t, r, http.MethodGet, statsPath, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 2, body["count"])
		stats := body["user_stats"].([]any)
		require.Len(t, stats, 2)

		first := stats[0].(map[string]any)
		assert.Equal(t, "alice", first["username"])
		assert.EqualValues(t, 1, first["threads"])
		assert.NotContains(t, first, "last_activity_at")
	})

	t.Run("timestamps on request", func(t *testing.T) {
		w := do(t, r, http.MethodGet, statsPath+"?with_timestamps=true", nil)
		require.Equal(t, http.StatusOK, w.Code)
		stats := decode(t, w)["user_stats"].([]any)
		require.NotEmpty(t, stats)
		assert.Contains(t, stats[0].(map[string]any), "last_activity_at")
	})

	t.Run("invalid sort key", func(t *testing.T) {
		w := do(t, r, http.MethodGet, statsPath+"?sort_key=karma", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown params are rejected", func(t *testing.T) {
		w := do(t, r, http.MethodGet, statsPath+"?course_id=x", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rebuild", func(t *testing.T) {
		w := do(t, r, http.MethodPost, fmt.Sprintf("/api/v2/users/%s/update_stats", testCourse), nil)
		require.Equal(t, http.StatusOK, w.Code)
		var ids []string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
		assert.Equal(t, []string{"1", "2"}, ids)
	})
}
