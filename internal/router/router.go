package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edly-io/forum-sub001/internal/config"
	"github.com/edly-io/forum-sub001/internal/handlers"
	"github.com/edly-io/forum-sub001/internal/middleware"
	"github.com/edly-io/forum-sub001/internal/services"
)

// RegisterRoutes wires the v2 API onto the engine.
func RegisterRoutes(r *gin.Engine, svc *services.Services, api config.APIConfig) {
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())

	// Handlers
	userHandler := handlers.NewUserHandler(svc, api)
	threadHandler := handlers.NewThreadHandler(svc, api)
	commentHandler := handlers.NewCommentHandler(svc)
	voteHandler := handlers.NewVoteHandler(svc)
	flagHandler := handlers.NewFlagHandler(svc)
	subscriptionHandler := handlers.NewSubscriptionHandler(svc, api)

	r.GET("/heartbeat", handlers.Heartbeat)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v2 := r.Group("/api/v2")
	{
		// Users
		v2.POST("/users", userHandler.Create)
		v2.GET("/users/:user_id", userHandler.Get)
		v2.PUT("/users/:user_id", userHandler.Update)
		v2.POST("/users/:user_id/read", userHandler.MarkRead)
		v2.GET("/users/:user_id/active_threads", userHandler.ActiveThreads)
		v2.GET("/users/:user_id/subscribed_threads", userHandler.SubscribedThreads)
		v2.POST("/users/:user_id/subscriptions", subscriptionHandler.Subscribe)
		v2.DELETE("/users/:user_id/subscriptions", subscriptionHandler.Unsubscribe)
		v2.POST("/users/:user_id/retire", userHandler.Retire)
		v2.POST("/users/:user_id/replace_username", userHandler.ReplaceUsername)

		// Course stats ride the user slot of the path.
		v2.GET("/users/:user_id/stats", userHandler.Stats)
		v2.POST("/users/:user_id/update_stats", userHandler.UpdateStats)

		// Threads
		v2.GET("/threads", threadHandler.List)
		v2.POST("/threads", threadHandler.Create)
		v2.GET("/threads/:thread_id", threadHandler.Get)
		v2.PUT("/threads/:thread_id", threadHandler.Update)
		v2.DELETE("/threads/:thread_id", threadHandler.Delete)
		v2.PUT("/threads/:thread_id/votes", voteHandler.UpdateThreadVotes)
		v2.DELETE("/threads/:thread_id/votes", voteHandler.DeleteThreadVote)
		v2.PUT("/threads/:thread_id/abuse_flag", flagHandler.FlagThread)
		v2.PUT("/threads/:thread_id/abuse_unflag", flagHandler.UnflagThread)
		v2.PUT("/threads/:thread_id/pin", threadHandler.Pin)
		v2.PUT("/threads/:thread_id/unpin", threadHandler.Unpin)
		v2.GET("/threads/:thread_id/subscriptions", subscriptionHandler.ListSubscribers)
		v2.POST("/threads/:thread_id/comments", commentHandler.CreateRoot)

		// Comments
		v2.POST("/comments/:comment_id", commentHandler.CreateChild)
		v2.GET("/comments/:comment_id", commentHandler.Get)
		v2.PUT("/comments/:comment_id", commentHandler.Update)
		v2.DELETE("/comments/:comment_id", commentHandler.Delete)
		v2.PUT("/comments/:comment_id/votes", voteHandler.UpdateCommentVotes)
		v2.DELETE("/comments/:comment_id/votes", voteHandler.DeleteCommentVote)
		v2.PUT("/comments/:comment_id/abuse_flag", flagHandler.FlagComment)
		v2.PUT("/comments/:comment_id/abuse_unflag", flagHandler.UnflagComment)
	}
}
