package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/common"
	"github.com/suPer8Hu/ragview/internal/httpapi/handlers"
	"github.com/suPer8Hu/ragview/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log.Logger))
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/state", h.State)

	// conversations
	r.GET("/conversations", h.ListConversations)
	r.POST("/conversations/new", h.NewConversation)
	r.GET("/conversations/:id", h.LoadConversation)
	r.DELETE("/conversations", h.ClearConversations)

	r.POST("/chat/messages", h.SendChatMessage)
	r.POST("/feedback", h.Feedback)

	// ingestion
	r.POST("/ingest/url", h.IngestURL)
	r.POST("/ingest/file", h.IngestFile)
	r.POST("/ingest/url/async", h.IngestURLAsync)
	r.GET("/ingest/jobs/:job_id", h.GetIngestJob)
	return r
}
