package routes

import (
	"github.com/gin-gonic/gin"

	"pongarena/internal/handlers"
)

func PublicRoutes(r *gin.Engine, handler *handlers.Handler) {
	r.GET("/ping", handler.PingHandler)

	// Operator views
	r.GET("/queues", handler.Queues)
	r.GET("/matches", handler.Matches)
	r.GET("/matches/history", handler.MatchHistory)
}
