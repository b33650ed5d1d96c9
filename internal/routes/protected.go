package routes

import (
	"github.com/gin-gonic/gin"

	"pongarena/internal/auth"
	"pongarena/internal/handlers"
)

func ProtectedRoutes(r *gin.Engine, handler *handlers.Handler, authn auth.Authenticator) {
	protected := r.Group("/").Use(authn.Middleware())

	protected.GET("/me", handler.Me)

	// Game socket
	protected.GET("/ws", handler.WsHandler)
}
