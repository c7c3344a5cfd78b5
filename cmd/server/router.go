package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thereayou/teamchat/internal/handlers"
	"github.com/thereayou/teamchat/internal/metrics"
	"github.com/thereayou/teamchat/internal/middleware"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Messages *handlers.HTTPMessageHandler
	Channels *handlers.ChannelHandler
	Users    *handlers.UserHandler
	DMs      *handlers.DirectMessageHandler
	WS       *handlers.WebSocketHandler
}

func APIEndpoints(r *gin.Engine, h Handlers, verifier middleware.Verifier, wsVerifier middleware.Verifier, m *metrics.Metrics) {
	// Auth endpoints
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", h.Auth.Logout)
	}

	// Realtime: токен проверяется до upgrade
	r.GET("/ws", middleware.WSAuthMiddleware(wsVerifier, m), h.WS.HandleWebSocket)

	// API endpoints
	api := r.Group("/api/v1", middleware.AuthMiddleware(verifier))
	{
		api.GET("/me", h.Users.GetMe)
		api.GET("/users/:id", h.Users.GetUser)

		api.GET("/channels", h.Channels.GetMyChannels)
		api.GET("/channels/:id", h.Channels.GetChannel)
		api.GET("/channels/:id/messages", h.Messages.GetChannelMessages)

		api.GET("/messages/:id/thread", h.Messages.GetThread)

		api.GET("/direct-messages", h.DMs.GetDirectMessages)
	}
}

func MetricsHandler(reg *prometheus.Registry) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
}
