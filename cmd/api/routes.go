package main

import (
	"callbridge/internal/calls"
	"callbridge/internal/directory"
	"callbridge/internal/httpapi"
	"callbridge/internal/telephony"
	"callbridge/internal/ws"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Calls     *calls.Service
	Directory *directory.Service
	WS        *ws.Handler
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Live connection endpoint for application clients.
	r.GET("/ws", deps.WS.Serve)

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	webhooks := telephony.WebhookHandler{
		Inbound: deps.Calls,
		Status:  deps.Calls,
	}
	r.POST("/webhooks/twilio/voice", webhooks.HandleInboundCall)
	r.POST("/webhooks/twilio/status", webhooks.HandleStatusCallback)
	r.POST("/webhooks/twilio/answer", webhooks.HandleOutboundAnswer)

	h := httpapi.Handlers{
		Calls:     deps.Calls,
		Directory: deps.Directory,
	}

	r.POST("/register-user", h.RegisterUser)

	callRoutes := r.Group("/calls")
	{
		callRoutes.POST("/start", h.StartCall)
		callRoutes.POST("/connect", h.ConnectCall)
		callRoutes.POST("/hangup", h.Hangup)
	}

	api := r.Group("/api")
	{
		api.GET("/call-logs/:user_id", h.CallLogs)
		api.GET("/call-summary/:user_id", h.CallSummary)
	}
}
