package main

import (
	"negotiation-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, uploadDir string) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Negotiation lifecycle. Public to match the client poller, which talks
	// to these without an account.
	r.POST("/start", h.Start)
	r.GET("/status/:id", h.Status)

	// Provider result webhook (public).
	// NOTE: should be protected by provider signature validation in production.
	r.POST("/log", h.LogWebhook)

	// Screenshot attachments for support reference.
	r.Static("/uploads", uploadDir)

	// accounts
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.GET("/verify-token", authMW, h.VerifyToken)

	// protected
	protected := r.Group("/")
	protected.Use(authMW)
	{
		protected.GET("/stats", h.Stats)
	}
}
