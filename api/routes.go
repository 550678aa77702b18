package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailhookhq/mailhook/api/handlers"
	"github.com/mailhookhq/mailhook/api/middleware"
	"github.com/mailhookhq/mailhook/internal/repository"
	"github.com/mailhookhq/mailhook/internal/tracing"
	"github.com/mailhookhq/mailhook/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	// setup handlers
	apiHandlers := handlers.InitHandlers(s, repos)

	// Health check and status endpoints (no auth needed)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(s))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILHOOK-API-KEY",
		ValidAPIKey: apikey,
	})

	// API group with version and custom context
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.UserIDMiddleware())
	api.Use(middleware.CustomContextMiddleware("mailhook"))
	api.Use(middleware.TracingMiddleware())
	{
		// On-demand fetch endpoints
		api.GET("/fetch-new-mail/:accountId", apiHandlers.Mail.FetchNewMail())
		api.GET("/fetch-new-mail", apiHandlers.Mail.FetchNewMailAll())

		// Account endpoints
		accounts := api.Group("/accounts")
		{
			accounts.POST("", apiHandlers.Accounts.Create())
			accounts.GET("", apiHandlers.Accounts.List())
			accounts.DELETE("/:id", apiHandlers.Accounts.Delete())
			accounts.POST("/:id/reconnect", apiHandlers.Accounts.Reconnect())
			accounts.GET("/:id/messages", apiHandlers.Messages.List())
		}

		// Message endpoints
		messages := api.Group("/messages")
		{
			messages.POST("/:id/read", apiHandlers.Messages.MarkRead())
			messages.POST("/:id/star", apiHandlers.Messages.MarkStarred())
			messages.DELETE("/:id", apiHandlers.Messages.Delete())
		}

		// WhatsApp session endpoints
		sessions := api.Group("/whatsapp/sessions")
		{
			sessions.POST("", apiHandlers.WhatsApp.StartSession())
			sessions.GET("/status", apiHandlers.WhatsApp.SessionStatus())
			sessions.POST("/send", apiHandlers.WhatsApp.SendText())
			sessions.DELETE("", apiHandlers.WhatsApp.StopSession())
		}
	}
}
