package handlers

import (
	"educrm/internal/app"
	"educrm/internal/http/middleware"

	"github.com/labstack/echo/v4"
)

// SetupRoutes sets up all API routes
func SetupRoutes(api *echo.Group, services *app.Services) {
	// Auth routes (no authentication required)
	authHandler := NewAuthHandler(services.AuthService)
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	// WebSocket endpoint (handles authentication via query parameter)
	api.GET("/ws", services.Gateway.HandleWebSocket)

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(services.AuthService))

	profileAuth := protected.Group("/auth")
	profileAuth.GET("/me", authHandler.Me)
	profileAuth.PUT("/change-password", authHandler.ChangePassword)

	// Conversations
	conversationHandler := NewConversationHandler(services.ChatService, services.Gateway)
	conversations := protected.Group("/conversations")
	conversations.POST("", conversationHandler.Create)
	conversations.GET("", conversationHandler.List)
	conversations.POST("/lead", conversationHandler.LeadConversation)
	conversations.GET("/office", conversationHandler.ListForManager, middleware.ManagerOrAbove())
	conversations.GET("/all", conversationHandler.ListAll, middleware.SuperAdminOnly())
	conversations.GET("/monitor/:office_id", conversationHandler.Monitor, middleware.ManagerOrAbove())
	conversations.GET("/:id", conversationHandler.GetByID)
	conversations.PUT("/:id", conversationHandler.Update)
	conversations.PUT("/:id/archive", conversationHandler.Archive)
	conversations.POST("/:id/participants", conversationHandler.AddParticipants)
	conversations.DELETE("/:id/participants/:user_id", conversationHandler.RemoveParticipant)
	conversations.GET("/:id/messages", conversationHandler.ListMessages)
	conversations.POST("/:id/messages", conversationHandler.SendMessage)
	conversations.PUT("/:id/read", conversationHandler.MarkRead)
	conversations.GET("/:id/stats", conversationHandler.Stats)
	conversations.GET("/:id/typing", conversationHandler.TypingUsers)

	// Notifications
	notificationHandler := NewNotificationHandler(services.NotificationService)
	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.PUT("/:id/read", notificationHandler.MarkRead)

	// User management
	userHandler := NewUserHandler(services.UserRepo, services.AuthService)
	users := protected.Group("/users")
	users.POST("", userHandler.Create, middleware.ManagerOrAbove())
	users.GET("/office/:office_id", userHandler.ListByOffice, middleware.StaffOnly())
}
