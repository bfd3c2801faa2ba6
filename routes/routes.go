package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mindcare-chatbot-backend/config"
	"mindcare-chatbot-backend/controllers"
	"mindcare-chatbot-backend/metrics"
	"mindcare-chatbot-backend/middleware"
	"mindcare-chatbot-backend/services"
)

const maxBodyBytes = 1 << 20

// Dependencies is everything the HTTP surface needs.
type Dependencies struct {
	Config   *config.Config
	Chatbot  *services.ChatbotService
	Auth     *services.AuthService
	WhatsApp *services.WhatsAppService
	Metrics  *metrics.Metrics

	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Handles exposes controllers whose lifetime main manages.
type Handles struct {
	WhatsApp *controllers.WhatsAppController
}

func SetupRoutes(router *gin.Engine, deps Dependencies) Handles {
	router.Use(
		middleware.RequestLogger(deps.Metrics),
		middleware.LimitBodySize(maxBodyBytes),
		middleware.CORS(deps.Config.Security.AllowedOrigins),
	)

	chatbotController := controllers.NewChatbotController(deps.Chatbot)
	catalogController := controllers.NewCatalogController(deps.Chatbot)
	conversationController := controllers.NewConversationController(deps.Chatbot)
	authController := controllers.NewAuthController(deps.Auth)
	wsController := controllers.NewWebSocketController(deps.Chatbot, deps.Metrics, deps.Config.Security.AllowedOrigins)
	whatsappController := controllers.NewWhatsAppController(deps.WhatsApp, deps.Chatbot)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"catalog":   deps.Chatbot.Catalog().Len(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/logout", authController.Logout)

		vault := api.Group("/vault")
		vault.POST("/register", authController.VaultRegister)
		vault.POST("/login", authController.VaultLogin)

		api.POST("/chat", chatbotController.HandleChat)
		api.GET("/ws", wsController.HandleWebSocket)

		api.POST("/companion", chatbotController.HandleCompanion)
		api.GET("/companion/greeting", chatbotController.GetGreeting)

		api.GET("/intents", chatbotController.GetSupportedIntents)
		api.GET("/catalog", catalogController.ListDiseases)
		api.GET("/catalog/lookup", catalogController.Lookup)

		api.GET("/sessions/:id/history", chatbotController.GetChatHistory)

		api.GET("/conversations", conversationController.ListConversations)
		api.GET("/conversations/:id", conversationController.GetConversation)
		api.POST("/conversations/:id/restore", conversationController.RestoreConversation)
		api.GET("/conversations/:id/export", conversationController.ExportConversation)
	}

	whatsapp := router.Group("/api/whatsapp")
	{
		// WhatsApp calls these directly
		whatsapp.GET("/webhook", whatsappController.VerifyWebhook)
		whatsapp.POST("/webhook", middleware.VerifyWhatsAppSignature(deps.Config.WhatsApp.AppSecret), whatsappController.HandleWebhook)

		whatsapp.POST("/admin/send", whatsappController.SendMessage)
		whatsapp.GET("/admin/status", whatsappController.GetStatus)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Route not found",
			"path":  c.Request.URL.Path,
		})
	})

	return Handles{WhatsApp: whatsappController}
}
