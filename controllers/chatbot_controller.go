package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mindcare-chatbot-backend/models"
	"mindcare-chatbot-backend/services"
)

type ChatbotController struct {
	chatbotService *services.ChatbotService
}

func NewChatbotController(chatbotService *services.ChatbotService) *ChatbotController {
	return &ChatbotController{
		chatbotService: chatbotService,
	}
}

// HandleChat processes chat messages
func (cc *ChatbotController) HandleChat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, "message", err)
		return
	}
	req.Channel = models.ChannelWeb

	response, err := cc.chatbotService.ProcessMessage(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// HandleCompanion runs one turn of the supportive chat mode.
func (cc *ChatbotController) HandleCompanion(c *gin.Context) {
	var req models.CompanionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, "message", err)
		return
	}

	response, err := cc.chatbotService.Converse(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (cc *ChatbotController) GetGreeting(c *gin.Context) {
	companion := cc.chatbotService.Companion()
	c.JSON(http.StatusOK, gin.H{
		"greeting":    companion.Greeting(time.Now()),
		"affirmation": companion.Affirmation(),
	})
}

// GetChatHistory returns the ordered messages of a live session
func (cc *ChatbotController) GetChatHistory(c *gin.Context) {
	history, err := cc.chatbotService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": history,
		"count":   len(history),
	})
}

// GetSupportedIntents returns list of supported intents
func (cc *ChatbotController) GetSupportedIntents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"intents": cc.chatbotService.SupportedIntents(),
	})
}
