package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mindcare-chatbot-backend/apperrors"
	"mindcare-chatbot-backend/services"
	"mindcare-chatbot-backend/utils"
)

const defaultConversationLimit = 50

type ConversationController struct {
	chatbotService *services.ChatbotService
}

func NewConversationController(chatbotService *services.ChatbotService) *ConversationController {
	return &ConversationController{chatbotService: chatbotService}
}

// ListConversations returns the caller's saved logs, newest first. The
// caller is identified by the session_id query parameter.
func (cc *ConversationController) ListConversations(c *gin.Context) {
	limit := defaultConversationLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			respondError(c, apperrors.Validation("limit", "limit must be a positive integer"))
			return
		}
		limit = l
	}

	list, err := cc.chatbotService.ListConversations(c.Request.Context(), c.Query("session_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": list,
		"count":         len(list),
	})
}

func (cc *ConversationController) GetConversation(c *gin.Context) {
	log, err := cc.chatbotService.GetConversation(c.Request.Context(), c.Query("session_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, log)
}

// RestoreConversation seeds the caller's session with one of their saved
// logs. The session continues under a new conversation id.
func (cc *ConversationController) RestoreConversation(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, "session_id", err)
		return
	}

	state, err := cc.chatbotService.RestoreConversation(c.Request.Context(), req.SessionID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":      state.SessionID,
		"conversation_id": state.LogID,
		"history":         state.History,
		"awaiting_slot":   state.Awaiting(),
	})
}

// ExportConversation downloads a transcript as text (default) or PDF.
func (cc *ConversationController) ExportConversation(c *gin.Context) {
	log, err := cc.chatbotService.GetConversation(c.Request.Context(), c.Query("session_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	switch format := c.DefaultQuery("format", "txt"); format {
	case "txt":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", log.ID+".txt"))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(utils.TranscriptText(log.Messages)))
	case "pdf":
		pdf, err := utils.TranscriptPDF("Conversation "+log.ID, log.Messages)
		if err != nil {
			respondError(c, apperrors.Internal(err, "failed to render transcript"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", log.ID+".pdf"))
		c.Data(http.StatusOK, "application/pdf", pdf)
	default:
		respondError(c, apperrors.Validation("format", "format must be txt or pdf"))
	}
}
