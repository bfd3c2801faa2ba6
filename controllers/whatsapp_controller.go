package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"mindcare-chatbot-backend/logger"
	"mindcare-chatbot-backend/models"
	"mindcare-chatbot-backend/services"
)

const (
	whatsAppSessionPrefix = "whatsapp_"
	whatsAppTurnTimeout   = 60 * time.Second

	unsupportedMessageText = "Sorry, I can only read text messages and button replies."
	turnFailedText         = "Sorry, something went wrong. Please try again."
)

var greetingWords = map[string]bool{"hi": true, "hello": true, "hey": true, "menu": true}

type WhatsAppController struct {
	whatsappService *services.WhatsAppService
	chatbotService  *services.ChatbotService
	inflight        sync.WaitGroup
}

func NewWhatsAppController(whatsappService *services.WhatsAppService, chatbotService *services.ChatbotService) *WhatsAppController {
	return &WhatsAppController{
		whatsappService: whatsappService,
		chatbotService:  chatbotService,
	}
}

// VerifyWebhook handles the webhook verification request from WhatsApp
func (wc *WhatsAppController) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == wc.whatsappService.GetVerifyToken() {
		logger.Log.Info("WhatsApp webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}

	logger.WithField("mode", mode).Warn("WhatsApp webhook verification failed")
	c.JSON(http.StatusForbidden, gin.H{"error": "Verification failed"})
}

// HandleWebhook acknowledges immediately and processes messages in the
// background.
func (wc *WhatsAppController) HandleWebhook(c *gin.Context) {
	var webhookData models.WhatsAppWebhookData
	if err := c.ShouldBindJSON(&webhookData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook data"})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())

	wc.inflight.Add(1)
	go func() {
		defer wc.inflight.Done()
		wc.processWebhookData(ctx, webhookData)
	}()

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// Wait blocks until every background webhook has been handled.
func (wc *WhatsAppController) Wait() {
	wc.inflight.Wait()
}

func (wc *WhatsAppController) processWebhookData(ctx context.Context, webhookData models.WhatsAppWebhookData) {
	for _, entry := range webhookData.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, message := range change.Value.Messages {
				wc.handleIncomingMessage(ctx, message)
			}
			for _, status := range change.Value.Statuses {
				wc.handleStatusUpdate(status)
			}
		}
	}
}

func (wc *WhatsAppController) handleIncomingMessage(ctx context.Context, message models.WhatsAppMessage) {
	ctx, cancel := context.WithTimeout(ctx, whatsAppTurnTimeout)
	defer cancel()

	wc.whatsappService.RecordInbound()
	if err := wc.whatsappService.MarkMessageAsRead(ctx, message.ID); err != nil {
		logger.WithError(err).WithField("message_id", message.ID).Debug("Failed to mark message as read")
	}

	userID := message.From
	text, ok := message.Utterance()
	if !ok || strings.TrimSpace(text) == "" {
		wc.send(userID, func() error {
			return wc.whatsappService.SendTextMessage(ctx, userID, unsupportedMessageText)
		})
		return
	}

	sessionID := whatsAppSessionPrefix + userID
	if greetingWords[strings.ToLower(strings.TrimSpace(text))] {
		// a greeting is an utterance too, so it closes any open slot
		if err := wc.chatbotService.ResetSlot(ctx, sessionID); err != nil {
			logger.WithError(err).WithField("from", userID).Warn("Failed to reset pending slot")
		}
		wc.send(userID, func() error { return wc.sendMainMenu(ctx, userID) })
		return
	}

	response, err := wc.chatbotService.ProcessMessage(ctx, models.ChatRequest{
		SessionID: sessionID,
		Message:   text,
		UserID:    userID,
		Channel:   models.ChannelWhatsApp,
	})
	if err != nil {
		logger.WithError(err).WithField("from", userID).Error("WhatsApp turn failed")
		wc.send(userID, func() error {
			return wc.whatsappService.SendTextMessage(ctx, userID, turnFailedText)
		})
		return
	}

	wc.send(userID, func() error { return wc.sendResponse(ctx, userID, response) })
}

func (wc *WhatsAppController) send(to string, fn func() error) {
	if err := fn(); err != nil {
		logger.WithError(err).WithField("to", to).Error("Failed to send WhatsApp message")
	}
}

// sendMainMenu greets the user and offers the catalog as a pick list. A
// picked row sends the disease name back, which the dialogue resolves
// without the completer.
func (wc *WhatsAppController) sendMainMenu(ctx context.Context, to string) error {
	companion := wc.chatbotService.Companion()
	names := wc.chatbotService.Catalog().Names()

	actions := make([]models.Action, 0, len(names))
	for _, name := range names {
		actions = append(actions, models.Action{Type: "list_reply", ID: name, Label: name})
	}

	body := fmt.Sprintf("%s! I'm MindCare. Describe how you feel, ask for medicine or a doctor for a condition, or pick one below.",
		companion.Greeting(time.Now()))
	return wc.whatsappService.SendList(ctx, to, "Conditions", body, "Browse", actions)
}

func (wc *WhatsAppController) sendResponse(ctx context.Context, to string, response *models.ChatResponse) error {
	if !response.NeedsInteractiveFormat() || len(response.Actions) == 0 {
		return wc.whatsappService.SendTextMessage(ctx, to, response.Response)
	}
	if len(response.Actions) <= 3 {
		return wc.whatsappService.SendButtons(ctx, to, response.Response, response.Actions)
	}
	return wc.whatsappService.SendList(ctx, to, "Options", response.Response, "Choose", response.Actions)
}

func (wc *WhatsAppController) handleStatusUpdate(status models.WhatsAppStatus) {
	entry := logger.WithFields(map[string]interface{}{
		"message_id": status.ID,
		"recipient":  status.RecipientID,
		"status":     status.Status,
	})
	if len(status.Errors) == 0 {
		entry.Debug("WhatsApp delivery status")
		return
	}
	for _, e := range status.Errors {
		entry.WithField("code", e.Code).Warn("WhatsApp delivery error: " + e.Message)
	}
}

// SendMessage lets an operator push a plain text message.
func (wc *WhatsAppController) SendMessage(c *gin.Context) {
	var req struct {
		To      string `json:"to" binding:"required"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, "to", err)
		return
	}

	to := wc.whatsappService.CleanPhoneNumber(req.To)
	if err := wc.whatsappService.SendTextMessage(c.Request.Context(), to, req.Message); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to send message",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "sent",
		"to":     to,
	})
}

func (wc *WhatsAppController) GetStatus(c *gin.Context) {
	status := wc.whatsappService.GetStatus(wc.chatbotService.ActiveSessions(c.Request.Context()))
	c.JSON(http.StatusOK, status)
}
