package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"mindcare-chatbot-backend/config"
	"mindcare-chatbot-backend/logger"
	"mindcare-chatbot-backend/models"
)

// WhatsApp Cloud API limits.
const (
	whatsAppTextLimit        = 4096
	whatsAppInteractiveLimit = 1024
	whatsAppButtonTitleLimit = 20
	whatsAppRowTitleLimit    = 24
	whatsAppListRowLimit     = 10
)

type WhatsAppService struct {
	apiURL        string
	apiVersion    string
	accessToken   string
	phoneNumberID string
	verifyToken   string
	httpClient    *http.Client

	// Status tracking
	statusMu     sync.RWMutex
	lastSent     time.Time
	lastReceived time.Time
	countDay     string
	dailyCount   int
}

func NewWhatsAppService(cfg config.WhatsAppConfig) *WhatsAppService {
	return &WhatsAppService{
		apiURL:        strings.TrimRight(cfg.APIURL, "/"),
		apiVersion:    cfg.APIVersion,
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		verifyToken:   cfg.VerifyToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetVerifyToken returns the webhook verification token
func (ws *WhatsAppService) GetVerifyToken() string {
	return ws.verifyToken
}

func (ws *WhatsAppService) Enabled() bool {
	return ws.accessToken != "" && ws.phoneNumberID != ""
}

// SendTextMessage sends a simple text message
func (ws *WhatsAppService) SendTextMessage(ctx context.Context, to string, message string) error {
	payload := models.WhatsAppSendMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               ws.CleanPhoneNumber(to),
		Type:             "text",
		Text: &models.WhatsAppText{
			Body: truncate(message, whatsAppTextLimit),
		},
	}

	return ws.sendRequest(ctx, payload)
}

// SendInteractiveMessage sends an interactive message
func (ws *WhatsAppService) SendInteractiveMessage(ctx context.Context, to string, interactive *models.InteractiveMessage) error {
	if interactive.Body != nil {
		interactive.Body.Text = truncate(interactive.Body.Text, whatsAppInteractiveLimit)
	}

	payload := models.WhatsAppSendMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               ws.CleanPhoneNumber(to),
		Type:             "interactive",
		Interactive:      interactive,
	}

	return ws.sendRequest(ctx, payload)
}

// SendButtons sends text with up to three reply buttons.
func (ws *WhatsAppService) SendButtons(ctx context.Context, to, text string, actions []models.Action) error {
	buttons := make([]models.InteractiveButton, 0, 3)
	for i, action := range actions {
		if i == 3 {
			break
		}
		action.Label = truncate(action.Label, whatsAppButtonTitleLimit)
		buttons = append(buttons, action.ToWhatsAppButton())
	}

	return ws.SendInteractiveMessage(ctx, to, &models.InteractiveMessage{
		Type: "button",
		Body: &models.InteractiveBody{Text: text},
		Action: &models.InteractiveAction{
			Buttons: buttons,
		},
	})
}

// SendList sends text with a single-section list of at most ten rows.
func (ws *WhatsAppService) SendList(ctx context.Context, to, header, text, button string, actions []models.Action) error {
	rows := make([]models.ListItem, 0, whatsAppListRowLimit)
	for i, action := range actions {
		if i == whatsAppListRowLimit {
			break
		}
		action.Label = truncate(action.Label, whatsAppRowTitleLimit)
		rows = append(rows, action.ToWhatsAppListItem())
	}

	return ws.SendInteractiveMessage(ctx, to, &models.InteractiveMessage{
		Type: "list",
		Header: &models.MessageHeader{
			Type: "text",
			Text: header,
		},
		Body: &models.InteractiveBody{Text: text},
		Footer: &models.InteractiveFooter{
			Text: "MindCare",
		},
		Action: &models.InteractiveAction{
			Button:   button,
			Sections: []models.Section{{Title: header, Rows: rows}},
		},
	})
}

// MarkMessageAsRead marks a message as read
func (ws *WhatsAppService) MarkMessageAsRead(ctx context.Context, messageID string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}

	return ws.sendRequest(ctx, payload)
}

func (ws *WhatsAppService) sendRequest(ctx context.Context, payload interface{}) error {
	url := fmt.Sprintf("%s/%s/%s/messages", ws.apiURL, ws.apiVersion, ws.phoneNumberID)

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ws.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ws.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).Error("WhatsApp request failed")
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var errorResp struct {
			Error models.WhatsAppError `json:"error"`
		}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			logger.WithFields(map[string]interface{}{
				"status": resp.StatusCode,
				"code":   errorResp.Error.Code,
			}).Error("WhatsApp API error: " + errorResp.Error.Message)
			return fmt.Errorf("WhatsApp API error %d: %s", errorResp.Error.Code, errorResp.Error.Message)
		}
		logger.WithField("status", resp.StatusCode).Error("WhatsApp API error")
		return fmt.Errorf("WhatsApp API error: %s", string(body))
	}

	ws.updateMessageStatus()
	return nil
}

// CleanPhoneNumber strips everything but digits.
func (ws *WhatsAppService) CleanPhoneNumber(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

// RecordInbound notes that a webhook message arrived.
func (ws *WhatsAppService) RecordInbound() {
	ws.statusMu.Lock()
	ws.lastReceived = time.Now()
	ws.statusMu.Unlock()
}

func (ws *WhatsAppService) updateMessageStatus() {
	ws.statusMu.Lock()
	defer ws.statusMu.Unlock()

	now := time.Now()
	ws.lastSent = now

	today := now.Format("2006-01-02")
	if ws.countDay != today {
		ws.countDay = today
		ws.dailyCount = 0
	}
	ws.dailyCount++
}

// GetStatus returns the service status
func (ws *WhatsAppService) GetStatus(activeSessions int) models.WhatsAppServiceStatus {
	ws.statusMu.RLock()
	defer ws.statusMu.RUnlock()

	count := 0
	if ws.countDay == time.Now().Format("2006-01-02") {
		count = ws.dailyCount
	}

	return models.WhatsAppServiceStatus{
		Enabled:             ws.Enabled(),
		LastMessageReceived: ws.lastReceived,
		LastMessageSent:     ws.lastSent,
		MessageCountToday:   count,
		ActiveSessions:      activeSessions,
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
