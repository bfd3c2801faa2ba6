package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mindcare-chatbot-backend/apperrors"
	"mindcare-chatbot-backend/logger"
	"mindcare-chatbot-backend/metrics"
	"mindcare-chatbot-backend/models"
	"mindcare-chatbot-backend/services"
)

// wsMessage is one client frame. Mode "companion" routes to the supportive
// chat; anything else is a dialogue turn.
type wsMessage struct {
	Message string `json:"message"`
	Mode    string `json:"mode,omitempty"`
	Mood    string `json:"mood,omitempty"`
}

type WebSocketController struct {
	chatbotService *services.ChatbotService
	metrics        *metrics.Metrics
	upgrader       websocket.Upgrader
}

func NewWebSocketController(chatbotService *services.ChatbotService, m *metrics.Metrics, allowedOrigins []string) *WebSocketController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketController{
		chatbotService: chatbotService,
		metrics:        m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (wc *WebSocketController) HandleWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		respondError(c, apperrors.Validation("session_id", "session_id is required"))
		return
	}
	if _, err := wc.chatbotService.Session(c.Request.Context(), sessionID); err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			err = apperrors.Unauthorized("unknown or expired session")
		}
		respondError(c, err)
		return
	}

	conn, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wc.metrics.WebsocketOpened()
	defer wc.metrics.WebsocketClosed()

	ctx := c.Request.Context()
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).WithField("session_id", sessionID).Warn("WebSocket read failed")
			}
			return
		}

		var response *models.ChatResponse
		if msg.Mode == "companion" {
			response, err = wc.chatbotService.Converse(ctx, models.CompanionRequest{
				SessionID: sessionID,
				Message:   msg.Message,
				Mood:      msg.Mood,
			})
		} else {
			response, err = wc.chatbotService.ProcessMessage(ctx, models.ChatRequest{
				SessionID: sessionID,
				Message:   msg.Message,
				Channel:   models.ChannelWeb,
			})
		}

		if err != nil {
			if writeErr := conn.WriteJSON(apperrors.Body(err)); writeErr != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(response); err != nil {
			return
		}
	}
}
