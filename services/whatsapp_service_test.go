package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-chatbot-backend/config"
	"mindcare-chatbot-backend/models"
)

type graphStub struct {
	mu       sync.Mutex
	payloads []models.WhatsAppSendMessage
	status   int
	body     string
}

func newGraphStub(t *testing.T) (*graphStub, *httptest.Server) {
	t.Helper()
	stub := &graphStub{status: http.StatusOK, body: `{"messages":[{"id":"wamid.1"}]}`}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		var msg models.WhatsAppSendMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		stub.mu.Lock()
		stub.payloads = append(stub.payloads, msg)
		stub.mu.Unlock()

		w.WriteHeader(stub.status)
		_, _ = w.Write([]byte(stub.body))
	}))
	t.Cleanup(srv.Close)
	return stub, srv
}

func newTestWhatsApp(url string) *WhatsAppService {
	return NewWhatsAppService(config.WhatsAppConfig{
		APIURL:        url,
		APIVersion:    "v18.0",
		AccessToken:   "token",
		PhoneNumberID: "12345",
		VerifyToken:   "verify",
	})
}

func TestWhatsApp_SendTextMessage(t *testing.T) {
	stub, srv := newGraphStub(t)
	ws := newTestWhatsApp(srv.URL)

	require.NoError(t, ws.SendTextMessage(context.Background(), "+1 (555) 000-1111", "hello"))

	require.Len(t, stub.payloads, 1)
	assert.Equal(t, "15550001111", stub.payloads[0].To)
	assert.Equal(t, "text", stub.payloads[0].Type)
	assert.Equal(t, "hello", stub.payloads[0].Text.Body)
	assert.Equal(t, 1, ws.GetStatus(0).MessageCountToday)
}

func TestWhatsApp_SendButtonsCapsAtThree(t *testing.T) {
	stub, srv := newGraphStub(t)
	ws := newTestWhatsApp(srv.URL)

	actions := []models.Action{
		{ID: "medicine", Label: "Medicine"},
		{ID: "doctor", Label: "Doctor"},
		{ID: "both", Label: "Both"},
		{ID: "extra", Label: "Extra"},
	}
	require.NoError(t, ws.SendButtons(context.Background(), "15550001111", strings.Repeat("x", 2000), actions))

	require.Len(t, stub.payloads, 1)
	interactive := stub.payloads[0].Interactive
	require.NotNil(t, interactive)
	assert.Equal(t, "button", interactive.Type)
	require.Len(t, interactive.Action.Buttons, 3)
	assert.Equal(t, "medicine", interactive.Action.Buttons[0].Reply.ID)
	assert.Len(t, []rune(interactive.Body.Text), whatsAppInteractiveLimit)
}

func TestWhatsApp_SendList(t *testing.T) {
	stub, srv := newGraphStub(t)
	ws := newTestWhatsApp(srv.URL)

	var actions []models.Action
	for i := 0; i < 12; i++ {
		actions = append(actions, models.Action{ID: "row", Label: "A very long condition name indeed"})
	}
	require.NoError(t, ws.SendList(context.Background(), "1555", "Conditions", "Pick one", "Browse", actions))

	interactive := stub.payloads[0].Interactive
	require.Len(t, interactive.Action.Sections, 1)
	rows := interactive.Action.Sections[0].Rows
	assert.Len(t, rows, whatsAppListRowLimit)
	assert.Len(t, []rune(rows[0].Title), whatsAppRowTitleLimit)
}

func TestWhatsApp_APIError(t *testing.T) {
	stub, srv := newGraphStub(t)
	stub.status = http.StatusBadRequest
	stub.body = `{"error":{"code":131030,"title":"Recipient not allowed","message":"Recipient phone number not in allowed list"}}`
	ws := newTestWhatsApp(srv.URL)

	err := ws.SendTextMessage(context.Background(), "1555", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "131030")
	assert.Equal(t, 0, ws.GetStatus(0).MessageCountToday)
}

func TestWhatsApp_Status(t *testing.T) {
	ws := newTestWhatsApp("http://unused")
	ws.RecordInbound()

	status := ws.GetStatus(4)

	assert.True(t, status.Enabled)
	assert.Equal(t, 4, status.ActiveSessions)
	assert.False(t, status.LastMessageReceived.IsZero())
	assert.Equal(t, "verify", ws.GetVerifyToken())
}
