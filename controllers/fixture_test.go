package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"mindcare-chatbot-backend/catalog"
	"mindcare-chatbot-backend/database"
	"mindcare-chatbot-backend/services"
	"mindcare-chatbot-backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// cannedCompleter returns the same answer for every prompt.
type cannedCompleter struct {
	answer string
}

func (c cannedCompleter) Complete(context.Context, string, services.CompletionOptions) (string, error) {
	return c.answer, nil
}

func newTestChatbot(t *testing.T) *services.ChatbotService {
	t.Helper()
	idx, err := catalog.NewIndex([]catalog.Disease{
		{
			Name:      "Insomnia",
			Medicines: []string{"Melatonin"},
			Doctors: []catalog.Doctor{
				{Name: "Dr. Anjali", Specialization: "Sleep Medicine", Hospital: "Ajara Hospital"},
			},
		},
		{Name: "Anxiety", Medicines: []string{"Buspirone"}},
	})
	require.NoError(t, err)

	logs, err := database.NewFileLogStore(t.TempDir())
	require.NoError(t, err)

	completer := cannedCompleter{answer: "- Keep a regular sleep schedule\n- Avoid caffeine late in the day"}
	dialogue := services.NewDialogue(idx, utils.NewIntentClassifier(), services.NewPredictor(idx, completer))
	return services.NewChatbotService(
		dialogue,
		services.NewCompanionService(completer),
		database.NewMemorySessionStore(time.Hour),
		logs,
		nil,
		nil,
	)
}

func performJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
