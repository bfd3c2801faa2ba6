package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-chatbot-backend/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func echoRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(body))
	})
	return router
}

func post(router http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestVerifyWhatsAppSignature(t *testing.T) {
	const secret = "app-secret"
	payload := `{"object":"whatsapp_business_account"}`
	router := echoRouter(VerifyWhatsAppSignature(secret))

	tests := []struct {
		name      string
		signature string
		status    int
	}{
		{name: "valid", signature: "sha256=" + calculateHMAC([]byte(payload), secret), status: http.StatusOK},
		{name: "wrong secret", signature: "sha256=" + calculateHMAC([]byte(payload), "other"), status: http.StatusUnauthorized},
		{name: "missing", signature: "", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.signature != "" {
				headers[signatureHeader] = tt.signature
			}
			w := post(router, payload, headers)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, payload, w.Body.String())
			}
		})
	}
}

func TestVerifyWhatsAppSignature_DisabledWithoutSecret(t *testing.T) {
	w := post(echoRouter(VerifyWhatsAppSignature("")), "{}", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestLogger_CountsByRoute(t *testing.T) {
	m := metrics.New()
	router := echoRouter(RequestLogger(m))

	post(router, "hi", nil)
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := w.Body.String()
	assert.Contains(t, out, `mindcare_http_requests_total{method="POST",route="/echo",status="200"} 1`)
	assert.Contains(t, out, `mindcare_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}

func TestLimitBodySize(t *testing.T) {
	router := echoRouter(LimitBodySize(4))

	assert.Equal(t, http.StatusOK, post(router, "abcd", nil).Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(router, "abcdef", nil).Code)
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"http://localhost:3000"}))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
