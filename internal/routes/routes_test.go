package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taptap-tz/taptap-bot/internal/config"
	"github.com/taptap-tz/taptap-bot/internal/handlers"
	"github.com/taptap-tz/taptap-bot/internal/services"
	"github.com/taptap-tz/taptap-bot/internal/storage"
)

func newRoutedApp(cfg *config.Config) (*fiber.App, *services.Metrics) {
	metrics := services.NewMetrics()
	api := services.NewTaptapAPI("http://127.0.0.1:1/api/bot", "", time.Second)
	conversations := services.NewConversationManager(storage.NewMemoryStore(),
		services.NewOrderingFlow(api, metrics), services.NewRecordingSender(), metrics)

	app := fiber.New()
	SetupRoutes(app, cfg,
		handlers.NewWhatsAppHandler(conversations),
		handlers.NewHealthHandler("1.0.0", "In-Memory", conversations, nil),
		metrics,
	)
	return app, metrics
}

func do(t *testing.T, app *fiber.App, method, target, contentType, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestDevelopmentRoutes(t *testing.T) {
	app, _ := newRoutedApp(&config.Config{Environment: "development"})

	status, _ := do(t, app, http.MethodPost, "/webhook/whatsapp", fiber.MIMEApplicationForm, "From=whatsapp%3A%2B255712345678&Body=hi")
	assert.Equal(t, http.StatusOK, status)

	status, body := do(t, app, http.MethodPost, "/test/whatsapp", fiber.MIMEApplicationJSON, `{"from":"whatsapp:+255712345678","message":"hi"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"success":true`)
}

func TestProductionRequiresSignature(t *testing.T) {
	app, _ := newRoutedApp(&config.Config{Environment: "production", TwilioAuthToken: "token"})

	status, _ := do(t, app, http.MethodPost, "/webhook/whatsapp", fiber.MIMEApplicationForm, "From=whatsapp%3A%2B255712345678&Body=hi")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, app, http.MethodPost, "/test/whatsapp", fiber.MIMEApplicationJSON, `{"from":"x","message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestValidationCanBeDisabled(t *testing.T) {
	app, _ := newRoutedApp(&config.Config{Environment: "production", DisableWebhookValidation: true})

	status, _ := do(t, app, http.MethodPost, "/webhook/whatsapp", fiber.MIMEApplicationForm, "From=whatsapp%3A%2B255712345678&Body=hi")
	assert.Equal(t, http.StatusOK, status)
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newRoutedApp(&config.Config{Environment: "development"})
	do(t, app, http.MethodPost, "/test/whatsapp", fiber.MIMEApplicationJSON, `{"from":"whatsapp:+255712345678","message":"hi"}`)

	status, body := do(t, app, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "taptap_sessions_created_total 1")
}

func TestRootAndHealth(t *testing.T) {
	app, _ := newRoutedApp(&config.Config{Environment: "development"})

	status, body := do(t, app, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "/webhook/whatsapp")

	status, body = do(t, app, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"OK"`)
}
