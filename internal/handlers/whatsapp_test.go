package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taptap-tz/taptap-bot/internal/models"
	"github.com/taptap-tz/taptap-bot/internal/services"
	"github.com/taptap-tz/taptap-bot/internal/storage"
)

const customer = "whatsapp:+255712345678"

type testBot struct {
	app   *fiber.App
	store *storage.MemoryStore
	out   *services.RecordingSender
}

// newTestBot wires the handlers to a fake backend that knows restaurant 45
func newTestBot(t *testing.T, ping func() error) *testBot {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/bot/verify-restaurant" && r.URL.Query().Get("restaurant_id") == "45" {
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":45,"name":"Samaki Grill","location":"Masaki"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"not found"}`))
	}))
	t.Cleanup(backend.Close)

	api := services.NewTaptapAPI(backend.URL+"/api/bot", "token", 5*time.Second)
	store := storage.NewMemoryStore()
	out := services.NewRecordingSender()
	conversations := services.NewConversationManager(store, services.NewOrderingFlow(api, nil), out, nil)

	app := fiber.New()
	whatsapp := NewWhatsAppHandler(conversations)
	health := NewHealthHandler("1.0.0", "In-Memory", conversations, ping)
	app.Post("/webhook/whatsapp", whatsapp.HandleWebhook)
	app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)
	app.Get("/health", health.Check)

	return &testBot{app: app, store: store, out: out}
}

func (b *testBot) postForm(t *testing.T, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := b.app.Test(req)
	require.NoError(t, err)
	return resp
}

func (b *testBot) postJSON(t *testing.T, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/test/whatsapp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return resp, decoded
}

func (b *testBot) session(t *testing.T) *models.Session {
	t.Helper()
	session, _, err := b.store.GetOrCreate(context.Background(), customer)
	require.NoError(t, err)
	return session
}

func TestWebhookRunsTurn(t *testing.T) {
	bot := newTestBot(t, nil)

	resp := bot.postForm(t, url.Values{
		"MessageSid": {"SM123"},
		"From":       {customer},
		"Body":       {"START|R=45|T=7"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	last, ok := bot.out.Last()
	require.True(t, ok)
	assert.Equal(t, customer, last.To)
	assert.Contains(t, last.Text, "Karibu SamakiGrill(Meza7)")
	assert.Equal(t, models.StateHome, bot.session(t).State)
}

func TestWebhookPrefersButtonPayload(t *testing.T) {
	bot := newTestBot(t, nil)

	bot.postForm(t, url.Values{"From": {customer}, "Body": {"START|R=45|T=7"}})
	bot.out.Reset()

	resp := bot.postForm(t, url.Values{
		"From":          {customer},
		"Body":          {"Piga Simu Mhudumu"},
		"ButtonPayload": {"call_waiter"},
		"ButtonText":    {"Piga Simu Mhudumu"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StateCallWaiter, bot.session(t).State)
}

func TestWebhookIgnoresStatusCallbacks(t *testing.T) {
	bot := newTestBot(t, nil)

	resp := bot.postForm(t, url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"delivered"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, bot.out.Messages())
}

func TestWebhookAcknowledgesBackendFailures(t *testing.T) {
	bot := newTestBot(t, nil)

	resp := bot.postForm(t, url.Values{"From": {customer}, "Body": {"START|R=999|T=1"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, bot.out.Messages())
}

func TestTestWebhookReturnsReplies(t *testing.T) {
	bot := newTestBot(t, nil)

	resp, body := bot.postJSON(t, `{"from":"`+customer+`","message":"hi"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	responses, ok := body["responses"].([]interface{})
	require.True(t, ok)
	require.Len(t, responses, 1)
	first := responses[0].(map[string]interface{})
	assert.Contains(t, first["text"], "Karibu TAPTAP!")

	assert.Empty(t, bot.out.Messages())
	assert.Equal(t, models.StateSearchRestaurant, bot.session(t).State)
}

func TestTestWebhookRejectsBadPayload(t *testing.T) {
	bot := newTestBot(t, nil)

	resp, body := bot.postJSON(t, `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid test payload", body["error"])
}

func TestHealthCheck(t *testing.T) {
	bot := newTestBot(t, func() error { return nil })
	bot.postForm(t, url.Values{"From": {customer}, "Body": {"hi"}})

	resp, err := bot.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "In-Memory", body["storage"])
	assert.Equal(t, 1.0, body["sessions"])
}

func TestHealthCheckUnhealthyStore(t *testing.T) {
	bot := newTestBot(t, func() error { return errors.New("redis: connection refused") })

	resp, err := bot.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.NotContains(t, body, "sessions")
}
