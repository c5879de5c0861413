package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authToken = "twilio-auth-token"

var webhookForm = url.Values{
	"From":       {"whatsapp:+255712345678"},
	"Body":       {"hi"},
	"MessageSid": {"SM123"},
}

func formParams(form url.Values) map[string]string {
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return params
}

func newSignedApp(token string) *fiber.App {
	app := fiber.New()
	app.Post("/webhook/whatsapp", ValidateTwilioSignature(token), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

const webhookURL = "http://bot.example.com/webhook/whatsapp"

// send posts the webhook form with target in the request line; an
// origin-form target is sent with Host bot.example.com
func send(t *testing.T, app *fiber.App, target, signature string, header http.Header) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(webhookForm.Encode()))
	if strings.HasPrefix(target, "/") {
		req.Host = "bot.example.com"
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestCalculateTwilioSignature(t *testing.T) {
	params := formParams(webhookForm)
	sig := CalculateTwilioSignature(authToken, "https://bot.example.com/webhook/whatsapp", params)

	assert.Len(t, sig, 28) // base64 of a SHA1 digest
	assert.Equal(t, sig, CalculateTwilioSignature(authToken, "https://bot.example.com/webhook/whatsapp", params))
	assert.NotEqual(t, sig, CalculateTwilioSignature("other", "https://bot.example.com/webhook/whatsapp", params))
	assert.NotEqual(t, sig, CalculateTwilioSignature(authToken, "http://bot.example.com/webhook/whatsapp", params))

	params["Body"] = "hello"
	assert.NotEqual(t, sig, CalculateTwilioSignature(authToken, "https://bot.example.com/webhook/whatsapp", params))
}

func TestValidSignaturePasses(t *testing.T) {
	tests := []struct {
		name   string
		target string
		signed string
	}{
		{"origin form", "/webhook/whatsapp", webhookURL},
		{"absolute form", webhookURL, webhookURL},
		{"origin form with query", "/webhook/whatsapp?source=twilio", webhookURL + "?source=twilio"},
		{"absolute form with query", webhookURL + "?source=twilio", webhookURL + "?source=twilio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := CalculateTwilioSignature(authToken, tt.signed, formParams(webhookForm))
			assert.Equal(t, http.StatusOK, send(t, newSignedApp(authToken), tt.target, sig, nil))
		})
	}
}

func TestForwardedProtoIsHonoured(t *testing.T) {
	sig := CalculateTwilioSignature(authToken, "https://bot.example.com/webhook/whatsapp", formParams(webhookForm))
	header := http.Header{"X-Forwarded-Proto": {"https"}}

	assert.Equal(t, http.StatusOK, send(t, newSignedApp(authToken), "/webhook/whatsapp", sig, header))
	assert.Equal(t, http.StatusOK, send(t, newSignedApp(authToken), webhookURL, sig, header))
}

func TestInvalidSignatureRejected(t *testing.T) {
	sig := CalculateTwilioSignature("wrong-token", webhookURL, formParams(webhookForm))

	assert.Equal(t, http.StatusUnauthorized, send(t, newSignedApp(authToken), webhookURL, sig, nil))
}

func TestMissingSignatureRejected(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, send(t, newSignedApp(authToken), webhookURL, "", nil))
}

func TestMissingAuthTokenIsServerError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, send(t, newSignedApp(""), webhookURL, "c2lnbmF0dXJl", nil))
}
