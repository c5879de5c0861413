package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ValidateTwilioSignature validates that the webhook request is from Twilio
func ValidateTwilioSignature(authToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get Twilio signature from header
		twilioSignature := c.Get("X-Twilio-Signature")
		if twilioSignature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		if authToken == "" {
			// Log error but don't expose to client
			log.Println("❌ TWILIO_AUTH_TOKEN not set, cannot validate webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		// Get all form parameters
		formParams := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			formParams[string(key)] = string(value)
		})

		expectedSignature := CalculateTwilioSignature(authToken, getFullURL(c), formParams)

		if !hmac.Equal([]byte(twilioSignature), []byte(expectedSignature)) {
			log.Printf("⚠️  Invalid Twilio signature for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// getFullURL rebuilds the URL Twilio called, honouring the proxy's scheme.
// The path comes from the parsed URI so absolute-form request targets
// ("POST http://host/path") do not repeat the host.
func getFullURL(c *fiber.Ctx) string {
	protocol := c.Protocol()
	if forwarded := c.Get(fiber.HeaderXForwardedProto); forwarded != "" {
		protocol = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	return fmt.Sprintf("%s://%s%s", protocol, c.Hostname(), c.Request().URI().RequestURI())
}

// CalculateTwilioSignature is base64(HMAC-SHA1(url + sorted key/value pairs))
func CalculateTwilioSignature(authToken, url string, params map[string]string) string {
	// Sort parameters by key
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build the data string
	var data strings.Builder
	data.WriteString(url)
	for _, k := range keys {
		data.WriteString(k)
		data.WriteString(params[k])
	}

	h := hmac.New(sha1.New, []byte(authToken))
	h.Write([]byte(data.String()))

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
