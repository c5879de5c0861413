package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/taptap-tz/taptap-bot/internal/services"
)

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	conversations *services.ConversationManager
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(conversations *services.ConversationManager) *WhatsAppHandler {
	return &WhatsAppHandler{
		conversations: conversations,
	}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid        string `form:"MessageSid"`
	AccountSid        string `form:"AccountSid"`
	From              string `form:"From"` // WhatsApp number (whatsapp:+255712345678)
	To                string `form:"To"`   // Your Twilio number
	Body              string `form:"Body"` // Message text
	ButtonPayload     string `form:"ButtonPayload"`
	ButtonText        string `form:"ButtonText"`
	NumMedia          string `form:"NumMedia"`
	MediaUrl0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
}

// Text is what the user chose: the button payload of an interactive reply,
// or the typed body.
func (p TwilioWebhookPayload) Text() string {
	if p.ButtonPayload != "" {
		return p.ButtonPayload
	}
	return p.Body
}

// HandleWebhook processes incoming WhatsApp messages
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload

	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// Status callbacks carry no text
	text := payload.Text()
	if text == "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📱 WhatsApp Message from %s: %s", payload.From, text)

	if err := h.conversations.HandleMessage(c.UserContext(), payload.From, text); err != nil {
		// Twilio retries on errors; the turn already ran, so acknowledge anyway
		log.Printf("❌ Error processing message from %s: %v", payload.From, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload is for testing without Twilio
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleTestWebhook runs a turn and returns the replies instead of sending them
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload

	if err := c.BodyParser(&payload); err != nil || payload.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	log.Printf("🧪 Test webhook received from %s: %s", payload.From, payload.Message)

	messages, err := h.conversations.Preview(c.UserContext(), payload.From, payload.Message)
	if err != nil {
		log.Printf("Error processing message: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	log.Printf("📤 Test responses generated: %d", len(messages))

	return c.JSON(fiber.Map{
		"success":   true,
		"responses": messages,
	})
}
