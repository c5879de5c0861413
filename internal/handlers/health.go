package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/taptap-tz/taptap-bot/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	Store   string

	conversations *services.ConversationManager
	ping          func() error
}

// NewHealthHandler creates a new health handler. ping checks the session
// backend and may be nil.
func NewHealthHandler(version, store string, conversations *services.ConversationManager, ping func() error) *HealthHandler {
	return &HealthHandler{
		Version:       version,
		Store:         store,
		conversations: conversations,
		ping:          ping,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "OK"
	statusCode := fiber.StatusOK

	if h.ping != nil {
		if err := h.ping(); err != nil {
			log.Printf("⚠️  Health check: session store unreachable: %v", err)
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	response := fiber.Map{
		"status":  status,
		"service": "TAPTAP Bot",
		"version": h.Version,
		"storage": h.Store,
	}

	if statusCode == fiber.StatusOK {
		sessions, err := h.conversations.ActiveSessions(c.UserContext())
		if err != nil {
			log.Printf("⚠️  Health check: counting sessions failed: %v", err)
		} else {
			response["sessions"] = sessions
		}
	}

	return c.Status(statusCode).JSON(response)
}
