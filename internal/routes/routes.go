package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taptap-tz/taptap-bot/internal/config"
	"github.com/taptap-tz/taptap-bot/internal/handlers"
	"github.com/taptap-tz/taptap-bot/internal/middleware"
	"github.com/taptap-tz/taptap-bot/internal/services"
)

// SetupRoutes configures all routes
func SetupRoutes(app *fiber.App, cfg *config.Config, whatsapp *handlers.WhatsAppHandler, health *handlers.HealthHandler, metrics *services.Metrics) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to TAPTAP Bot!",
			"version": health.Version,
			"endpoints": fiber.Map{
				"health":  "/health",
				"metrics": "/metrics",
				"webhook": "/webhook/whatsapp",
			},
		})
	})

	app.Get("/health", health.Check)

	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	}

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// WhatsApp webhook - ENVIRONMENT-AWARE VALIDATION
	if cfg.IsDevelopment() || cfg.DisableWebhookValidation {
		// Development: Skip validation for ngrok
		webhooks.Post("/whatsapp", whatsapp.HandleWebhook)
		log.Println("⚠️  WhatsApp webhook validation DISABLED")

		// ========== TEST ROUTES (Development Only) ==========
		app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)
	} else {
		// Production: Validate webhook signature
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(cfg.TwilioAuthToken), whatsapp.HandleWebhook)
	}
}
