package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "leadpilot/controllers"
	"leadpilot/dispatch"
	"leadpilot/middleware"
)

// Setup wires every HTTP endpoint: campaign batch sends and stats, provider
// webhooks, health and metrics.
func Setup(app *fiber.App, db *gorm.DB, sender *dispatch.BatchSender, feedback *dispatch.Feedback, log *logrus.Logger) {
	campaignController := controller.NewCampaignController(db, sender, log)
	webhookController := controller.NewWebhookController(feedback, log)

	api := app.Group("/api/v1", fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	campaigns := api.Group("/campaigns")
	campaigns.Post("/:id/batch-send", middleware.BatchSendRateLimiter(), campaignController.BatchSend)
	campaigns.Get("/:id/stats", campaignController.GetCampaignStats)

	webhooks := api.Group("/webhooks")
	webhooks.Post("/telnyx/status", webhookController.TelnyxStatus)
	webhooks.Post("/telnyx/inbound", webhookController.TelnyxInbound)
	webhooks.Post("/twilio/status", webhookController.TwilioStatus)
	webhooks.Post("/twilio/inbound", webhookController.TwilioInbound)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	log.Info("routes initialized")
}
