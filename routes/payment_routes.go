package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/storefront/handlers"
)

func PaymentRoutes(app *fiber.App, h *handlers.PaymentHandler) {
	api := app.Group("/api/v1")

	// The gateway redirects the buyer's browser with GET and notifies
	// server-to-server with POST; both land on the same handler.
	api.Get("/payments/callback", h.HandleCallback)
	api.Post("/payments/callback", h.HandleCallback)

	api.Get("/payments/resolve", h.ResolveOrder)
}
